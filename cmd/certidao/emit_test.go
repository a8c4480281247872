package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracertea/certidao/internal/batch"
	"github.com/tracertea/certidao/internal/config"
	"github.com/tracertea/certidao/internal/report"
)

func testConfig(t *testing.T, format string) *config.Config {
	t.Helper()
	return &config.Config{
		OutputDir:    t.TempDir(),
		ReportFormat: format,
		APIKey:       "key",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecuteWritesReport(t *testing.T) {
	cfg := testConfig(t, "json")
	issuer := batch.IssuerFuncs{
		Emit: func(ctx context.Context, session batch.Session, id batch.Identifier, cred batch.Credential, index, total int, reg batch.Registry) (bool, error) {
			return id != "2", nil
		},
	}

	summary, reportPath, err := execute(context.Background(), cfg, runDeps{
		issuer: issuer,
		ids:    []batch.Identifier{"1", "2", "3"},
		registry: batch.Registry{
			"1": {CNPJ: "1", Name: "Empresa Um"},
		},
		logger: discardLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, report.Path(cfg.OutputDir, "json"), reportPath)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var written report.Summary
	require.NoError(t, jsoniter.Unmarshal(data, &written))
	assert.Equal(t, 3, written.Total)
	require.Len(t, written.Items, 3)
	assert.Equal(t, "Empresa Um", written.Items[0].Company)
}

func TestExecuteCredentialForwarded(t *testing.T) {
	cfg := testConfig(t, "csv")
	var seen []batch.Credential
	issuer := batch.IssuerFuncs{
		Emit: func(ctx context.Context, session batch.Session, id batch.Identifier, cred batch.Credential, index, total int, reg batch.Registry) (bool, error) {
			seen = append(seen, cred)
			return true, nil
		},
	}

	_, reportPath, err := execute(context.Background(), cfg, runDeps{
		issuer: issuer,
		ids:    []batch.Identifier{"1", "2"},
		logger: discardLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, []batch.Credential{"key", "key"}, seen)
	assert.FileExists(t, reportPath)
	assert.Equal(t, ".csv", filepath.Ext(reportPath))
}

func TestExecuteCancelledStillWritesReport(t *testing.T) {
	cfg := testConfig(t, "json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	issuer := batch.IssuerFuncs{
		Emit: func(ctx context.Context, session batch.Session, id batch.Identifier, cred batch.Credential, index, total int, reg batch.Registry) (bool, error) {
			if index == 2 {
				cancel()
			}
			return true, nil
		},
	}

	summary, reportPath, err := execute(ctx, cfg, runDeps{
		issuer: issuer,
		ids:    []batch.Identifier{"1", "2", "3", "4"},
		logger: discardLogger(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 0, summary.FailureCount)
	assert.True(t, summary.Cancelled)
	assert.FileExists(t, reportPath)
}

func TestExecuteUnknownFormat(t *testing.T) {
	cfg := testConfig(t, "pdf")
	_, _, err := execute(context.Background(), cfg, runDeps{
		issuer: batch.IssuerFuncs{},
		logger: discardLogger(),
	})
	require.Error(t, err)
}
