package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tracertea/certidao/internal/batch"
	"github.com/tracertea/certidao/internal/report"
)

func TestDisplay_ItemDone(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf, batch.Registry{"111": {Name: "Acme"}})
	assert.False(t, d.color)

	d.Header(3, 1)
	d.ItemDone(batch.ItemOutcome{Identifier: "111", Index: 1, Total: 3, Status: batch.StatusSuccess, Duration: time.Second})
	d.ItemDone(batch.ItemOutcome{Identifier: "222", Index: 2, Total: 3, Status: batch.StatusFault, Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "3 CNPJ(s) para processar (1 já emitido(s), ignorado(s))")
	assert.Contains(t, out, "[1/3] OK    111 - Acme (1s)")
	assert.Contains(t, out, "[2/3] ERRO  222 (0s) boom")
	assert.NotContains(t, out, "222 - 222")
	assert.NotContains(t, out, "\033[")
}

func TestDisplay_Summary(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf, nil)
	d.Summary(&report.Summary{
		Total:         5,
		SuccessCount:  3,
		FailureCount:  2,
		FaultCount:    1,
		Cancelled:     true,
		ExecutionTime: "1m0s",
	}, "/tmp/relatorio.xlsx")

	out := buf.String()
	assert.Contains(t, out, "Sucessos:  3")
	assert.Contains(t, out, "Falhas:    2 (1 erro(s) inesperado(s))")
	assert.Contains(t, out, "interrompida")
	assert.Contains(t, out, "Relatório: /tmp/relatorio.xlsx")
}
