package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tracertea/certidao/internal/batch"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Text(t *testing.T) {
	path := writeFile(t, "cnpjs.txt", "# lista\n11.222.333/0001-81\n\n  44555666000199  \n11.222.333/0001-81\n")

	ids, reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []batch.Identifier{"11.222.333/0001-81", "44555666000199", "11.222.333/0001-81"}, ids)
	assert.Len(t, reg, 2)
	assert.Equal(t, batch.Identifier("44555666000199"), reg["44555666000199"].CNPJ)
}

func TestLoad_CSV(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIDs []batch.Identifier
		wantReg batch.Registry
	}{
		{
			name:    "header with extra columns",
			content: "Nome,CNPJ,UF\nAcme Ltda,111,SP\nBeta SA,222,RJ\n",
			wantIDs: []batch.Identifier{"111", "222"},
			wantReg: batch.Registry{
				"111": {CNPJ: "111", Name: "Acme Ltda", Extra: map[string]string{"UF": "SP"}},
				"222": {CNPJ: "222", Name: "Beta SA", Extra: map[string]string{"UF": "RJ"}},
			},
		},
		{
			name:    "semicolon separated",
			content: "cnpj;razao social\n111;Acme Ltda\n",
			wantIDs: []batch.Identifier{"111"},
			wantReg: batch.Registry{"111": {CNPJ: "111", Name: "Acme Ltda"}},
		},
		{
			name:    "no header",
			content: "111,Acme\n222\n,ignored\n",
			wantIDs: []batch.Identifier{"111", "222"},
			wantReg: batch.Registry{
				"111": {CNPJ: "111", Name: "Acme"},
				"222": {CNPJ: "222"},
			},
		},
		{
			name:    "empty file",
			content: "",
			wantReg: batch.Registry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, reg, err := Load(writeFile(t, "empresas.csv", tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantReg, reg)
		})
	}
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empresas.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Empresa", "CNPJ"},
		{"Acme Ltda", "11222333000181"},
		{"", ""},
		{"Beta SA", "44555666000199"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ids, reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []batch.Identifier{"11222333000181", "44555666000199"}, ids)
	assert.Equal(t, "Acme Ltda", reg["11222333000181"].Name)
	assert.Equal(t, "Beta SA", reg["44555666000199"].Name)
}

func TestLoad_Errors(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "cannot access input file")

	_, _, err = Load(writeFile(t, "cnpjs.pdf", "x"))
	assert.ErrorContains(t, err, "unsupported input file type")
}
