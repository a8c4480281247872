package registry

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tracertea/certidao/internal/batch"
)

var (
	cnpjHeaders = []string{"cnpj"}
	nameHeaders = []string{"nome", "empresa", "razao social", "razão social", "name", "company"}
)

// Load reads the identifier list and company metadata from an .xlsx, .csv or
// .txt file. Identifiers keep the file order; duplicates are preserved.
func Load(path string) ([]batch.Identifier, batch.Registry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("cannot access input file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadXLSX(path)
	case ".csv":
		return loadCSV(path)
	case ".txt", "":
		return loadText(path)
	default:
		return nil, nil, fmt.Errorf("unsupported input file type: %s", filepath.Ext(path))
	}
}

func loadXLSX(path string) ([]batch.Identifier, batch.Registry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return fromRows(rows)
}

func loadCSV(path string) ([]batch.Identifier, batch.Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err == io.EOF {
		return nil, batch.Registry{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	// Accept ';' separated exports from spreadsheet tools.
	if len(first) == 1 && strings.Contains(first[0], ";") {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, nil, fmt.Errorf("failed to rewind CSV: %w", err)
		}
		reader = csv.NewReader(file)
		reader.Comma = ';'
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		first = nil
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if first != nil {
		rows = append([][]string{first}, rows...)
	}
	return fromRows(rows)
}

func loadText(path string) ([]batch.Identifier, batch.Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	var ids []batch.Identifier
	reg := batch.Registry{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id := batch.Identifier(line)
		ids = append(ids, id)
		if _, ok := reg[id]; !ok {
			reg[id] = batch.Company{CNPJ: id}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return ids, reg, nil
}

// fromRows builds the list from tabular data. When the first row has a CNPJ
// header the columns are located by name, otherwise column 0 is the CNPJ and
// column 1 the company name.
func fromRows(rows [][]string) ([]batch.Identifier, batch.Registry, error) {
	reg := batch.Registry{}
	if len(rows) == 0 {
		return nil, reg, nil
	}

	cnpjCol, nameCol := 0, 1
	var headers []string
	if col := findColumn(rows[0], cnpjHeaders); col >= 0 {
		cnpjCol = col
		nameCol = findColumn(rows[0], nameHeaders)
		headers = rows[0]
		rows = rows[1:]
	}

	var ids []batch.Identifier
	for _, row := range rows {
		if cnpjCol >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[cnpjCol])
		if raw == "" {
			continue
		}

		id := batch.Identifier(raw)
		ids = append(ids, id)
		if _, ok := reg[id]; ok {
			continue
		}

		company := batch.Company{CNPJ: id}
		if nameCol >= 0 && nameCol < len(row) {
			company.Name = strings.TrimSpace(row[nameCol])
		}
		for i, header := range headers {
			if i == cnpjCol || i == nameCol || i >= len(row) {
				continue
			}
			key := strings.TrimSpace(header)
			if key == "" || strings.TrimSpace(row[i]) == "" {
				continue
			}
			if company.Extra == nil {
				company.Extra = make(map[string]string)
			}
			company.Extra[key] = strings.TrimSpace(row[i])
		}
		reg[id] = company
	}
	return ids, reg, nil
}

func findColumn(header []string, names []string) int {
	for i, cell := range header {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for _, name := range names {
			if normalized == name {
				return i
			}
		}
	}
	return -1
}
