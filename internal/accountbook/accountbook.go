// Package accountbook loads a chart of accounts from a spreadsheet.
package accountbook

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/sift/internal/model"
)

// Loader errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported account book format")
	ErrNoAccounts        = errors.New("account book has no accounts")
)

var (
	codeHeaders        = []string{"code", "codigo", "cuenta", "account", "numero"}
	descriptionHeaders = []string{"description", "descripcion", "nombre", "concepto", "name", "titulo"}
)

// LoadFile reads the accounts of an .xlsx or .csv file.
func LoadFile(path string) ([]model.Account, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied import file
	if err != nil {
		return nil, fmt.Errorf("failed to read account book: %w", err)
	}
	return Load(filepath.Base(path), data)
}

// Load parses data according to the extension of name. The first sheet of a
// workbook is used. A header row is detected by name; without one the first
// column is the code and the second the description. Rows without a code are
// skipped and a repeated code keeps its first description.
func Load(name string, data []byte) ([]model.Account, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(data)
	case ".csv", ".txt":
		rows, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, err
	}

	accounts := parseRows(rows)
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAccounts, name)
	}
	return accounts, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrNoAccounts)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// readCSV accepts comma or semicolon separated files, the latter being what
// Spanish-locale spreadsheets export.
func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func parseRows(rows [][]string) []model.Account {
	codeCol, descCol := 0, 1
	start := 0
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		if c, d, ok := headerColumns(row); ok {
			codeCol, descCol = c, d
			start = i + 1
		} else {
			start = i
		}
		break
	}

	seen := make(map[string]bool)
	var accounts []model.Account
	for _, row := range rows[min(start, len(rows)):] {
		code := strings.TrimSpace(cell(row, codeCol))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		accounts = append(accounts, model.Account{
			Code:        code,
			Description: strings.Join(strings.Fields(cell(row, descCol)), " "),
		})
	}
	return accounts
}

// headerColumns finds the code and description columns of a header row.
func headerColumns(row []string) (int, int, bool) {
	codeCol, descCol := -1, -1
	for i, value := range row {
		key := foldHeader(value)
		if codeCol < 0 && hasPrefixAny(key, codeHeaders) {
			codeCol = i
			continue
		}
		if descCol < 0 && hasPrefixAny(key, descriptionHeaders) {
			descCol = i
		}
	}
	if codeCol < 0 {
		return 0, 0, false
	}
	if descCol < 0 {
		descCol = codeCol + 1
	}
	return codeCol, descCol, true
}

// foldHeader lower-cases and strips accents and punctuation so "Código" and
// "codigo" compare equal.
func foldHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'á':
			r = 'a'
		case 'é':
			r = 'e'
		case 'í':
			r = 'i'
		case 'ó':
			r = 'o'
		case 'ú', 'ü':
			r = 'u'
		}
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasPrefixAny(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
