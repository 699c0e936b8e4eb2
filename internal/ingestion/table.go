package ingestion

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// fields is one input row keyed by canonical column name
type fields map[string]string

// has reports whether the row carries the column at all
func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

type row struct {
	index  int // 1-based data row number in the source, blank rows included
	values fields
}

// table is a decoded tabular source
type table struct {
	name    string
	columns map[string]bool
	rows    []row
	excel   bool // cells come from a workbook, dates may be serial numbers
	json    bool // rows carry only the keys their object had
}

// canonical turns a header such as " Transaction Date " into "transaction_date"
// and applies aliases
func canonical(header string, aliases map[string]string) string {
	key := strings.ToLower(strings.TrimSpace(header))
	key = strings.Join(strings.Fields(key), "_")
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return key
}

// missingColumns lists required columns absent from the header. A source with
// no header at all is empty, not invalid.
func (t *table) missingColumns(required []string) []string {
	if len(t.columns) == 0 {
		return nil
	}
	var missing []string
	for _, col := range required {
		if !t.columns[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func newTable(name string, header []string, records [][]string, aliases map[string]string) *table {
	t := &table{name: name, columns: make(map[string]bool, len(header))}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = canonical(h, aliases)
		if keys[i] != "" {
			t.columns[keys[i]] = true
		}
	}

	for n, record := range records {
		values := make(fields, len(keys))
		blank := true
		for i, key := range keys {
			if key == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			if value != "" {
				blank = false
			}
			if !values.has(key) || value != "" {
				values[key] = value
			}
		}
		if blank {
			continue
		}
		t.rows = append(t.rows, row{index: n + 1, values: values})
	}
	return t
}

// readCSV decodes a CSV file whose first record is the header
func readCSV(name string, data []byte, aliases map[string]string) (*table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &table{name: name, columns: map[string]bool{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read header: %v", name, ErrUnreadable, err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrUnreadable, err)
	}
	return newTable(name, header, records, aliases), nil
}

// readWorkbook decodes the active sheet of an XLSX file. Cells are read raw,
// without number formats, so amounts keep their stored digits.
func readWorkbook(name string, data []byte, aliases map[string]string) (*table, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrUnreadable, err)
	}
	defer file.Close()

	sheet := file.GetSheetName(file.GetActiveSheetIndex())
	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: %w: no sheets", name, ErrUnreadable)
		}
		sheet = sheets[0]
	}

	rows, err := file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, ErrUnreadable, err)
	}
	if len(rows) == 0 {
		return &table{name: name, columns: map[string]bool{}, excel: true}, nil
	}

	t := newTable(name, rows[0], rows[1:], aliases)
	t.excel = true
	return t, nil
}

// readJSON decodes a JSON array of flat objects. Numbers keep their literal text.
func readJSON(name string, data []byte, aliases map[string]string) (*table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var objects []map[string]interface{}
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("%s: %w: expected a JSON array of objects: %v", name, ErrUnreadable, err)
	}

	t := &table{name: name, columns: map[string]bool{}, json: true}
	for n, obj := range objects {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		values := make(fields, len(obj))
		for _, k := range keys {
			v := obj[k]
			if v == nil {
				continue
			}
			key := canonical(k, aliases)
			switch x := v.(type) {
			case string:
				values[key] = strings.TrimSpace(x)
			case json.Number:
				values[key] = x.String()
			default:
				values[key] = fmt.Sprint(x)
			}
			t.columns[key] = true
		}
		t.rows = append(t.rows, row{index: n + 1, values: values})
	}
	return t, nil
}
