package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// FromCSV parses CSV content into a Dataset. Each row becomes a column→value
// map; short rows are padded with empty strings, long rows ignore the extra
// cells. Malformed rows are skipped rather than failing the whole import.
func FromCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged exports

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	ds := &Dataset{Columns: headers}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		rec := make(Record, len(headers))
		for i, col := range headers {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		ds.Records = append(ds.Records, rec)
	}

	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("no valid rows found in CSV")
	}
	return ds, nil
}

// ToCSV writes the dataset as CSV with the stored column order.
func (d *Dataset) ToCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(d.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	row := make([]string, len(d.Columns))
	for _, rec := range d.Records {
		for i, col := range d.Columns {
			row[i] = rec[col]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// FromRows builds a Dataset from a header row plus data rows, as returned by
// the Sheets API or an HTML table.
func FromRows(rows [][]string) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows provided")
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	ds := &Dataset{Columns: headers}
	for _, row := range rows[1:] {
		rec := make(Record, len(headers))
		for i, col := range headers {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		ds.Records = append(ds.Records, rec)
	}
	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("no data rows found")
	}
	return ds, nil
}
