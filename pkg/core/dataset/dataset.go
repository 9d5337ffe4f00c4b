// Package dataset defines the tabular data model shared by every feature:
// an ordered sequence of loosely-structured records as produced by CRM and
// sales exports. Column sets are not guaranteed uniform across records and
// missing keys are never an error.
package dataset

import (
	"fmt"
	"strings"
)

// Record maps a column name to its raw string value. Absent keys mean the
// value is missing for that row.
type Record map[string]string

// Dataset is an ordered sequence of records plus the column order observed
// at import time. Insertion order is preserved; it matters for tie-breaking
// in aggregations, not for answer content.
type Dataset struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// IsEmpty reports whether the dataset has no usable rows. A missing dataset
// and an empty one are treated identically by every consumer.
func (d *Dataset) IsEmpty() bool {
	return d.Len() == 0
}

// ColumnValues returns the raw values of one column in record order.
// Missing cells come back as empty strings so indexes line up with records.
func (d *Dataset) ColumnValues(column string) []string {
	values := make([]string, 0, d.Len())
	for _, rec := range d.Records {
		values = append(values, rec[column])
	}
	return values
}

// StringifyRecord renders a record in column order for prompt context,
// e.g. {sales_rep: Alice, amount: $100}.
func (d *Dataset) StringifyRecord(rec Record) string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for _, col := range d.Columns {
		val, ok := rec[col]
		if !ok {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s: %s", col, val)
	}
	sb.WriteString("}")
	return sb.String()
}
