package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
)

// table buffers rows and prints them through tablewriter. The first row
// holds the column names.
type table struct {
	rows [][]string
}

func newTable(columns ...string) *table {
	return &table{rows: [][]string{columns}}
}

func (t *table) row(cells ...any) {
	r := make([]string, len(cells))
	for i, c := range cells {
		r[i] = fmt.Sprint(c)
	}
	t.rows = append(t.rows, r)
}

func (t *table) render() error {
	w := tablewriter.NewWriter(os.Stdout)
	for _, r := range t.rows {
		if err := w.Append(r); err != nil {
			return err
		}
	}
	return w.Render()
}
