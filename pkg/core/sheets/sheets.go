// Package sheets imports and exports user datasets through the Google Sheets
// API using a service-account credential.
package sheets

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"cubitai/pkg/core/dataset"
)

// Client wraps the Sheets service for dataset import/export.
type Client struct {
	svc *sheetsapi.Service
}

// NewClient builds a Sheets client from GOOGLE_APPLICATION_CREDENTIALS.
func NewClient(ctx context.Context) (*Client, error) {
	credsPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	if credsPath == "" {
		return nil, fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS environment variable not set")
	}

	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(credsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Import reads the first worksheet of a spreadsheet into a Dataset. The first
// row is taken as the header row.
func (c *Client) Import(ctx context.Context, spreadsheetID string) (*dataset.Dataset, error) {
	meta, err := c.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	if len(meta.Sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no worksheets")
	}
	sheetName := meta.Sheets[0].Properties.Title

	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheetName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%v", cell)
		}
		rows = append(rows, cells)
	}
	return dataset.FromRows(rows)
}

// Export creates a new spreadsheet titled for the user and writes the dataset
// into its first sheet. Returns the new spreadsheet ID.
func (c *Client) Export(ctx context.Context, title string, ds *dataset.Dataset) (string, error) {
	created, err := c.svc.Spreadsheets.Create(&sheetsapi.Spreadsheet{
		Properties: &sheetsapi.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create spreadsheet: %w", err)
	}

	values := make([][]interface{}, 0, len(ds.Records)+1)
	header := make([]interface{}, len(ds.Columns))
	for i, col := range ds.Columns {
		header[i] = col
	}
	values = append(values, header)
	for _, rec := range ds.Records {
		row := make([]interface{}, len(ds.Columns))
		for i, col := range ds.Columns {
			row[i] = rec[col]
		}
		values = append(values, row)
	}

	_, err = c.svc.Spreadsheets.Values.Update(created.SpreadsheetId, "A1", &sheetsapi.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to write spreadsheet values: %w", err)
	}

	return created.SpreadsheetId, nil
}
