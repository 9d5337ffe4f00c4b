package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cubitai/pkg/core/dataset"
)

// ErrNotFound is returned when a user has no stored dataset. Callers treat
// it the same as an empty dataset.
var ErrNotFound = fmt.Errorf("no dataset found")

// DatasetRepo stores one dataset document per user, replaced wholesale on
// every upload or import.
type DatasetRepo struct{}

// NewDatasetRepo creates a new repository instance.
func NewDatasetRepo() *DatasetRepo {
	return &DatasetRepo{}
}

// Schema assumption (managed by migrations):
// CREATE TABLE IF NOT EXISTS datasets (
//   user_id TEXT PRIMARY KEY,
//   upload_id UUID,
//   data_json JSONB,
//   updated_at TIMESTAMPTZ
// );

// Save upserts the user's dataset and returns the new upload revision ID.
func (r *DatasetRepo) Save(ctx context.Context, userID string, ds *dataset.Dataset) (string, error) {
	pool := GetPool()
	if pool == nil {
		return "", fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal dataset: %w", err)
	}

	uploadID := uuid.NewString()
	query := `
		INSERT INTO datasets (user_id, upload_id, data_json, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET
			upload_id = EXCLUDED.upload_id,
			data_json = EXCLUDED.data_json,
			updated_at = EXCLUDED.updated_at;
	`

	if _, err := pool.Exec(ctx, query, userID, uploadID, jsonData, time.Now()); err != nil {
		return "", fmt.Errorf("failed to save dataset: %w", err)
	}
	return uploadID, nil
}

// Load retrieves the user's stored dataset. ErrNotFound when none exists.
func (r *DatasetRepo) Load(ctx context.Context, userID string) (*dataset.Dataset, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	var jsonData []byte
	err := pool.QueryRow(ctx, `SELECT data_json FROM datasets WHERE user_id = $1`, userID).Scan(&jsonData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	var ds dataset.Dataset
	if err := json.Unmarshal(jsonData, &ds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	return &ds, nil
}
