package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"garasiku/internal/types"
)

// ErrParameterNotFound is returned when no row matches the group and name.
var ErrParameterNotFound = types.ErrParameterNotFound

// ParameterRepository reads admin-maintained settings from the parameter
// table. Values live in the description column as free text.
type ParameterRepository struct {
	db DBTX
}

// NewParameterRepository creates a ParameterRepository backed by db.
func NewParameterRepository(db DBTX) *ParameterRepository {
	return &ParameterRepository{db: db}
}

// GetParameter returns the description of the parameter identified by group
// and name.
func (r *ParameterRepository) GetParameter(ctx context.Context, group, name string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT description FROM parameter WHERE "group" = $1 AND name = $2 LIMIT 1`,
		group, name,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrParameterNotFound
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to read parameter", err)
	}
	return value, nil
}
