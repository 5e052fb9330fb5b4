// Package repository defines the storage contract for run history. The
// pipeline never reads these records back; they exist for the API and CLI.
package repository

import (
	"context"

	"github.com/sakif/build-sandbox/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
	// SubmittedBy filters by token subject when non-empty.
	SubmittedBy string
}

type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, opts ListOptions) ([]model.Run, error)
}
