package ports

import (
	"context"

	"hedgeTracker/internal/domain"
)

// WorkspaceRepository stores per-user workspace settings.
type WorkspaceRepository interface {
	// GetOrCreateWorkspace loads the workspace for username, creating it with
	// the supplied defaults when it does not exist yet.
	GetOrCreateWorkspace(ctx context.Context, username string, defaults domain.Workspace) (*domain.Workspace, error)
	// UpdateWorkspace saves the target and starting equity of an existing workspace.
	UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error
}

// PairRepository stores the hedge pairs of a workspace.
type PairRepository interface {
	// CreatePair inserts a new pair. Returns ErrDuplicateEntry if the ID is taken.
	CreatePair(ctx context.Context, username string, pair *domain.HedgedPair) error
	// SavePair inserts the pair or replaces an existing pair with the same ID.
	SavePair(ctx context.Context, username string, pair *domain.HedgedPair) error
	// FindPair retrieves a pair by ID. Returns nil, nil if not found.
	FindPair(ctx context.Context, username, id string) (*domain.HedgedPair, error)
	// ListPairs retrieves every pair of the workspace ordered by date ascending.
	ListPairs(ctx context.Context, username string) ([]*domain.HedgedPair, error)
	// DeletePair removes a pair. Returns ErrNotFound if it does not exist.
	DeletePair(ctx context.Context, username, id string) error
}
