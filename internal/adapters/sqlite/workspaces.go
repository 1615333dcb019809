package sqlite

import (
	"context"
	"fmt"
	"strings"

	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/ports"
)

// GetOrCreateWorkspace returns the workspace of username, creating it from
// defaults on first login. Existing workspaces keep their stored settings.
func (r *Repository) GetOrCreateWorkspace(ctx context.Context, username string, defaults domain.Workspace) (*domain.Workspace, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ports.ErrInvalidInput)
	}

	const insert = `
	INSERT OR IGNORE INTO workspaces (username, monthly_volume_target, starting_equity, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`

	now := r.now().UTC()
	result, err := r.db.ExecContext(ctx, insert, username, defaults.MonthlyVolumeTarget, defaults.StartingEquity, now, now)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create workspace %s: %v", ports.ErrQueryFailed, username, err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		r.logger.Info(ctx, "Workspace created", map[string]interface{}{"username": username})
	}

	const query = `
	SELECT username, monthly_volume_target, starting_equity, created_at, updated_at
	FROM workspaces
	WHERE username = ?`

	ws := &domain.Workspace{}
	err = r.db.QueryRowContext(ctx, query, username).
		Scan(&ws.Username, &ws.MonthlyVolumeTarget, &ws.StartingEquity, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load workspace %s: %v", ports.ErrQueryFailed, username, err)
	}
	return ws, nil
}

// UpdateWorkspace stores the workspace settings.
func (r *Repository) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	const query = `
	UPDATE workspaces
	SET monthly_volume_target = ?, starting_equity = ?, updated_at = ?
	WHERE username = ?`

	ws.UpdatedAt = r.now().UTC()
	result, err := r.db.ExecContext(ctx, query, ws.MonthlyVolumeTarget, ws.StartingEquity, ws.UpdatedAt, ws.Username)
	if err != nil {
		return fmt.Errorf("%w: failed to update workspace %s: %v", ports.ErrUpdateFailed, ws.Username, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected for workspace %s: %v", ports.ErrUpdateFailed, ws.Username, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("workspace %s not found for update: %w", ws.Username, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Workspace updated", map[string]interface{}{
		"username": ws.Username,
		"target":   ws.MonthlyVolumeTarget,
		"equity":   ws.StartingEquity,
	})
	return nil
}
