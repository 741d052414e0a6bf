package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mcp-browser-bridge/backend/internal/model"
)

// BridgeRepository provides data access for bridges.
type BridgeRepository struct {
	db *sql.DB
}

// NewBridgeRepository creates a new BridgeRepository.
func NewBridgeRepository(db *sql.DB) *BridgeRepository {
	return &BridgeRepository{db: db}
}

// Create inserts a new bridge into the database.
func (r *BridgeRepository) Create(ctx context.Context, bridge *model.Bridge) error {
	query := `
		INSERT INTO bridges (id, user_id, name, status, remote_attached_at, traffic_log_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		bridge.ID,
		bridge.UserID,
		bridge.Name,
		bridge.Status,
		bridge.RemoteAttachedAt,
		bridge.TrafficLogPath,
		bridge.CreatedAt,
		bridge.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	return nil
}

// GetByID retrieves a bridge by its ID.
func (r *BridgeRepository) GetByID(ctx context.Context, id string) (*model.Bridge, error) {
	query := `
		SELECT id, user_id, name, status, remote_attached_at, traffic_log_path, created_at, updated_at
		FROM bridges
		WHERE id = ?
	`

	bridge := &model.Bridge{}
	var remoteAttachedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&bridge.ID,
		&bridge.UserID,
		&bridge.Name,
		&bridge.Status,
		&remoteAttachedAt,
		&bridge.TrafficLogPath,
		&bridge.CreatedAt,
		&bridge.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrBridgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bridge: %w", err)
	}

	if remoteAttachedAt.Valid {
		t := remoteAttachedAt.Time
		bridge.RemoteAttachedAt = &t
	}

	return bridge, nil
}

// List retrieves all bridges for a user.
func (r *BridgeRepository) List(ctx context.Context, userID string) ([]*model.Bridge, error) {
	query := `
		SELECT id, user_id, name, status, remote_attached_at, traffic_log_path, created_at, updated_at
		FROM bridges
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bridges: %w", err)
	}
	defer rows.Close()

	var bridges []*model.Bridge
	for rows.Next() {
		bridge := &model.Bridge{}
		var remoteAttachedAt sql.NullTime

		err := rows.Scan(
			&bridge.ID,
			&bridge.UserID,
			&bridge.Name,
			&bridge.Status,
			&remoteAttachedAt,
			&bridge.TrafficLogPath,
			&bridge.CreatedAt,
			&bridge.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bridge: %w", err)
		}

		if remoteAttachedAt.Valid {
			t := remoteAttachedAt.Time
			bridge.RemoteAttachedAt = &t
		}

		bridges = append(bridges, bridge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bridges: %w", err)
	}

	return bridges, nil
}

// Delete removes a bridge from the database.
func (r *BridgeRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM bridges WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete bridge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrBridgeNotFound
	}

	return nil
}

// UpdateStatus updates the status of a bridge. A connected status records
// the attach time; any other status clears it.
func (r *BridgeRepository) UpdateStatus(ctx context.Context, id string, status model.BridgeStatus, remoteAttachedAt *time.Time) error {
	query := `
		UPDATE bridges
		SET status = ?, remote_attached_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, remoteAttachedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update bridge status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrBridgeNotFound
	}

	return nil
}

// CountActiveByUser returns the number of non-closed bridges for a user.
func (r *BridgeRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bridges
		WHERE user_id = ? AND status != ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID, model.BridgeStatusClosed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active bridges: %w", err)
	}

	return count, nil
}

// Exists checks if a bridge exists.
func (r *BridgeRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT 1 FROM bridges WHERE id = ? LIMIT 1`

	var exists int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check bridge existence: %w", err)
	}

	return true, nil
}
