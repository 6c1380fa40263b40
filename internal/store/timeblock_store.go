package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/efficio/internal/model"
)

const timeBlockColumns = `id, remote_id, title, date, time, duration, type,
	completed, task_ids, synced, created_at, updated_at`

// SaveTimeBlock inserts a new time block or overwrites an existing one with
// the same ID. Generates a UUID if ID is empty.
func (s *SQLiteStore) SaveTimeBlock(ctx context.Context, block model.TimeBlock) error {
	if strings.TrimSpace(block.Title) == "" {
		return fmt.Errorf("time block title must not be empty")
	}
	if block.ID == "" {
		block.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if block.CreatedAt.IsZero() {
		block.CreatedAt = now
	}
	block.UpdatedAt = now
	if block.Type == "" {
		block.Type = model.BlockFocus
	}

	taskIDs, err := json.Marshal(block.TaskIDs)
	if err != nil {
		return fmt.Errorf("marshaling task ids for time block %s: %w", block.ID, err)
	}
	if block.TaskIDs == nil {
		taskIDs = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO time_blocks (
			id, remote_id, title, date, time, duration, type,
			completed, task_ids, synced, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote_id = excluded.remote_id,
			title = excluded.title,
			date = excluded.date,
			time = excluded.time,
			duration = excluded.duration,
			type = excluded.type,
			completed = excluded.completed,
			task_ids = excluded.task_ids,
			synced = excluded.synced,
			updated_at = excluded.updated_at`,
		block.ID, block.RemoteID, block.Title, block.Date, block.Time,
		block.Duration, block.Type, boolToInt(block.Completed),
		string(taskIDs), boolToInt(block.Synced),
		block.CreatedAt.UTC(), block.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving time block %s: %w", block.ID, err)
	}
	return nil
}

// GetTimeBlock retrieves a single time block by ID.
func (s *SQLiteStore) GetTimeBlock(ctx context.Context, id string) (*model.TimeBlock, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+timeBlockColumns+" FROM time_blocks WHERE id = ?", id)

	block, err := scanTimeBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("time block %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting time block %s: %w", id, err)
	}
	return &block, nil
}

// DeleteTimeBlock removes a time block by ID.
func (s *SQLiteStore) DeleteTimeBlock(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM time_blocks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting time block %s: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("time block %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTimeBlocks returns the blocks scheduled on date (YYYY-MM-DD) ordered
// by start time. An empty date lists every block.
func (s *SQLiteStore) ListTimeBlocks(ctx context.Context, date string) ([]model.TimeBlock, error) {
	query := "SELECT " + timeBlockColumns + " FROM time_blocks"
	var args []interface{}
	if date != "" {
		query += " WHERE date = ?"
		args = append(args, date)
	}
	query += " ORDER BY date, time, created_at"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying time blocks: %w", err)
	}
	defer rows.Close()

	var blocks []model.TimeBlock
	for rows.Next() {
		block, err := scanTimeBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// MarkTimeBlockSynced records the remote id assigned to a block.
func (s *SQLiteStore) MarkTimeBlockSynced(ctx context.Context, id, remoteID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE time_blocks SET remote_id = ?, synced = 1 WHERE id = ?",
		remoteID, id,
	)
	if err != nil {
		return fmt.Errorf("marking time block %s synced: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("time block %s: %w", id, ErrNotFound)
	}
	return nil
}

// scanTimeBlock scans a time_blocks row selected with timeBlockColumns.
func scanTimeBlock(row interface{ Scan(dest ...interface{}) error }) (model.TimeBlock, error) {
	var (
		block     model.TimeBlock
		completed int
		synced    int
		taskIDs   string
	)

	err := row.Scan(
		&block.ID, &block.RemoteID, &block.Title, &block.Date, &block.Time,
		&block.Duration, &block.Type, &completed, &taskIDs, &synced,
		&block.CreatedAt, &block.UpdatedAt,
	)
	if err != nil {
		return model.TimeBlock{}, fmt.Errorf("scanning time block row: %w", err)
	}

	block.Completed = completed != 0
	block.Synced = synced != 0
	if taskIDs != "" {
		if err := json.Unmarshal([]byte(taskIDs), &block.TaskIDs); err != nil {
			return model.TimeBlock{}, fmt.Errorf("unmarshaling task ids: %w", err)
		}
	}

	return block, nil
}
