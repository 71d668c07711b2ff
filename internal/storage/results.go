package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
)

// StoredResult is a result together with where its image came from.
type StoredResult struct {
	ImageID string       `json:"image_id"`
	Source  string       `json:"source"`
	Result  model.Result `json:"result"`
}

// ListFilter narrows ListResults.
type ListFilter struct {
	// Limit caps the number of results; zero means no limit.
	Limit           int
	NeedsReviewOnly bool
	FailedOnly      bool
}

// Stats summarizes the tracker contents.
type Stats struct {
	Processed   int
	Failed      int
	NeedsReview int
}

// IsProcessed reports whether an image id has a stored result.
func (s *SQLiteStorage) IsProcessed(ctx context.Context, imageID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(imageID, "imageID"); err != nil {
		return false, err
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_images WHERE image_id = ?`, imageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check image %s: %w", imageID, err)
	}
	return true, nil
}

// MarkProcessed stores the result for an image, replacing any earlier one.
func (s *SQLiteStorage) MarkProcessed(ctx context.Context, imageID, source string, result model.Result) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(imageID, "imageID"); err != nil {
		return err
	}
	if err := validateResult(result); err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	var ledgerDate sql.NullString
	if result.Record != nil && result.Record.Date != nil {
		ledgerDate = sql.NullString{String: *result.Record.Date, Valid: true}
	}
	processedAt := result.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processed_images
			(image_id, source, status, confidence, needs_review, result, processed_at, ledger_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			source = excluded.source,
			status = excluded.status,
			confidence = excluded.confidence,
			needs_review = excluded.needs_review,
			result = excluded.result,
			processed_at = excluded.processed_at,
			ledger_date = excluded.ledger_date`,
		imageID, source, string(result.Status), result.Confidence, result.NeedsReview,
		string(payload), processedAt.UTC(), ledgerDate)
	if err != nil {
		return fmt.Errorf("failed to save result for %s: %w", imageID, err)
	}
	return nil
}

// GetResult returns the stored result for an image.
func (s *SQLiteStorage) GetResult(ctx context.Context, imageID string) (*StoredResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(imageID, "imageID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT image_id, source, result FROM processed_images WHERE image_id = ?`, imageID)
	stored, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %s: %w", imageID, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListResults returns stored results, newest first.
func (s *SQLiteStorage) ListResults(ctx context.Context, filter ListFilter) ([]StoredResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT image_id, source, result FROM processed_images WHERE 1=1`
	var args []any
	if filter.NeedsReviewOnly {
		query += ` AND needs_review = 1`
	}
	if filter.FailedOnly {
		query += ` AND status = ?`
		args = append(args, string(model.StatusFailed))
	}
	query += ` ORDER BY processed_at DESC, image_id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []StoredResult
	for rows.Next() {
		stored, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

// Stats counts processed, failed and review-pending images.
func (s *SQLiteStorage) Stats(ctx context.Context) (Stats, error) {
	if err := validateContext(ctx); err != nil {
		return Stats{}, err
	}

	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(needs_review), 0)
		FROM processed_images`, string(model.StatusFailed)).Scan(&st.Processed, &st.Failed, &st.NeedsReview)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return st, nil
}

// Forget removes one image so the next scan processes it again.
func (s *SQLiteStorage) Forget(ctx context.Context, imageID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(imageID, "imageID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM processed_images WHERE image_id = ?`, imageID)
	if err != nil {
		return fmt.Errorf("failed to forget image %s: %w", imageID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image %s: %w", imageID, common.ErrNotFound)
	}
	return nil
}

// Clear removes every stored result and returns how many were deleted.
func (s *SQLiteStorage) Clear(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM processed_images`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared results: %w", err)
	}
	return n, nil
}

// ErrAmbiguousID is returned when an id prefix matches more than one image.
var ErrAmbiguousID = errors.New("ambiguous image id")

// ResolveID expands an image id prefix, such as the short ids shown in
// listings, to the full stored id.
func (s *SQLiteStorage) ResolveID(ctx context.Context, prefix string) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(prefix, "prefix"); err != nil {
		return "", err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT image_id FROM processed_images WHERE substr(image_id, 1, ?) = ? ORDER BY image_id LIMIT 2`,
		len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image id %s: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to resolve image id %s: %w", prefix, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to resolve image id %s: %w", prefix, err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("image %s: %w", prefix, common.ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*StoredResult, error) {
	var (
		stored  StoredResult
		payload string
	)
	if err := row.Scan(&stored.ImageID, &stored.Source, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &stored.Result); err != nil {
		return nil, fmt.Errorf("%w: result for %s: %v", common.ErrDatabaseCorrupted, stored.ImageID, err)
	}
	return &stored, nil
}
