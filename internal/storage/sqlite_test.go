package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStorage opens a migrated in-memory store.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func successResult(id string, at time.Time, needsReview bool) model.Result {
	date := "2025-10-15"
	declared := 1000.0
	return model.Result{
		ID:          id,
		Status:      model.StatusSuccess,
		Confidence:  0.82,
		NeedsReview: needsReview,
		ProcessedAt: at,
		Record: &model.LedgerRecord{
			Date:          &date,
			DeclaredTotal: &declared,
			Items: []model.LedgerItem{
				{Name: "文正", Amount: 500, Category: model.CategoryIncome},
				{Name: "惠瑛", Amount: 500, Category: model.CategoryIncome},
			},
			Anomalies:       []model.Anomaly{},
			CalculatedTotal: 1000,
			Validated:       true,
		},
	}
}

func TestMigrate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	var version int
	require.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))

	var indexCount int
	require.NoError(t, store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name='idx_processed_images_ledger_date'`).Scan(&indexCount))
	assert.Equal(t, 1, indexCount)
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledgerscan.db")

	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Equal(t, path, store.Path())
	assert.FileExists(t, path)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage(" ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestMarkProcessedAndGetResult(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	at := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)

	processed, err := store.IsProcessed(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, processed)

	want := successResult("abc123", at, false)
	require.NoError(t, store.MarkProcessed(ctx, "abc123", "photos/a.jpg", want))

	processed, err = store.IsProcessed(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, processed)

	got, err := store.GetResult(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.ImageID)
	assert.Equal(t, "photos/a.jpg", got.Source)
	assert.Equal(t, want.Status, got.Result.Status)
	assert.Equal(t, want.Confidence, got.Result.Confidence)
	assert.True(t, want.ProcessedAt.Equal(got.Result.ProcessedAt))
	require.NotNil(t, got.Result.Record)
	assert.Equal(t, *want.Record, *got.Result.Record)
}

func TestMarkProcessed_ReplacesEarlierResult(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	at := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.MarkProcessed(ctx, "img", "a.jpg", model.Failed("img", "no usable OCR result")))
	require.NoError(t, store.MarkProcessed(ctx, "img", "a.jpg", successResult("img", at, false)))

	got, err := store.GetResult(ctx, "img")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Result.Status)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 1}, stats)
}

func TestMarkProcessed_RejectsIncompleteResults(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		id     string
		result model.Result
		want   error
	}{
		{name: "empty id", id: "", result: model.Failed("", "boom"), want: ErrEmptyString},
		{name: "success without record", id: "a", result: model.Result{Status: model.StatusSuccess}, want: ErrInvalidResult},
		{name: "failure without message", id: "a", result: model.Result{Status: model.StatusFailed}, want: ErrInvalidResult},
		{name: "unknown status", id: "a", result: model.Result{Status: "pending"}, want: ErrInvalidResult},
		{
			name:   "confidence out of range",
			id:     "a",
			result: model.Result{Status: model.StatusFailed, Error: "x", Confidence: 1.5},
			want:   ErrInvalidResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.MarkProcessed(ctx, tt.id, "", tt.result)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetResult_NotFound(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.GetResult(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListResultsAndStats(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.MarkProcessed(ctx, "first", "1.jpg", successResult("first", base, false)))
	require.NoError(t, store.MarkProcessed(ctx, "second", "2.jpg", successResult("second", base.Add(time.Hour), true)))
	failed := model.Failed("third", "no usable OCR result")
	failed.ProcessedAt = base.Add(2 * time.Hour)
	require.NoError(t, store.MarkProcessed(ctx, "third", "3.jpg", failed))

	all, err := store.ListResults(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{all[0].ImageID, all[1].ImageID, all[2].ImageID})

	review, err := store.ListResults(ctx, ListFilter{NeedsReviewOnly: true})
	require.NoError(t, err)
	require.Len(t, review, 2)
	assert.Equal(t, "third", review[0].ImageID)
	assert.Equal(t, "second", review[1].ImageID)

	onlyFailed, err := store.ListResults(ctx, ListFilter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, "no usable OCR result", onlyFailed[0].Result.Error)

	limited, err := store.ListResults(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "third", limited[0].ImageID)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Processed: 3, Failed: 1, NeedsReview: 2}, stats)
}

func TestForgetAndClear(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	at := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.MarkProcessed(ctx, "a", "a.jpg", successResult("a", at, false)))
	require.NoError(t, store.MarkProcessed(ctx, "b", "b.jpg", successResult("b", at, false)))

	require.NoError(t, store.Forget(ctx, "a"))
	processed, err := store.IsProcessed(ctx, "a")
	require.NoError(t, err)
	assert.False(t, processed)
	assert.ErrorIs(t, store.Forget(ctx, "a"), common.ErrNotFound)

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestResolveID(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	now := time.Now()

	for _, id := range []string{"abc123", "abc456", "def789"} {
		require.NoError(t, store.MarkProcessed(ctx, id, id+".jpg", successResult(id, now, false)))
	}

	tests := []struct {
		wantErr error
		name    string
		prefix  string
		want    string
	}{
		{name: "full id", prefix: "abc123", want: "abc123"},
		{name: "unique prefix", prefix: "de", want: "def789"},
		{name: "ambiguous prefix", prefix: "abc", wantErr: ErrAmbiguousID},
		{name: "no match", prefix: "zzz", wantErr: common.ErrNotFound},
		{name: "longer than any id", prefix: "abc1234", wantErr: common.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ResolveID(ctx, tt.prefix)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := store.ResolveID(ctx, "")
	require.ErrorIs(t, err, ErrEmptyString)
}
