package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/ledgerscan/internal/common"
	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/Veraticus/ledgerscan/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func ptr(f float64) *float64 { return &f }

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		wantErr error
		config  Config
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "test-secret",
				RefreshToken:  "test-token",
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
		},
		{
			name:    "missing auth",
			config:  Config{BatchSize: 100},
			wantErr: common.ErrMissingConfig,
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:     "test-client",
				RefreshToken: "test-token",
				BatchSize:    100,
			},
			wantErr: common.ErrMissingConfig,
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "zero batch size",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
			},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name: "negative retry attempts",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      -1,
			},
			wantErr: common.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.config.HasAuth())
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultSpreadsheetName, cfg.SpreadsheetName)
	assert.True(t, cfg.EnableFormatting)
	assert.Positive(t, cfg.BatchSize)
	assert.False(t, cfg.HasAuth())
}

func sampleResults() []storage.StoredResult {
	date := "2025-10-15"
	return []storage.StoredResult{
		{
			ImageID: "bbbbbbbbbbbbbbbbbbbb",
			Source:  "/scans/page2.jpg",
			Result: model.Result{
				ID:          "bbbbbbbbbbbbbbbbbbbb",
				Status:      model.StatusSuccess,
				NeedsReview: true,
				Record: &model.LedgerRecord{
					Date: &date,
					Items: []model.LedgerItem{
						{Name: "文正", Amount: 500, Category: model.CategoryIncome},
						{Name: "醬油", Amount: 200, Category: model.CategoryExpense, Discount: 30, NeedsReview: true, ReviewReason: "check"},
					},
					DeclaredTotal:   ptr(600),
					CalculatedTotal: 500,
					CustomFields: model.CustomFields{
						FinalBalance:            480,
						CalculatedTotalDiscount: 30,
					},
					Anomalies: []model.Anomaly{
						{Kind: model.KindTotalMismatch, Severity: model.SeverityError, Message: "total mismatch"},
					},
					HasAnomalies: true,
				},
			},
		},
		{
			ImageID: "aaaa",
			Source:  "/scans/page1.jpg",
			Result: model.Result{
				ID:          "aaaa",
				Status:      model.StatusFailed,
				Error:       "no usable OCR result",
				NeedsReview: true,
			},
		},
	}
}

func TestBuildRows(t *testing.T) {
	exported := time.Date(2025, 10, 16, 9, 30, 0, 0, time.UTC)
	rows := buildRows(sampleResults(), exported)

	require.Len(t, rows, 3+1+3)
	assert.Equal(t, []any{"Ledger Scan Export", "2025-10-16 09:30"}, rows[0])
	assert.Empty(t, rows[1])
	assert.Equal(t, "Image", rows[headerRowIndex][0])
	assert.Len(t, rows[headerRowIndex], len(columns))

	// Undated failure sorts before the dated record.
	failed := rows[3]
	assert.Equal(t, "aaaa", failed[0])
	assert.Equal(t, RowFailed, failed[3])
	assert.Equal(t, "no usable OCR result", failed[12])

	item := rows[4]
	assert.Equal(t, "bbbbbbbbbbbb", item[0])
	assert.Equal(t, "2025-10-15", item[2])
	assert.Equal(t, RowItem, item[3])
	assert.Equal(t, "文正", item[4])
	assert.Equal(t, "income", item[5])
	assert.InDelta(t, 500.0, item[colAmount], 0.001)

	expense := rows[5]
	assert.Equal(t, 30, expense[7])
	assert.Equal(t, true, expense[11])
	assert.Equal(t, "check", expense[12])

	summary := rows[6]
	assert.Equal(t, RowSummary, summary[3])
	assert.InDelta(t, 500.0, summary[colAmount], 0.001)
	assert.InDelta(t, 600.0, summary[colDeclaredTotal], 0.001)
	assert.InDelta(t, 480.0, summary[colFinalBalance], 0.001)
	assert.Equal(t, 1, summary[10])
	assert.Equal(t, "[error] total mismatch", summary[12])

	for i, row := range rows[3:] {
		assert.Len(t, row, len(columns), "row %d", i+3)
	}
}

func TestBuildRows_MissingDeclaredTotalIsBlank(t *testing.T) {
	results := []storage.StoredResult{{
		ImageID: "x",
		Result: model.Result{
			Status: model.StatusSuccess,
			Record: &model.LedgerRecord{},
		},
	}}

	rows := buildRows(results, time.Now())
	require.Len(t, rows, 4)
	assert.Equal(t, "", rows[3][colDeclaredTotal])
	assert.Equal(t, "", rows[3][12])
}

type fakeSheetsAPI struct {
	updates []sheets.ValueRange
	calls   []string
	failGet bool
	mu      sync.Mutex
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, "get")
		if f.failGet {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "format")
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost:
		f.calls = append(f.calls, "create")
		_, _ = w.Write([]byte(`{"spreadsheetId":"new-sheet","spreadsheetUrl":"https://example.test/new-sheet"}`))
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update")
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.updates = append(f.updates, vr)
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected", http.StatusBadRequest)
	}
}

func newTestWriter(t *testing.T, api *fakeSheetsAPI, cfg Config) *Writer {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	w := newWriter(svc, cfg, nil)
	w.now = func() time.Time { return time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC) }
	return w
}

func TestWriter_WriteExistingSpreadsheet(t *testing.T) {
	api := &fakeSheetsAPI{}
	cfg := DefaultConfig()
	cfg.SpreadsheetID = "sheet-1"
	cfg.BatchSize = 4
	cfg.RetryAttempts = 1

	id, err := newTestWriter(t, api, cfg).Write(context.Background(), sampleResults())
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)

	// 7 rows in batches of 4.
	assert.Equal(t, []string{"get", "clear", "update", "update", "format"}, api.calls)
	require.Len(t, api.updates, 2)
	assert.Len(t, api.updates[0].Values, 4)
	assert.Len(t, api.updates[1].Values, 3)
	assert.Equal(t, "文正", api.updates[1].Values[0][4])
}

func TestWriter_CreatesSpreadsheetWithoutFormatting(t *testing.T) {
	api := &fakeSheetsAPI{}
	cfg := DefaultConfig()
	cfg.EnableFormatting = false
	cfg.RetryAttempts = 1

	id, err := newTestWriter(t, api, cfg).Write(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "new-sheet", id)
	assert.Equal(t, []string{"create", "clear", "update"}, api.calls)
}

func TestWriter_InaccessibleSpreadsheet(t *testing.T) {
	api := &fakeSheetsAPI{failGet: true}
	cfg := DefaultConfig()
	cfg.SpreadsheetID = "missing"
	cfg.RetryAttempts = 1

	_, err := newTestWriter(t, api, cfg).Write(context.Background(), sampleResults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to access spreadsheet missing")
	assert.Equal(t, []string{"get"}, api.calls)
}

func TestNewWriter_InvalidConfig(t *testing.T) {
	_, err := NewWriter(context.Background(), DefaultConfig(), nil)
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestTokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}

	require.NoError(t, saveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, loaded.Valid())

	// A valid token is returned without contacting the token endpoint.
	got, err := GetOrCreateToken(context.Background(), OAuth2Config{TokenFile: path})
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)

	_, err = LoadToken(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
