package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/ledgerscan/internal/model"
	"github.com/Veraticus/ledgerscan/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	require.NoError(t, os.WriteFile(path, []byte("10/15\n文正 500\n"), 0o600))

	data, source, err := readInput(path)
	require.NoError(t, err)
	assert.Equal(t, path, source)
	assert.Equal(t, "10/15\n文正 500\n", string(data))

	_, _, err = readInput(filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteJSON_KeepsUnicodeAndAngles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]string{"name": "文正 <x>"}))
	assert.Equal(t, "{\n  \"name\": \"文正 <x>\"\n}\n", buf.String())
}

func TestPrintScanSummary(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []scan.Outcome
		want     string
	}{
		{
			name:     "empty",
			outcomes: nil,
			want:     "0 processed, 0 skipped, 0 failed, 0 need review",
		},
		{
			name: "mixed",
			outcomes: []scan.Outcome{
				{Result: model.Result{Status: model.StatusSuccess}},
				{Result: model.Result{Status: model.StatusSuccess, NeedsReview: true}},
				{Result: model.Result{Status: model.StatusSuccess}, Skipped: true},
				{Result: model.Result{Status: model.StatusFailed}},
			},
			want: "2 processed, 1 skipped, 1 failed, 1 need review",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printScanSummary(&buf, tt.outcomes)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
