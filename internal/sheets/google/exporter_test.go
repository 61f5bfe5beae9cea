package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"finboard/internal/core"
)

func testTransaction() core.Transaction {
	return core.Transaction{
		ID:            "tx-1",
		Name:          "Spark Electric Solutions",
		Amount:        core.Money{Cents: -10000},
		Date:          time.Date(2024, 8, 2, 9, 0, 0, 0, time.UTC),
		Category:      "Bills",
		RecurringBill: true,
	}
}

func newTestExporter(t *testing.T, handler http.HandlerFunc) *Exporter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	exp, err := NewExporter(context.Background(), Config{
		SpreadsheetID: "sheet-1",
		SheetName:     "Transactions",
		RetryDelay:    time.Millisecond,
	},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return exp
}

func TestExportAppendsRow(t *testing.T) {
	var gotPath, gotQuery string
	var body struct {
		Values [][]any `json:"values"`
	}

	exp := newTestExporter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRows":1}}`))
	})

	require.NoError(t, exp.Export(context.Background(), testTransaction()))

	assert.Contains(t, gotPath, "/v4/spreadsheets/sheet-1/values/")
	assert.True(t, strings.HasSuffix(gotPath, ":append"), "path %q", gotPath)
	assert.Contains(t, gotPath, "2024 Transactions!A:E", "year-prefixed sheet")
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")

	require.Len(t, body.Values, 1)
	want := []any{"2024-08-02", "Spark Electric Solutions", "Bills", "-100.00", true}
	require.GreaterOrEqual(t, len(body.Values[0]), len(want))
	assert.Equal(t, want, body.Values[0][:len(want)])
}

func TestExportRetriesRateLimit(t *testing.T) {
	var calls int32
	exp := newTestExporter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	})

	require.NoError(t, exp.Export(context.Background(), testTransaction()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExportDoesNotRetryOtherErrors(t *testing.T) {
	var calls int32
	exp := newTestExporter(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range"}}`))
	})

	err := exp.Export(context.Background(), testTransaction())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx-1", "error should name the transaction")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewExporterValidation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing spreadsheet", Config{SheetName: "Transactions", CredentialsJSON: "{}"}, "spreadsheet id"},
		{"missing sheet", Config{SpreadsheetID: "x", CredentialsJSON: "{}"}, "sheet name"},
		{"missing credentials", Config{SpreadsheetID: "x", SheetName: "Transactions"}, "credentials"},
		{"unreadable file", Config{SpreadsheetID: "x", SheetName: "Transactions", CredentialsFile: "/nonexistent/sa.json"}, "read service account file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExporter(ctx, tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Transactions", 2024, "2024 Transactions"},
		{"  Transactions ", 2025, "2025 Transactions"},
		{"2023 Transactions", 2024, "2023 Transactions"},
		{"", 2024, ""},
		{"1800 Ledger", 2024, "2024 1800 Ledger"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, yearPrefixedName(tt.base, tt.year), "yearPrefixedName(%q, %d)", tt.base, tt.year)
	}
}
