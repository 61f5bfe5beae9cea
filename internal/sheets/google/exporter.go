// Package google mirrors recorded transactions into a Google Sheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finboard/internal/core"
	"finboard/internal/ports"
)

const defaultRetryDelay = 30 * time.Second

type Config struct {
	SpreadsheetID string
	// SheetName is the tab base name; the transaction's year is prefixed,
	// e.g. "Transactions" becomes "2024 Transactions".
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	RetryDelay      time.Duration
	RetryAttempts   uint
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	retryDelay    time.Duration
	attempts      uint
	logger        *slog.Logger
}

var _ ports.TransactionExporter = (*Exporter)(nil)

// NewExporter builds an exporter from service account credentials. Extra
// client options are applied after the credentials, so callers may point the
// client at another endpoint or supply their own auth.
func NewExporter(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}

	credentials, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	if credentials == nil && len(opts) == 0 {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	var clientOpts []goption.ClientOption
	if credentials != nil {
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     strings.TrimSpace(cfg.SheetName),
		retryDelay:    cfg.RetryDelay,
		attempts:      cfg.RetryAttempts,
		logger:        slog.Default().With("component", "sheets"),
	}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

// Export appends one row for tx. Rate-limited calls are retried.
func (e *Exporter) Export(ctx context.Context, tx core.Transaction) error {
	writeRange := fmt.Sprintf("%s!A:E", yearPrefixedName(e.sheetName, tx.Date.Year()))
	writeReq := gsheet.ValueRange{
		Values: [][]any{exportRow(tx)},
	}

	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, writeRange, &writeReq).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				e.logger.Warn("rate limited, will retry", "error", err, "transaction_id", tx.ID)
				return true
			}
			return false
		}),
		retry.Attempts(e.attempts),
		retry.Delay(e.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("append %s to %s: %w", tx.ID, writeRange, err)
	}

	e.logger.InfoContext(ctx, "exported transaction", "transaction_id", tx.ID, "range", writeRange)
	return nil
}

// exportRow lays out [date, name, category, amount, recurring].
func exportRow(tx core.Transaction) []any {
	return []any{
		tx.Date.Format("2006-01-02"),
		tx.Name,
		tx.Category,
		strconv.FormatFloat(tx.Amount.Dollars(), 'f', 2, 64),
		tx.RecurringBill,
	}
}

// yearPrefixedName returns base with the year prepended unless it already
// starts with one ("2024 Transactions").
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
