package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"finboard/internal/core"
	"finboard/internal/filters"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/storage/memory"
)

// Loader returns the transactions a finctl command works on.
type Loader func(ctx context.Context) ([]core.Transaction, error)

type rootOptions struct {
	dataFile string
	asJSON   bool
	now      string
	dueSoon  int

	// load overrides the data file and backend lookup, used by tests.
	load Loader
}

// NewRootCommand builds the finctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "finctl",
		Short: "Query finboard transactions from the command line",
		Long: `finctl runs the finboard transaction filters over a JSON data file
or the storage backend configured in the environment (DATA_BACKEND).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataFile, "data", "", "read transactions from a data.json file instead of the backend")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")

	root.AddCommand(
		newTransactionsCommand(opts),
		newBillsCommand(opts),
		newTotalCommand(opts),
	)
	return root
}

func newTransactionsCommand(opts *rootOptions) *cobra.Command {
	var sort, category, search string
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transactions filtered by category and name, then sorted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseSort(sort)
			if err != nil {
				return err
			}
			txs, err := opts.transactions(cmd)
			if err != nil {
				return err
			}
			rows := filters.Apply(txs, filters.Query{Sort: key, Category: category, Search: search})
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), toRecords(rows, nil))
			}
			return writeTable(cmd.OutOrStdout(), []string{"DATE", "NAME", "CATEGORY", "AMOUNT"}, rows, func(tx core.Transaction) []string {
				return []string{tx.Date.Format("2006-01-02"), tx.Name, tx.Category, tx.Amount.Signed()}
			})
		},
	}
	cmd.Flags().StringVar(&sort, "sort", string(filters.Latest), "sort key: "+sortKeyList())
	cmd.Flags().StringVar(&category, "category", core.AllTransactions, "category to keep")
	cmd.Flags().StringVar(&search, "search", "", "keep names starting with this text")
	return cmd
}

func newBillsCommand(opts *rootOptions) *cobra.Command {
	var sort, search string
	cmd := &cobra.Command{
		Use:   "bills",
		Short: "List recurring bills with their due day and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseSort(sort)
			if err != nil {
				return err
			}
			now, err := opts.clock()
			if err != nil {
				return err
			}
			txs, err := opts.transactions(cmd)
			if err != nil {
				return err
			}

			bills := filters.Bills(txs, filters.Query{Sort: key, Search: search})
			svc := services.NewBillsService(staticSource(txs), services.DayOfMonthClassifier{DueSoonWindow: opts.dueSoon})
			statuses := svc.Statuses(bills, now)
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), toRecords(bills, statuses))
			}

			i := 0
			return writeTable(cmd.OutOrStdout(), []string{"NAME", "DUE", "STATUS", "AMOUNT"}, bills, func(tx core.Transaction) []string {
				row := []string{tx.Name, services.DueLabel(tx), string(statuses[i]), tx.Amount.Abs().String()}
				i++
				return row
			})
		},
	}
	cmd.Flags().StringVar(&sort, "sort", string(filters.Latest), "sort key: "+sortKeyList())
	cmd.Flags().StringVar(&search, "search", "", "keep bills whose name starts with this text")
	cmd.Flags().StringVar(&opts.now, "now", "", "reference date (YYYY-MM-DD) for bill status, default today")
	cmd.Flags().IntVar(&opts.dueSoon, "due-soon", services.DefaultDueSoonWindow, "days ahead a bill counts as due soon")
	return cmd
}

func newTotalCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "total",
		Short: "Print the recurring bills total and the paid/upcoming/due soon summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := opts.clock()
			if err != nil {
				return err
			}
			txs, err := opts.transactions(cmd)
			if err != nil {
				return err
			}

			total := filters.RecurringBillTotal(txs)
			sum := services.NewBillsService(staticSource(txs), services.DayOfMonthClassifier{DueSoonWindow: opts.dueSoon}).
				Summary(cmd.Context(), now)

			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, map[string]any{
					"total":         total.Dollars(),
					"paidCount":     sum.PaidCount,
					"paidTotal":     sum.PaidTotal.Dollars(),
					"upcomingCount": sum.UpcomingCount,
					"upcomingTotal": sum.UpcomingTotal.Dollars(),
					"dueSoonCount":  sum.DueSoonCount,
					"dueSoonTotal":  sum.DueSoonTotal.Dollars(),
				})
			}
			fmt.Fprintf(out, "Total Bills     %s\n", total)
			fmt.Fprintf(out, "Paid Bills      %d (%s)\n", sum.PaidCount, sum.PaidTotal)
			fmt.Fprintf(out, "Total Upcoming  %d (%s)\n", sum.UpcomingCount, sum.UpcomingTotal)
			fmt.Fprintf(out, "Due Soon        %d (%s)\n", sum.DueSoonCount, sum.DueSoonTotal)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.now, "now", "", "reference date (YYYY-MM-DD) for bill status, default today")
	cmd.Flags().IntVar(&opts.dueSoon, "due-soon", services.DefaultDueSoonWindow, "days ahead a bill counts as due soon")
	return cmd
}

func (o *rootOptions) clock() (time.Time, error) {
	if o.now == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", o.now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: want YYYY-MM-DD", o.now)
	}
	return t, nil
}

func (o *rootOptions) transactions(cmd *cobra.Command) ([]core.Transaction, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	switch {
	case o.load != nil:
		return o.load(ctx)
	case o.dataFile != "":
		ds, err := memory.ReadDatasetFile(o.dataFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", o.dataFile, err)
		}
		return ds.CoreTransactions(), nil
	default:
		return loadFromBackend(ctx, cmd.ErrOrStderr())
	}
}

func loadFromBackend(ctx context.Context, stderr io.Writer) ([]core.Transaction, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{
		Level:     slog.LevelWarn,
		Component: log.ComponentCLI,
		Output:    stderr,
	})
	store, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ListTransactions(ctx)
}

// parseSort is strict: a CLI typo should fail loudly instead of silently
// sorting by date.
func parseSort(raw string) (filters.SortKey, error) {
	key, err := filters.ParseSortKey(raw)
	if err != nil {
		return "", fmt.Errorf("%w (valid: %s)", err, sortKeyList())
	}
	return key, nil
}

func sortKeyList() string {
	keys := make([]string, len(filters.SortKeys))
	for i, k := range filters.SortKeys {
		keys[i] = string(k)
	}
	return strings.Join(keys, ", ")
}

type staticSource []core.Transaction

func (s staticSource) Snapshot(context.Context) core.Snapshot {
	return core.Snapshot{Transactions: s}
}

type record struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Date      string              `json:"date"`
	Category  string              `json:"category"`
	Amount    float64             `json:"amount"`
	Recurring bool                `json:"recurringBill"`
	Due       string              `json:"due,omitempty"`
	Status    services.BillStatus `json:"status,omitempty"`
}

func toRecords(txs []core.Transaction, statuses []services.BillStatus) []record {
	out := make([]record, len(txs))
	for i, tx := range txs {
		out[i] = record{
			ID:        tx.ID,
			Name:      tx.Name,
			Date:      tx.Date.Format("2006-01-02"),
			Category:  tx.Category,
			Amount:    tx.Amount.Dollars(),
			Recurring: tx.RecurringBill,
		}
		if statuses != nil {
			out[i].Due = services.DueLabel(tx)
			out[i].Status = statuses[i]
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, header []string, txs []core.Transaction, row func(core.Transaction) []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, tx := range txs {
		fmt.Fprintln(tw, strings.Join(row(tx), "\t"))
	}
	return tw.Flush()
}
