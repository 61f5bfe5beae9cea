// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring bill status.
// A StatusClassifier decides whether a bill is paid, upcoming or due soon
// in the month of a given instant.

package services

import (
	"context"
	"fmt"
	"time"

	"finboard/internal/core"
	"finboard/internal/filters"
	"finboard/internal/ports"
)

// BillStatus is the state of a recurring bill within the current month.
type BillStatus string

const (
	StatusPaid     BillStatus = "paid"
	StatusUpcoming BillStatus = "upcoming"
	StatusDueSoon  BillStatus = "dueSoon"
)

// DefaultDueSoonWindow is the number of days ahead a bill counts as due soon.
const DefaultDueSoonWindow = 5

// StatusClassifier is the strategy interface for bill status.
type StatusClassifier interface {
	Classify(bill core.Transaction, now time.Time) BillStatus
}

// DayOfMonthClassifier treats each recurring bill as falling due on the day of
// month of its date.
type DayOfMonthClassifier struct {
	DueSoonWindow int
}

// Classify returns paid once the due day has been reached this month.
func (c DayOfMonthClassifier) Classify(bill core.Transaction, now time.Time) BillStatus {
	due := DueDay(bill.Date, now)
	today := now.Day()
	if due <= today {
		return StatusPaid
	}
	window := c.DueSoonWindow
	if window <= 0 {
		window = DefaultDueSoonWindow
	}
	if due-today <= window {
		return StatusDueSoon
	}
	return StatusUpcoming
}

// DueDay returns the day of month the bill falls due in the month of now,
// clamped to the last day of that month.
func DueDay(date, now time.Time) int {
	day := date.Day()
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	if day > lastDayOfMonth {
		return lastDayOfMonth
	}
	return day
}

// Ordinal formats day as "1st", "2nd", "3rd", "4th", "11th", "22nd"...
func Ordinal(day int) string {
	suffix := "th"
	switch day % 100 {
	case 11, 12, 13:
	default:
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", day, suffix)
}

// DueLabel returns the "Monthly - 1st" text shown next to a bill.
func DueLabel(bill core.Transaction) string {
	return "Monthly - " + Ordinal(bill.Date.Day())
}

// BillsService derives bill summaries from the current snapshot.
type BillsService struct {
	source     ports.SnapshotSource
	classifier StatusClassifier
}

func NewBillsService(source ports.SnapshotSource, classifier StatusClassifier) *BillsService {
	if classifier == nil {
		classifier = DayOfMonthClassifier{DueSoonWindow: DefaultDueSoonWindow}
	}
	return &BillsService{source: source, classifier: classifier}
}

// Bills returns the distinct recurring bills of the snapshot, one per name,
// keeping the latest occurrence.
func (s *BillsService) Bills(ctx context.Context) []core.Transaction {
	return LatestByName(filters.FilterByRecurringBill(s.source.Snapshot(ctx).Transactions))
}

// Summary classifies every distinct recurring bill against now and sums the
// absolute amounts per status. Due-soon bills are counted as upcoming too.
func (s *BillsService) Summary(ctx context.Context, now time.Time) core.BillsSummary {
	var sum core.BillsSummary
	for _, bill := range s.Bills(ctx) {
		amount := bill.Amount.Abs()
		switch s.classifier.Classify(bill, now) {
		case StatusPaid:
			sum.PaidCount++
			sum.PaidTotal = sum.PaidTotal.Add(amount)
		case StatusDueSoon:
			sum.DueSoonCount++
			sum.DueSoonTotal = sum.DueSoonTotal.Add(amount)
			fallthrough
		case StatusUpcoming:
			sum.UpcomingCount++
			sum.UpcomingTotal = sum.UpcomingTotal.Add(amount)
		}
	}
	return sum
}

// Statuses returns the status of each bill, index-aligned with bills.
func (s *BillsService) Statuses(bills []core.Transaction, now time.Time) []BillStatus {
	out := make([]BillStatus, len(bills))
	for i, b := range bills {
		out[i] = s.classifier.Classify(b, now)
	}
	return out
}

// LatestByName collapses bills sharing a name into the most recent one,
// preserving the order in which names first appear.
func LatestByName(bills []core.Transaction) []core.Transaction {
	index := make(map[string]int, len(bills))
	out := make([]core.Transaction, 0, len(bills))
	for _, b := range bills {
		i, seen := index[b.Name]
		if !seen {
			index[b.Name] = len(out)
			out = append(out, b)
			continue
		}
		if b.Date.After(out[i].Date) {
			out[i] = b
		}
	}
	return out
}
