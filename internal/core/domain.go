package core

import (
	"errors"
	"strings"
	"time"
)

// AllTransactions is the category sentinel that disables category filtering.
const AllTransactions = "All Transactions"

const maxNameLength = 200

type (
	Money struct {
		Cents int64
	}

	// Transaction is a single ledger entry. Negative amounts are outgoing.
	Transaction struct {
		ID            string
		Name          string
		Amount        Money
		Date          time.Time
		Category      string
		RecurringBill bool
		Avatar        string // optional image path shown next to the name
	}

	// Pot is a named savings allocation.
	Pot struct {
		ID     string
		Name   string
		Target Money
		Total  Money
		Theme  string // CSS colour, e.g. "#277C78"
	}

	// Budget caps monthly spending for one category.
	Budget struct {
		Category string
		Maximum  Money
		Theme    string
	}

	// Snapshot is an immutable point-in-time copy of transaction data.
	// Loading means the data may be incomplete and should not be filtered yet.
	Snapshot struct {
		Transactions []Transaction
		Loading      bool
		FetchedAt    time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyName     = errors.New("empty name")
	ErrNameTooLong   = errors.New("name too long (max 200 characters)")
	ErrEmptyCategory = errors.New("empty category")
	ErrZeroDate      = errors.New("date cannot be zero")
	ErrInvalidTarget = errors.New("target must be positive")
	ErrNotFound      = errors.New("not found")
)

func (m Money) Validate() error {
	if m.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if err := validateName(t.Name); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsExpense reports whether money leaves the account.
func (t Transaction) IsExpense() bool {
	return t.Amount.Cents < 0
}

func (p Pot) Validate() error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if p.Target.Cents <= 0 {
		return ErrInvalidTarget
	}
	return nil
}

// Progress returns how much of the target is saved, as a percentage in [0,100].
func (p Pot) Progress() float64 {
	if p.Target.Cents <= 0 || p.Total.Cents <= 0 {
		return 0
	}
	pct := float64(p.Total.Cents) * 100 / float64(p.Target.Cents)
	if pct > 100 {
		return 100
	}
	return pct
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Maximum.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}
