package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"finboard/internal/core"
)

// Dataset is the on-disk JSON layout of data/data.json. Amounts are in
// dollars, dates in RFC 3339.
type Dataset struct {
	Transactions []jsonTransaction `json:"transactions"`
	Pots         []jsonPot         `json:"pots"`
	Budgets      []jsonBudget      `json:"budgets"`
}

type jsonTransaction struct {
	ID        string    `json:"id,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Date      time.Time `json:"date"`
	Amount    float64   `json:"amount"`
	Recurring bool      `json:"recurring"`
}

type jsonPot struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name"`
	Target float64 `json:"target"`
	Total  float64 `json:"total"`
	Theme  string  `json:"theme"`
}

type jsonBudget struct {
	Category string  `json:"category"`
	Maximum  float64 `json:"maximum"`
	Theme    string  `json:"theme"`
}

func cents(dollars float64) core.Money {
	return core.Money{Cents: int64(math.Round(dollars * 100))}
}

// ReadDataset decodes a dataset from r.
func ReadDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

// ReadDatasetFile decodes the dataset stored at path.
func ReadDatasetFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()
	return ReadDataset(f)
}

// CoreTransactions converts the JSON rows, assigning positional ids where the
// file has none.
func (ds Dataset) CoreTransactions() []core.Transaction {
	out := make([]core.Transaction, len(ds.Transactions))
	for i, t := range ds.Transactions {
		id := t.ID
		if id == "" {
			id = fmt.Sprintf("tx-%d", i+1)
		}
		out[i] = core.Transaction{
			ID:            id,
			Name:          t.Name,
			Amount:        cents(t.Amount),
			Date:          t.Date,
			Category:      t.Category,
			RecurringBill: t.Recurring,
			Avatar:        t.Avatar,
		}
	}
	return out
}

func (ds Dataset) CorePots() []core.Pot {
	out := make([]core.Pot, len(ds.Pots))
	for i, p := range ds.Pots {
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("pot-%d", i+1)
		}
		out[i] = core.Pot{
			ID:     id,
			Name:   p.Name,
			Target: cents(p.Target),
			Total:  cents(p.Total),
			Theme:  p.Theme,
		}
	}
	return out
}

func (ds Dataset) CoreBudgets() []core.Budget {
	out := make([]core.Budget, len(ds.Budgets))
	for i, b := range ds.Budgets {
		out[i] = core.Budget{
			Category: b.Category,
			Maximum:  cents(b.Maximum),
			Theme:    b.Theme,
		}
	}
	return out
}
