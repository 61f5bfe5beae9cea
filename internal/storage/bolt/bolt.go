// Package bolt stores dashboard data in a single bbolt file.
//
// Layout:
//
//	transactions/rows           seq -> JSON record (insertion order)
//	transactions/byID           id  -> seq
//	transactions/pending        seq -> id, rows not yet exported
//	pots                        id  -> JSON
//	budgets                     category -> JSON
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"finboard/internal/core"
	"finboard/internal/ports"
)

var (
	transactionsBucketName = []byte("transactions")
	rowsBucketName         = []byte("rows")
	byIDBucketName         = []byte("byID")
	pendingBucketName      = []byte("pending")
	potsBucketName         = []byte("pots")
	budgetsBucketName      = []byte("budgets")
)

type Store struct {
	db *bolt.DB
}

var (
	_ ports.Store          = (*Store)(nil)
	_ ports.PendingExports = (*Store)(nil)
	_ ports.Seeder         = (*Store)(nil)
)

type record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Cents     int64     `json:"amount_cents"`
	Date      time.Time `json:"date"`
	Category  string    `json:"category"`
	Recurring bool      `json:"recurring"`
	Avatar    string    `json:"avatar,omitempty"`
}

func toRecord(tx core.Transaction) record {
	return record{
		ID:        tx.ID,
		Name:      tx.Name,
		Cents:     tx.Amount.Cents,
		Date:      tx.Date.UTC(),
		Category:  tx.Category,
		Recurring: tx.RecurringBill,
		Avatar:    tx.Avatar,
	}
}

func (r record) transaction() core.Transaction {
	return core.Transaction{
		ID:            r.ID,
		Name:          r.Name,
		Amount:        core.Money{Cents: r.Cents},
		Date:          r.Date,
		Category:      r.Category,
		RecurringBill: r.Recurring,
		Avatar:        r.Avatar,
	}
}

// Open opens (or creates) the database at path and prepares its buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		tBucket, err := tx.CreateBucketIfNotExists(transactionsBucketName)
		if err != nil {
			return err
		}
		for _, name := range [][]byte{rowsBucketName, byIDBucketName, pendingBucketName} {
			if _, err := tBucket.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		if _, err := tx.CreateBucketIfNotExists(potsBucketName); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(budgetsBucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	txs := []core.Transaction{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(transactionsBucketName).Bucket(rowsBucketName).ForEach(func(_, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			txs = append(txs, r.transaction())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// SaveTransaction inserts tx or replaces the row with the same id in place.
// New rows are pending export; replaced rows keep their export state.
func (s *Store) SaveTransaction(_ context.Context, t core.Transaction) error {
	raw, err := json.Marshal(toRecord(t))
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		tBucket := tx.Bucket(transactionsBucketName)
		rows := tBucket.Bucket(rowsBucketName)
		byID := tBucket.Bucket(byIDBucketName)

		if key := byID.Get([]byte(t.ID)); key != nil {
			return rows.Put(append([]byte(nil), key...), raw)
		}

		seq, err := rows.NextSequence()
		if err != nil {
			return err
		}
		key := itob(seq)
		if err := rows.Put(key, raw); err != nil {
			return err
		}
		if err := byID.Put([]byte(t.ID), key); err != nil {
			return err
		}
		return tBucket.Bucket(pendingBucketName).Put(key, []byte(t.ID))
	})
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	var r record
	err := s.db.View(func(tx *bolt.Tx) error {
		tBucket := tx.Bucket(transactionsBucketName)
		key := tBucket.Bucket(byIDBucketName).Get([]byte(id))
		if key == nil {
			return core.ErrNotFound
		}
		return json.Unmarshal(tBucket.Bucket(rowsBucketName).Get(key), &r)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return r.transaction(), nil
}

func (s *Store) ListPendingExport(_ context.Context, limit int) ([]core.Transaction, error) {
	var txs []core.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		tBucket := tx.Bucket(transactionsBucketName)
		rows := tBucket.Bucket(rowsBucketName)
		c := tBucket.Bucket(pendingBucketName).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if limit > 0 && len(txs) >= limit {
				break
			}
			var r record
			if err := json.Unmarshal(rows.Get(k), &r); err != nil {
				return err
			}
			txs = append(txs, r.transaction())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	return txs, nil
}

func (s *Store) MarkExported(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		tBucket := tx.Bucket(transactionsBucketName)
		key := tBucket.Bucket(byIDBucketName).Get([]byte(id))
		if key == nil {
			return core.ErrNotFound
		}
		return tBucket.Bucket(pendingBucketName).Delete(key)
	})
}

func (s *Store) ListPots(_ context.Context) ([]core.Pot, error) {
	var pots []core.Pot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(potsBucketName).ForEach(func(_, v []byte) error {
			var p core.Pot
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			pots = append(pots, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list pots: %w", err)
	}
	return pots, nil
}

func (s *Store) SavePot(_ context.Context, p core.Pot) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(potsBucketName).Put([]byte(p.ID), raw)
	})
}

func (s *Store) ListBudgets(_ context.Context) ([]core.Budget, error) {
	var budgets []core.Budget
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(budgetsBucketName).ForEach(func(_, v []byte) error {
			var b core.Budget
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			budgets = append(budgets, b)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (s *Store) SaveBudget(_ context.Context, b core.Budget) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(budgetsBucketName).Put([]byte(b.Category), raw)
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
