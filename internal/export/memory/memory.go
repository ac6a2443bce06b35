// Package memory is an in-process StatementWriter used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"spendview/internal/core"
)

type Batch struct {
	AsOf       string
	Statements []core.CardStatement
}

type Store struct {
	mu      sync.Mutex
	batches []Batch
}

func New() *Store {
	return &Store{}
}

// AppendStatements stores the batch.
func (s *Store) AppendStatements(_ context.Context, asOf string, statements []core.CardStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]core.CardStatement, len(statements))
	copy(copied, statements)
	s.batches = append(s.batches, Batch{AsOf: asOf, Statements: copied})
	return nil
}

// Batches returns everything appended so far.
func (s *Store) Batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Batch, len(s.batches))
	copy(out, s.batches)
	return out
}
