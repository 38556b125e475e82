package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chantier/internal/core"
	"chantier/internal/storage"
)

// Service runs project rollups against a ledger store.
//
// Runs for the same project are serialized through a per-project mutex so a
// slower run working from a stale ledger snapshot cannot overwrite the result
// of a fresher one. Runs for different projects proceed concurrently.
type Service struct {
	store storage.RollupStore

	mu        sync.Mutex
	projLocks map[string]*sync.Mutex
}

func New(store storage.RollupStore) *Service {
	return &Service{
		store:     store,
		projLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projLocks[projectID]; !ok {
		s.projLocks[projectID] = &sync.Mutex{}
	}
	return s.projLocks[projectID]
}

// Run recomputes and persists every budget-line total of the project and
// returns the lines with their fresh totals.
//
// The per-line writes are not atomic as a group: if one write fails the lines
// already written keep their new values and the error is returned as is.
func (s *Service) Run(ctx context.Context, projectID string) ([]core.BudgetLine, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	contracts, err := s.store.ContractsWithLedger(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	lines, err := s.store.ListBudgetLines(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load budget lines: %w", err)
	}

	lineIDs := make([]string, len(lines))
	for i, l := range lines {
		lineIDs[i] = l.ID
	}

	totals := Compute(contracts, lineIDs)

	for i := range lines {
		t := totals[lines[i].ID]
		if err := s.store.UpdateBudgetTotals(ctx, lines[i].ID, t.Engaged, t.Invoiced, t.Paid); err != nil {
			return nil, fmt.Errorf("write totals for %s: %w", lines[i].Code, err)
		}
		lines[i].EngagedTotal = t.Engaged
		lines[i].InvoicedTotal = t.Invoiced
		lines[i].PaidTotal = t.Paid
	}

	slog.InfoContext(ctx, "Budget rollup completed",
		"project_id", projectID,
		"contracts", len(contracts),
		"budget_lines", len(lines))

	return lines, nil
}
