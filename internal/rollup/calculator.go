// Package rollup recomputes the derived CFC budget-line totals of a project
// from its contract ledger. Every run reads the full ledger and rebuilds the
// totals from scratch; there is no incremental path.
package rollup

import (
	"github.com/shopspring/decimal"

	"chantier/internal/core"
)

// Totals holds the three derived aggregates of one budget line.
type Totals struct {
	Engaged  decimal.Decimal
	Invoiced decimal.Decimal
	Paid     decimal.Decimal
}

// Compute reduces the project ledger into per-budget-line totals.
//
// Engaged is the sum of allocation amounts pointing at the line. Invoiced and
// Paid attribute a contract's entire invoiced and paid sums to every line the
// contract is allocated to: a contract funding two lines shows its full
// invoiced amount on both, so the per-line totals can exceed the contract's
// real invoiced amount. Reporting reads this as "how much flowed through
// contracts touching this code"; do not change it to a proportional split
// without a product decision.
//
// Change-order deltas are not folded into the engaged totals; they only exist
// on the contract view.
//
// Every requested line appears in the result, zero-valued when no contract
// touches it, so stale persisted totals get cleared on the next write.
func Compute(contracts []core.Contract, lineIDs []string) map[string]Totals {
	totals := make(map[string]Totals, len(lineIDs))
	for _, id := range lineIDs {
		totals[id] = Totals{Engaged: decimal.Zero, Invoiced: decimal.Zero, Paid: decimal.Zero}
	}

	for _, ct := range contracts {
		invoiced := decimal.Zero
		paid := decimal.Zero
		for _, inv := range ct.Invoices {
			invoiced = invoiced.Add(inv.AmountInclVAT)
			for _, p := range inv.Payments {
				paid = paid.Add(p.Amount)
			}
		}

		touched := make(map[string]bool)
		for _, a := range ct.Allocations {
			t, ok := totals[a.BudgetLineID]
			if !ok {
				// Allocation to a line outside the requested set; skip.
				continue
			}
			t.Engaged = t.Engaged.Add(a.Amount)
			totals[a.BudgetLineID] = t
			touched[a.BudgetLineID] = true
		}

		for id := range touched {
			t := totals[id]
			t.Invoiced = t.Invoiced.Add(invoiced)
			t.Paid = t.Paid.Add(paid)
			totals[id] = t
		}
	}

	return totals
}
