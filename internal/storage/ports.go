// Package storage defines the outbound ports of the rollup service.
// Adapters live in the memory, sqlite and postgres subpackages.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"chantier/internal/core"
)

type (
	// LedgerReader loads the full ledger of one project: every contract
	// with its allocations, invoices and payments. No filtering and no
	// pagination; the ledger is bounded per project.
	LedgerReader interface {
		GetProject(ctx context.Context, projectID string) (core.Project, error)
		// ContractsWithLedger returns the project's contracts with nested
		// allocations, invoices and payments.
		ContractsWithLedger(ctx context.Context, projectID string) ([]core.Contract, error)
		ListBudgetLines(ctx context.Context, projectID string) ([]core.BudgetLine, error)
	}

	// BudgetWriter persists the derived totals on a budget line. The write
	// is a plain overwrite; every line of the project gets written on each
	// rollup, including all-zero lines.
	BudgetWriter interface {
		UpdateBudgetTotals(ctx context.Context, budgetLineID string, engaged, invoiced, paid decimal.Decimal) error
	}

	// RollupStore is what a rollup run needs.
	RollupStore interface {
		LedgerReader
		BudgetWriter
	}

	// Store is the full ledger store used by the service and reporting
	// layers.
	Store interface {
		RollupStore

		CreateProject(ctx context.Context, p core.Project) error
		ListProjects(ctx context.Context, organizationID string) ([]core.Project, error)

		CreateBudgetLine(ctx context.Context, line core.BudgetLine) error

		// CreateContract persists the contract together with its allocations.
		CreateContract(ctx context.Context, c core.Contract) error
		GetContract(ctx context.Context, contractID string) (core.Contract, error)
		ListContracts(ctx context.Context, projectID string) ([]core.Contract, error)

		CreateChangeOrder(ctx context.Context, co core.ChangeOrder) error
		CreateWorkProgress(ctx context.Context, wp core.WorkProgress) error

		CreateInvoice(ctx context.Context, inv core.Invoice) error
		GetInvoice(ctx context.Context, invoiceID string) (core.Invoice, error)

		CreatePayment(ctx context.Context, p core.Payment) error
		SumPayments(ctx context.Context, invoiceID string) (decimal.Decimal, error)
		SetInvoiceStatus(ctx context.Context, invoiceID string, status core.InvoiceStatus) error

		Close() error
	}
)
