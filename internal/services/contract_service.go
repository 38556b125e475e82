// Package services orchestrates ledger mutations: each write goes to the
// store, then the project rollup runs inline before the call returns, then a
// ledger-changed event is published for the reconciliation worker.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chantier/internal/amqp"
	"chantier/internal/core"
	"chantier/internal/rollup"
	"chantier/internal/storage"
)

type ContractService struct {
	store  storage.Store
	rollup *rollup.Service
	events *amqp.Client // optional; nil when AMQP is not configured
}

func NewContractService(store storage.Store, rollupSvc *rollup.Service, events *amqp.Client) *ContractService {
	return &ContractService{
		store:  store,
		rollup: rollupSvc,
		events: events,
	}
}

// CreateProject registers a new project root.
func (s *ContractService) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if p.Status == "" {
		p.Status = "PLANNING"
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	p.ID = uuid.New().String()
	if err := s.store.CreateProject(ctx, p); err != nil {
		return core.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// CreateBudgetLine adds a CFC line to a project with zeroed totals.
func (s *ContractService) CreateBudgetLine(ctx context.Context, line core.BudgetLine) (core.BudgetLine, error) {
	if err := line.Validate(); err != nil {
		return core.BudgetLine{}, err
	}
	if _, err := s.store.GetProject(ctx, line.ProjectID); err != nil {
		return core.BudgetLine{}, err
	}
	line.ID = uuid.New().String()
	if line.BudgetRevised.IsZero() {
		line.BudgetRevised = line.BudgetInitial
	}
	if err := s.store.CreateBudgetLine(ctx, line); err != nil {
		return core.BudgetLine{}, fmt.Errorf("create budget line: %w", err)
	}
	return line, nil
}

// CreateContract persists a contract with its allocations and rolls up the
// project budget before returning.
func (s *ContractService) CreateContract(ctx context.Context, projectID string, c core.Contract) (core.Contract, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return core.Contract{}, err
	}

	c.ID = uuid.New().String()
	c.ProjectID = projectID
	if c.Type == "" {
		c.Type = core.DefaultContractType
	}
	if c.VATRate.IsZero() {
		c.VATRate = core.DefaultVATRate
	}
	c.Status = core.ContractDraft
	c.CreatedAt = time.Now()
	for i := range c.Allocations {
		c.Allocations[i].ID = uuid.New().String()
		c.Allocations[i].ContractID = c.ID
	}

	if err := c.Validate(); err != nil {
		return core.Contract{}, err
	}

	if err := s.store.CreateContract(ctx, c); err != nil {
		return core.Contract{}, fmt.Errorf("create contract: %w", err)
	}

	if err := s.runRollup(ctx, projectID, "contract"); err != nil {
		return core.Contract{}, err
	}
	return c, nil
}

// GetContract returns a contract with all nested children.
func (s *ContractService) GetContract(ctx context.Context, contractID string) (core.Contract, error) {
	return s.store.GetContract(ctx, contractID)
}

// ListContracts returns the project's contracts with their allocations.
func (s *ContractService) ListContracts(ctx context.Context, projectID string) ([]core.Contract, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListContracts(ctx, projectID)
}

// AddChangeOrder records a change order in DRAFT status and rolls up. The
// rollup does not read change-order deltas today, but the original system
// recomputes after every ledger mutation and the behavior is kept.
func (s *ContractService) AddChangeOrder(ctx context.Context, contractID string, co core.ChangeOrder) (core.ChangeOrder, error) {
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return core.ChangeOrder{}, err
	}

	co.ID = uuid.New().String()
	co.ContractID = contractID
	co.Status = core.ChangeOrderDraft
	co.CreatedAt = time.Now()
	if err := co.Validate(); err != nil {
		return core.ChangeOrder{}, err
	}

	if err := s.store.CreateChangeOrder(ctx, co); err != nil {
		return core.ChangeOrder{}, fmt.Errorf("create change order: %w", err)
	}

	if err := s.runRollup(ctx, contract.ProjectID, "change_order"); err != nil {
		return core.ChangeOrder{}, err
	}
	return co, nil
}

// AddWorkProgress records a work progress. Progresses carry no amounts, so
// no rollup runs.
func (s *ContractService) AddWorkProgress(ctx context.Context, contractID string, wp core.WorkProgress) (core.WorkProgress, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return core.WorkProgress{}, err
	}

	wp.ID = uuid.New().String()
	wp.ContractID = contractID
	wp.Status = core.ProgressSubmitted
	wp.CreatedAt = time.Now()
	if err := wp.Validate(); err != nil {
		return core.WorkProgress{}, err
	}

	if err := s.store.CreateWorkProgress(ctx, wp); err != nil {
		return core.WorkProgress{}, fmt.Errorf("create work progress: %w", err)
	}
	return wp, nil
}

// AddInvoice creates an invoice in SENT status, derives the payable amount
// from the holdback and rolls up.
func (s *ContractService) AddInvoice(ctx context.Context, contractID string, inv core.Invoice) (core.Invoice, error) {
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return core.Invoice{}, err
	}

	inv.ID = uuid.New().String()
	inv.ContractID = contractID
	inv.Status = core.InvoiceSent
	inv.CreatedAt = time.Now()
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	inv.AmountPayable = inv.Payable()

	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	if err := s.runRollup(ctx, contract.ProjectID, "invoice"); err != nil {
		return core.Invoice{}, err
	}
	return inv, nil
}

// RecordPayment records a payment against an invoice, flips the invoice to
// PAID once the cumulative payments reach the payable amount, and rolls up.
func (s *ContractService) RecordPayment(ctx context.Context, invoiceID string, p core.Payment) (core.Payment, error) {
	invoice, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return core.Payment{}, err
	}

	p.ID = uuid.New().String()
	p.InvoiceID = invoiceID
	if p.Date == "" {
		p.Date = time.Now().Format("2006-01-02")
	}
	if p.Method == "" {
		p.Method = core.MethodBankTransfer
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}

	if err := s.store.CreatePayment(ctx, p); err != nil {
		return core.Payment{}, fmt.Errorf("create payment: %w", err)
	}

	totalPaid, err := s.store.SumPayments(ctx, invoiceID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("sum payments: %w", err)
	}
	if totalPaid.GreaterThanOrEqual(invoice.AmountPayable) {
		if err := s.store.SetInvoiceStatus(ctx, invoiceID, core.InvoicePaid); err != nil {
			return core.Payment{}, fmt.Errorf("set invoice status: %w", err)
		}
	}

	contract, err := s.store.GetContract(ctx, invoice.ContractID)
	if err != nil {
		return core.Payment{}, err
	}
	if err := s.runRollup(ctx, contract.ProjectID, "payment"); err != nil {
		return core.Payment{}, err
	}
	return p, nil
}

// runRollup recomputes the project totals inline, then publishes the
// ledger-changed event. Publish failures are logged, not returned: the
// mutation and the rollup already succeeded.
func (s *ContractService) runRollup(ctx context.Context, projectID, entity string) error {
	if _, err := s.rollup.Run(ctx, projectID); err != nil {
		return fmt.Errorf("rollup project %s: %w", projectID, err)
	}

	if s.events == nil {
		return nil
	}
	if err := s.events.PublishLedgerChanged(ctx, projectID, entity); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger changed event",
			"project_id", projectID,
			"entity", entity,
			"error", err)
	}
	return nil
}

// Close closes the store and the event client.
func (s *ContractService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close contract service: %v", errs)
	}

	return nil
}
