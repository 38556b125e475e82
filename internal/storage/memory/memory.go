// Package memory is an in-memory ledger store used by unit tests and the
// default development backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"chantier/internal/core"
	"chantier/internal/storage"
)

type Store struct {
	mu           sync.Mutex
	projects     map[string]core.Project
	lines        map[string]core.BudgetLine
	contracts    map[string]core.Contract
	allocations  map[string][]core.Allocation  // by contract ID
	changeOrders map[string][]core.ChangeOrder // by contract ID
	progresses   map[string][]core.WorkProgress
	invoices     map[string]core.Invoice
	payments     map[string][]core.Payment // by invoice ID
}

func New() *Store {
	return &Store{
		projects:     make(map[string]core.Project),
		lines:        make(map[string]core.BudgetLine),
		contracts:    make(map[string]core.Contract),
		allocations:  make(map[string][]core.Allocation),
		changeOrders: make(map[string][]core.ChangeOrder),
		progresses:   make(map[string][]core.WorkProgress),
		invoices:     make(map[string]core.Invoice),
		payments:     make(map[string][]core.Payment),
	}
}

func (s *Store) CreateProject(_ context.Context, p core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

func (s *Store) GetProject(_ context.Context, projectID string) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return core.Project{}, core.ErrProjectNotFound
	}
	return p, nil
}

func (s *Store) ListProjects(_ context.Context, organizationID string) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Project
	for _, p := range s.projects {
		if p.OrganizationID == organizationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateBudgetLine(_ context.Context, line core.BudgetLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[line.ProjectID]; !ok {
		return core.ErrProjectNotFound
	}
	s.lines[line.ID] = line
	return nil
}

func (s *Store) ListBudgetLines(_ context.Context, projectID string) ([]core.BudgetLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetLine
	for _, l := range s.lines {
		if l.ProjectID == projectID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) UpdateBudgetTotals(_ context.Context, budgetLineID string, engaged, invoiced, paid decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[budgetLineID]
	if !ok {
		return core.ErrBudgetLineNotFound
	}
	line.EngagedTotal = engaged
	line.InvoicedTotal = invoiced
	line.PaidTotal = paid
	s.lines[budgetLineID] = line
	return nil
}

func (s *Store) CreateContract(_ context.Context, c core.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[c.ProjectID]; !ok {
		return core.ErrProjectNotFound
	}
	allocs := append([]core.Allocation(nil), c.Allocations...)
	c.Allocations = nil
	c.ChangeOrders = nil
	c.Invoices = nil
	s.contracts[c.ID] = c
	s.allocations[c.ID] = allocs
	return nil
}

func (s *Store) GetContract(_ context.Context, contractID string) (core.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[contractID]
	if !ok {
		return core.Contract{}, core.ErrContractNotFound
	}
	c.Allocations = append([]core.Allocation(nil), s.allocations[contractID]...)
	c.ChangeOrders = append([]core.ChangeOrder(nil), s.changeOrders[contractID]...)
	c.Invoices = s.invoicesOf(contractID)
	return c, nil
}

func (s *Store) ListContracts(_ context.Context, projectID string) ([]core.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Contract
	for id, c := range s.contracts {
		if c.ProjectID != projectID {
			continue
		}
		c.Allocations = append([]core.Allocation(nil), s.allocations[id]...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ContractsWithLedger(_ context.Context, projectID string) ([]core.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Contract
	for id, c := range s.contracts {
		if c.ProjectID != projectID {
			continue
		}
		c.Allocations = append([]core.Allocation(nil), s.allocations[id]...)
		c.Invoices = s.invoicesOf(id)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// invoicesOf assumes s.mu is held.
func (s *Store) invoicesOf(contractID string) []core.Invoice {
	var out []core.Invoice
	for id, inv := range s.invoices {
		if inv.ContractID != contractID {
			continue
		}
		inv.Payments = append([]core.Payment(nil), s.payments[id]...)
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CreateChangeOrder(_ context.Context, co core.ChangeOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[co.ContractID]; !ok {
		return core.ErrContractNotFound
	}
	s.changeOrders[co.ContractID] = append(s.changeOrders[co.ContractID], co)
	return nil
}

func (s *Store) CreateWorkProgress(_ context.Context, wp core.WorkProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[wp.ContractID]; !ok {
		return core.ErrContractNotFound
	}
	s.progresses[wp.ContractID] = append(s.progresses[wp.ContractID], wp)
	return nil
}

func (s *Store) CreateInvoice(_ context.Context, inv core.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[inv.ContractID]; !ok {
		return core.ErrContractNotFound
	}
	inv.Payments = nil
	s.invoices[inv.ID] = inv
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invoiceID string) (core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invoiceID]
	if !ok {
		return core.Invoice{}, core.ErrInvoiceNotFound
	}
	inv.Payments = append([]core.Payment(nil), s.payments[invoiceID]...)
	return inv, nil
}

func (s *Store) CreatePayment(_ context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[p.InvoiceID]; !ok {
		return core.ErrInvoiceNotFound
	}
	s.payments[p.InvoiceID] = append(s.payments[p.InvoiceID], p)
	return nil
}

func (s *Store) SumPayments(_ context.Context, invoiceID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, p := range s.payments[invoiceID] {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (s *Store) SetInvoiceStatus(_ context.Context, invoiceID string, status core.InvoiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invoiceID]
	if !ok {
		return core.ErrInvoiceNotFound
	}
	inv.Status = status
	s.invoices[invoiceID] = inv
	return nil
}

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
