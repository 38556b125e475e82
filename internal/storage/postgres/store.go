// Package postgres implements the ledger store on PostgreSQL. The schema is
// provisioned by the platform's own migrations; this adapter only reads and
// writes it.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"chantier/internal/core"
	"chantier/internal/storage"
)

type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) CreateProject(ctx context.Context, p core.Project) error {
	const query = `INSERT INTO projects (id, organization_id, name, city, type, status)
	VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.OrganizationID, p.Name, p.City, p.Type, p.Status); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (core.Project, error) {
	const query = `SELECT id, organization_id, name, city, type, status FROM projects WHERE id = $1`
	var p core.Project
	err := s.db.QueryRowContext(ctx, query, projectID).
		Scan(&p.ID, &p.OrganizationID, &p.Name, &p.City, &p.Type, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, core.ErrProjectNotFound
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("select project: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, organizationID string) ([]core.Project, error) {
	const query = `SELECT id, organization_id, name, city, type, status
	FROM projects WHERE organization_id = $1 ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.City, &p.Type, &p.Status); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateBudgetLine(ctx context.Context, line core.BudgetLine) error {
	if _, err := s.GetProject(ctx, line.ProjectID); err != nil {
		return err
	}
	const query = `INSERT INTO budget_lines
	(id, project_id, cfc_code, label, budget_initial, budget_revised, engagement_total, invoiced_total, paid_total)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		line.ID, line.ProjectID, line.Code, line.Label,
		line.BudgetInitial, line.BudgetRevised,
		line.EngagedTotal, line.InvoicedTotal, line.PaidTotal)
	if err != nil {
		return fmt.Errorf("insert budget line: %w", err)
	}
	return nil
}

func (s *Store) ListBudgetLines(ctx context.Context, projectID string) ([]core.BudgetLine, error) {
	const query = `SELECT id, project_id, cfc_code, label, budget_initial, budget_revised,
	engagement_total, invoiced_total, paid_total
	FROM budget_lines WHERE project_id = $1 ORDER BY cfc_code`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("select budget lines: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetLine
	for rows.Next() {
		var l core.BudgetLine
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Code, &l.Label,
			&l.BudgetInitial, &l.BudgetRevised,
			&l.EngagedTotal, &l.InvoicedTotal, &l.PaidTotal); err != nil {
			return nil, fmt.Errorf("scan budget line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) UpdateBudgetTotals(ctx context.Context, budgetLineID string, engaged, invoiced, paid decimal.Decimal) error {
	const query = `UPDATE budget_lines
	SET engagement_total = $1, invoiced_total = $2, paid_total = $3
	WHERE id = $4`
	res, err := s.db.ExecContext(ctx, query, engaged, invoiced, paid, budgetLineID)
	if err != nil {
		return fmt.Errorf("update budget totals: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrBudgetLineNotFound
	}
	return nil
}

func (s *Store) CreateContract(ctx context.Context, c core.Contract) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const contractQuery = `INSERT INTO contracts
	(id, project_id, company_id, title, type, amount_initial, vat_rate, cfc_main_code, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.ExecContext(ctx, contractQuery,
		c.ID, c.ProjectID, c.CompanyID, c.Title, c.Type,
		c.AmountInitial, c.VATRate, c.MainCode, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}

	const allocQuery = `INSERT INTO contract_allocations (id, contract_id, budget_line_id, amount)
	VALUES ($1, $2, $3, $4)`
	for _, a := range c.Allocations {
		if _, err := tx.ExecContext(ctx, allocQuery, a.ID, a.ContractID, a.BudgetLineID, a.Amount); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetContract(ctx context.Context, contractID string) (core.Contract, error) {
	const query = `SELECT id, project_id, company_id, title, type, amount_initial, vat_rate,
	cfc_main_code, status, created_at
	FROM contracts WHERE id = $1`
	var c core.Contract
	err := s.db.QueryRowContext(ctx, query, contractID).Scan(
		&c.ID, &c.ProjectID, &c.CompanyID, &c.Title, &c.Type,
		&c.AmountInitial, &c.VATRate, &c.MainCode, &c.Status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Contract{}, core.ErrContractNotFound
	}
	if err != nil {
		return core.Contract{}, fmt.Errorf("select contract: %w", err)
	}

	if c.Allocations, err = s.allocationsOf(ctx, contractID); err != nil {
		return core.Contract{}, err
	}
	if c.ChangeOrders, err = s.changeOrdersOf(ctx, contractID); err != nil {
		return core.Contract{}, err
	}
	if c.Invoices, err = s.invoicesOf(ctx, contractID, true); err != nil {
		return core.Contract{}, err
	}
	return c, nil
}

func (s *Store) ListContracts(ctx context.Context, projectID string) ([]core.Contract, error) {
	contracts, err := s.contractsOf(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		if contracts[i].Allocations, err = s.allocationsOf(ctx, contracts[i].ID); err != nil {
			return nil, err
		}
	}
	return contracts, nil
}

func (s *Store) ContractsWithLedger(ctx context.Context, projectID string) ([]core.Contract, error) {
	contracts, err := s.contractsOf(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		if contracts[i].Allocations, err = s.allocationsOf(ctx, contracts[i].ID); err != nil {
			return nil, err
		}
		if contracts[i].Invoices, err = s.invoicesOf(ctx, contracts[i].ID, true); err != nil {
			return nil, err
		}
	}
	return contracts, nil
}

func (s *Store) contractsOf(ctx context.Context, projectID string) ([]core.Contract, error) {
	const query = `SELECT id, project_id, company_id, title, type, amount_initial, vat_rate,
	cfc_main_code, status, created_at
	FROM contracts WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("select contracts: %w", err)
	}
	defer rows.Close()

	var out []core.Contract
	for rows.Next() {
		var c core.Contract
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.CompanyID, &c.Title, &c.Type,
			&c.AmountInitial, &c.VATRate, &c.MainCode, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) allocationsOf(ctx context.Context, contractID string) ([]core.Allocation, error) {
	const query = `SELECT id, contract_id, budget_line_id, amount
	FROM contract_allocations WHERE contract_id = $1`
	rows, err := s.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}
	defer rows.Close()

	var out []core.Allocation
	for rows.Next() {
		var a core.Allocation
		if err := rows.Scan(&a.ID, &a.ContractID, &a.BudgetLineID, &a.Amount); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) changeOrdersOf(ctx context.Context, contractID string) ([]core.ChangeOrder, error) {
	const query = `SELECT id, contract_id, reference, title, amount_delta, budget_line_id, status, created_at
	FROM contract_change_orders WHERE contract_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("select change orders: %w", err)
	}
	defer rows.Close()

	var out []core.ChangeOrder
	for rows.Next() {
		var co core.ChangeOrder
		var lineID sql.NullString
		if err := rows.Scan(&co.ID, &co.ContractID, &co.Reference, &co.Title,
			&co.AmountDelta, &lineID, &co.Status, &co.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan change order: %w", err)
		}
		co.BudgetLineID = lineID.String
		out = append(out, co)
	}
	return out, rows.Err()
}

func (s *Store) invoicesOf(ctx context.Context, contractID string, withPayments bool) ([]core.Invoice, error) {
	const query = `SELECT id, contract_id, invoice_number, issue_date, due_date,
	amount_excl_vat, vat_amount, amount_incl_vat, retention_amount, amount_payable, status, created_at
	FROM contract_invoices WHERE contract_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		var inv core.Invoice
		if err := rows.Scan(&inv.ID, &inv.ContractID, &inv.Number, &inv.IssueDate, &inv.DueDate,
			&inv.AmountExclVAT, &inv.VATAmount, &inv.AmountInclVAT,
			&inv.RetentionAmount, &inv.AmountPayable, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if withPayments {
		for i := range out {
			if out[i].Payments, err = s.paymentsOf(ctx, out[i].ID); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (s *Store) paymentsOf(ctx context.Context, invoiceID string) ([]core.Payment, error) {
	const query = `SELECT id, invoice_id, payment_date, amount, payment_reference, method
	FROM contract_payments WHERE invoice_id = $1`
	rows, err := s.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var p core.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Date, &p.Amount, &p.Reference, &p.Method); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateChangeOrder(ctx context.Context, co core.ChangeOrder) error {
	const query = `INSERT INTO contract_change_orders
	(id, contract_id, reference, title, amount_delta, budget_line_id, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	var lineID any
	if co.BudgetLineID != "" {
		lineID = co.BudgetLineID
	}
	_, err := s.db.ExecContext(ctx, query,
		co.ID, co.ContractID, co.Reference, co.Title, co.AmountDelta, lineID, co.Status, co.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert change order: %w", err)
	}
	return nil
}

func (s *Store) CreateWorkProgress(ctx context.Context, wp core.WorkProgress) error {
	const query = `INSERT INTO contract_work_progresses
	(id, contract_id, description, progress_percent, submitted_by_id, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, query,
		wp.ID, wp.ContractID, wp.Description, wp.ProgressPercent, wp.SubmittedByID, wp.Status, wp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert work progress: %w", err)
	}
	return nil
}

func (s *Store) CreateInvoice(ctx context.Context, inv core.Invoice) error {
	const query = `INSERT INTO contract_invoices
	(id, contract_id, invoice_number, issue_date, due_date, amount_excl_vat, vat_amount,
	amount_incl_vat, retention_amount, amount_payable, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.db.ExecContext(ctx, query,
		inv.ID, inv.ContractID, inv.Number, inv.IssueDate, inv.DueDate,
		inv.AmountExclVAT, inv.VATAmount, inv.AmountInclVAT,
		inv.RetentionAmount, inv.AmountPayable, inv.Status, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID string) (core.Invoice, error) {
	const query = `SELECT id, contract_id, invoice_number, issue_date, due_date,
	amount_excl_vat, vat_amount, amount_incl_vat, retention_amount, amount_payable, status, created_at
	FROM contract_invoices WHERE id = $1`
	var inv core.Invoice
	err := s.db.QueryRowContext(ctx, query, invoiceID).Scan(
		&inv.ID, &inv.ContractID, &inv.Number, &inv.IssueDate, &inv.DueDate,
		&inv.AmountExclVAT, &inv.VATAmount, &inv.AmountInclVAT,
		&inv.RetentionAmount, &inv.AmountPayable, &inv.Status, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, core.ErrInvoiceNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("select invoice: %w", err)
	}
	if inv.Payments, err = s.paymentsOf(ctx, invoiceID); err != nil {
		return core.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) CreatePayment(ctx context.Context, p core.Payment) error {
	const query = `INSERT INTO contract_payments
	(id, invoice_id, payment_date, amount, payment_reference, method)
	VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query, p.ID, p.InvoiceID, p.Date, p.Amount, p.Reference, p.Method)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Store) SumPayments(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount::numeric), 0) FROM contract_payments WHERE invoice_id = $1`
	var sum decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, invoiceID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return sum, nil
}

func (s *Store) SetInvoiceStatus(ctx context.Context, invoiceID string, status core.InvoiceStatus) error {
	const query = `UPDATE contract_invoices SET status = $1 WHERE id = $2`
	res, err := s.db.ExecContext(ctx, query, status, invoiceID)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrInvoiceNotFound
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
