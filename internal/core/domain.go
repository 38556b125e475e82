package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	ContractStatus    string
	ChangeOrderStatus string
	InvoiceStatus     string
	ProgressStatus    string
	PaymentMethod     string
)

const (
	ContractDraft  ContractStatus = "DRAFT"
	ContractSigned ContractStatus = "SIGNED"

	ChangeOrderDraft    ChangeOrderStatus = "DRAFT"
	ChangeOrderApproved ChangeOrderStatus = "APPROVED"

	// InvoicePartial and InvoiceLate belong to the shared status enum but
	// nothing in this service assigns them; an invoice only moves SENT -> PAID.
	InvoiceSent    InvoiceStatus = "SENT"
	InvoicePartial InvoiceStatus = "PARTIAL"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceLate    InvoiceStatus = "LATE"

	ProgressSubmitted ProgressStatus = "SUBMITTED"

	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// Defaults applied when a create payload omits the field.
const DefaultContractType = "EG"

// DefaultVATRate is the standard Swiss VAT rate in percent.
var DefaultVATRate = decimal.NewFromFloat(8.1)

var (
	ErrNotFound           = errors.New("not found")
	ErrProjectNotFound    = fmt.Errorf("project %w", ErrNotFound)
	ErrBudgetLineNotFound = fmt.Errorf("budget line %w", ErrNotFound)
	ErrContractNotFound   = fmt.Errorf("contract %w", ErrNotFound)
	ErrInvoiceNotFound    = fmt.Errorf("invoice %w", ErrNotFound)

	// ErrValidation is the base of every input validation failure. The
	// sentinels below wrap it so transport layers can map the whole family
	// to one status code.
	ErrValidation = errors.New("validation failed")

	ErrInvalidAmount     = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyTitle        = fmt.Errorf("%w: empty title", ErrValidation)
	ErrEmptyName         = fmt.Errorf("%w: empty name", ErrValidation)
	ErrEmptyCode         = fmt.Errorf("%w: empty code", ErrValidation)
	ErrEmptyLabel        = fmt.Errorf("%w: empty label", ErrValidation)
	ErrMissingCompany    = fmt.Errorf("%w: missing company", ErrValidation)
	ErrMissingBudgetLine = fmt.Errorf("%w: missing budget line", ErrValidation)
)

type (
	// Project is the root aggregate. Contracts and budget lines are scoped
	// to it; the rollup only ever reads its children and writes back the
	// derived totals on BudgetLine.
	Project struct {
		ID             string
		OrganizationID string
		Name           string
		City           string
		Type           string
		Status         string
	}

	// BudgetLine is a CFC cost-code bucket of a project. EngagedTotal,
	// InvoicedTotal and PaidTotal are denormalized caches maintained by the
	// rollup; they are never authored directly.
	BudgetLine struct {
		ID            string
		ProjectID     string
		Code          string
		Label         string
		BudgetInitial decimal.Decimal
		BudgetRevised decimal.Decimal
		EngagedTotal  decimal.Decimal
		InvoicedTotal decimal.Decimal
		PaidTotal     decimal.Decimal
	}

	Contract struct {
		ID            string
		ProjectID     string
		CompanyID     string
		Title         string
		Type          string
		AmountInitial decimal.Decimal
		VATRate       decimal.Decimal
		MainCode      string // main CFC code, informational only
		Status        ContractStatus
		CreatedAt     time.Time

		Allocations  []Allocation
		ChangeOrders []ChangeOrder
		Invoices     []Invoice
	}

	// Allocation attributes a portion of a contract's engagement to one
	// budget line. Allocations are written once at contract creation and
	// never updated.
	Allocation struct {
		ID           string
		ContractID   string
		BudgetLineID string
		Amount       decimal.Decimal
	}

	// ChangeOrder is a signed adjustment to a contract after signature.
	// AmountDelta may be negative. The rollup does not fold deltas into
	// the engaged totals; they are recorded for the contract view only.
	ChangeOrder struct {
		ID           string
		ContractID   string
		Reference    string
		Title        string
		AmountDelta  decimal.Decimal
		BudgetLineID string // optional redirection of the delta
		Status       ChangeOrderStatus
		CreatedAt    time.Time
	}

	Invoice struct {
		ID              string
		ContractID      string
		Number          string
		IssueDate       string // YYYY-MM-DD, optional
		DueDate         string // YYYY-MM-DD, optional
		AmountExclVAT   decimal.Decimal
		VATAmount       decimal.Decimal
		AmountInclVAT   decimal.Decimal
		RetentionAmount decimal.Decimal
		AmountPayable   decimal.Decimal
		Status          InvoiceStatus
		CreatedAt       time.Time

		Payments []Payment
	}

	// Payment is an immutable record against one invoice. The invoice
	// status is derived from the cumulative payment sum.
	Payment struct {
		ID        string
		InvoiceID string
		Date      string // YYYY-MM-DD
		Amount    decimal.Decimal
		Reference string
		Method    PaymentMethod
	}

	WorkProgress struct {
		ID              string
		ContractID      string
		Description     string
		ProgressPercent decimal.Decimal
		SubmittedByID   string
		Status          ProgressStatus
		CreatedAt       time.Time
	}
)

// Payable returns the amount actually owed on the invoice after holdback.
func (i Invoice) Payable() decimal.Decimal {
	return i.AmountInclVAT.Sub(i.RetentionAmount)
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.OrganizationID) == "" {
		return fmt.Errorf("%w: missing organization", ErrValidation)
	}
	return nil
}

func (b BudgetLine) Validate() error {
	if strings.TrimSpace(b.Code) == "" {
		return ErrEmptyCode
	}
	if strings.TrimSpace(b.Label) == "" {
		return ErrEmptyLabel
	}
	if b.BudgetInitial.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (c Contract) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(c.CompanyID) == "" {
		return ErrMissingCompany
	}
	if c.AmountInitial.IsNegative() {
		return ErrInvalidAmount
	}
	if c.VATRate.IsNegative() {
		return ErrInvalidAmount
	}
	for _, a := range c.Allocations {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("allocation: %w", err)
		}
	}
	return nil
}

func (a Allocation) Validate() error {
	if strings.TrimSpace(a.BudgetLineID) == "" {
		return ErrMissingBudgetLine
	}
	if a.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (co ChangeOrder) Validate() error {
	if strings.TrimSpace(co.Title) == "" {
		return ErrEmptyTitle
	}
	// AmountDelta is a signed value; negative deltas are legitimate.
	return nil
}

func (i Invoice) Validate() error {
	if i.AmountInclVAT.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if i.RetentionAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if i.RetentionAmount.GreaterThan(i.AmountInclVAT) {
		return fmt.Errorf("%w: retention exceeds invoice amount", ErrValidation)
	}
	return nil
}

func (p Payment) Validate() error {
	if p.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (wp WorkProgress) Validate() error {
	if strings.TrimSpace(wp.Description) == "" {
		return fmt.Errorf("%w: empty description", ErrValidation)
	}
	if !wp.ProgressPercent.IsZero() {
		if wp.ProgressPercent.IsNegative() || wp.ProgressPercent.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: progress percent out of range", ErrValidation)
		}
	}
	return nil
}
