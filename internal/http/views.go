package http

import (
	"time"

	"github.com/shopspring/decimal"

	"chantier/internal/core"
)

// Response shapes. Amounts marshal as decimal strings.

type projectView struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	City           string `json:"city"`
	Type           string `json:"type,omitempty"`
	Status         string `json:"status"`
}

type budgetLineView struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"projectId"`
	Code          string          `json:"code"`
	Label         string          `json:"label"`
	BudgetInitial decimal.Decimal `json:"budgetInitial"`
	BudgetRevised decimal.Decimal `json:"budgetRevised"`
	EngagedTotal  decimal.Decimal `json:"engagedTotal"`
	InvoicedTotal decimal.Decimal `json:"invoicedTotal"`
	PaidTotal     decimal.Decimal `json:"paidTotal"`
}

type allocationView struct {
	ID           string          `json:"id"`
	BudgetLineID string          `json:"budgetLineId"`
	Amount       decimal.Decimal `json:"amount"`
}

type changeOrderView struct {
	ID           string          `json:"id"`
	ContractID   string          `json:"contractId"`
	Reference    string          `json:"reference,omitempty"`
	Title        string          `json:"title"`
	AmountDelta  decimal.Decimal `json:"amountDelta"`
	BudgetLineID string          `json:"budgetLineId,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type paymentView struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoiceId"`
	Date      string          `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	Method    string          `json:"method"`
}

type invoiceView struct {
	ID              string          `json:"id"`
	ContractID      string          `json:"contractId"`
	Number          string          `json:"number,omitempty"`
	IssueDate       string          `json:"issueDate,omitempty"`
	DueDate         string          `json:"dueDate,omitempty"`
	AmountExclVAT   decimal.Decimal `json:"amountExclVat"`
	VATAmount       decimal.Decimal `json:"vatAmount"`
	AmountInclVAT   decimal.Decimal `json:"amountInclVat"`
	RetentionAmount decimal.Decimal `json:"retentionAmount"`
	AmountPayable   decimal.Decimal `json:"amountPayable"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	Payments        []paymentView   `json:"payments,omitempty"`
}

type progressView struct {
	ID              string          `json:"id"`
	ContractID      string          `json:"contractId"`
	Description     string          `json:"description"`
	ProgressPercent decimal.Decimal `json:"progressPercent"`
	SubmittedByID   string          `json:"submittedById,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type contractView struct {
	ID            string            `json:"id"`
	ProjectID     string            `json:"projectId"`
	CompanyID     string            `json:"companyId"`
	Title         string            `json:"title"`
	Type          string            `json:"type"`
	AmountInitial decimal.Decimal   `json:"amountInitial"`
	VATRate       decimal.Decimal   `json:"vatRate"`
	MainCode      string            `json:"mainCode,omitempty"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	Allocations   []allocationView  `json:"allocations"`
	ChangeOrders  []changeOrderView `json:"changeOrders,omitempty"`
	Invoices      []invoiceView     `json:"invoices,omitempty"`
}

func toProjectView(p core.Project) projectView {
	return projectView{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		City:           p.City,
		Type:           p.Type,
		Status:         p.Status,
	}
}

func toBudgetLineView(l core.BudgetLine) budgetLineView {
	return budgetLineView{
		ID:            l.ID,
		ProjectID:     l.ProjectID,
		Code:          l.Code,
		Label:         l.Label,
		BudgetInitial: l.BudgetInitial,
		BudgetRevised: l.BudgetRevised,
		EngagedTotal:  l.EngagedTotal,
		InvoicedTotal: l.InvoicedTotal,
		PaidTotal:     l.PaidTotal,
	}
}

func toChangeOrderView(co core.ChangeOrder) changeOrderView {
	return changeOrderView{
		ID:           co.ID,
		ContractID:   co.ContractID,
		Reference:    co.Reference,
		Title:        co.Title,
		AmountDelta:  co.AmountDelta,
		BudgetLineID: co.BudgetLineID,
		Status:       string(co.Status),
		CreatedAt:    co.CreatedAt,
	}
}

func toPaymentView(p core.Payment) paymentView {
	return paymentView{
		ID:        p.ID,
		InvoiceID: p.InvoiceID,
		Date:      p.Date,
		Amount:    p.Amount,
		Reference: p.Reference,
		Method:    string(p.Method),
	}
}

func toInvoiceView(inv core.Invoice) invoiceView {
	v := invoiceView{
		ID:              inv.ID,
		ContractID:      inv.ContractID,
		Number:          inv.Number,
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		AmountExclVAT:   inv.AmountExclVAT,
		VATAmount:       inv.VATAmount,
		AmountInclVAT:   inv.AmountInclVAT,
		RetentionAmount: inv.RetentionAmount,
		AmountPayable:   inv.AmountPayable,
		Status:          string(inv.Status),
		CreatedAt:       inv.CreatedAt,
	}
	for _, p := range inv.Payments {
		v.Payments = append(v.Payments, toPaymentView(p))
	}
	return v
}

func toProgressView(wp core.WorkProgress) progressView {
	return progressView{
		ID:              wp.ID,
		ContractID:      wp.ContractID,
		Description:     wp.Description,
		ProgressPercent: wp.ProgressPercent,
		SubmittedByID:   wp.SubmittedByID,
		Status:          string(wp.Status),
		CreatedAt:       wp.CreatedAt,
	}
}

func toContractView(c core.Contract) contractView {
	v := contractView{
		ID:            c.ID,
		ProjectID:     c.ProjectID,
		CompanyID:     c.CompanyID,
		Title:         c.Title,
		Type:          c.Type,
		AmountInitial: c.AmountInitial,
		VATRate:       c.VATRate,
		MainCode:      c.MainCode,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
		Allocations:   make([]allocationView, 0, len(c.Allocations)),
	}
	for _, a := range c.Allocations {
		v.Allocations = append(v.Allocations, allocationView{
			ID:           a.ID,
			BudgetLineID: a.BudgetLineID,
			Amount:       a.Amount,
		})
	}
	for _, co := range c.ChangeOrders {
		v.ChangeOrders = append(v.ChangeOrders, toChangeOrderView(co))
	}
	for _, inv := range c.Invoices {
		v.Invoices = append(v.Invoices, toInvoiceView(inv))
	}
	return v
}
