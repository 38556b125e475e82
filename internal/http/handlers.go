package http

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"chantier/internal/core"
)

// Request payloads. Amounts arrive as strings and go through core.ParseAmount
// so both dot and comma decimal separators are accepted.

type createProjectRequest struct {
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	City           string `json:"city"`
	Type           string `json:"type"`
}

type createBudgetLineRequest struct {
	Code          string `json:"code"`
	Label         string `json:"label"`
	BudgetInitial string `json:"budgetInitial"`
	BudgetRevised string `json:"budgetRevised"`
}

type allocationRequest struct {
	BudgetLineID string `json:"budgetLineId"`
	Amount       string `json:"amount"`
}

type createContractRequest struct {
	CompanyID     string              `json:"companyId"`
	Title         string              `json:"title"`
	Type          string              `json:"type"`
	AmountInitial string              `json:"amountInitial"`
	VATRate       string              `json:"vatRate"`
	MainCode      string              `json:"mainCode"`
	Allocations   []allocationRequest `json:"allocations"`
}

type createChangeOrderRequest struct {
	Reference    string `json:"reference"`
	Title        string `json:"title"`
	AmountDelta  string `json:"amountDelta"`
	BudgetLineID string `json:"budgetLineId"`
}

type createProgressRequest struct {
	Description     string `json:"description"`
	ProgressPercent string `json:"progressPercent"`
	SubmittedByID   string `json:"submittedById"`
}

type createInvoiceRequest struct {
	Number          string `json:"number"`
	IssueDate       string `json:"issueDate"`
	DueDate         string `json:"dueDate"`
	AmountExclVAT   string `json:"amountExclVat"`
	VATAmount       string `json:"vatAmount"`
	AmountInclVAT   string `json:"amountInclVat"`
	RetentionAmount string `json:"retentionAmount"`
}

type createPaymentRequest struct {
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
	Method    string `json:"method"`
}

// optionalAmount parses s, treating an absent value as zero.
func optionalAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return core.ParseAmount(s)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}

	project, err := s.contracts.CreateProject(r.Context(), core.Project{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		City:           req.City,
		Type:           req.Type,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectView(project))
}

func (s *Server) handleCreateBudgetLine(w http.ResponseWriter, r *http.Request) {
	var req createBudgetLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}

	initial, err := optionalAmount(req.BudgetInitial)
	if err != nil {
		writeError(r, w, err)
		return
	}
	revised, err := optionalAmount(req.BudgetRevised)
	if err != nil {
		writeError(r, w, err)
		return
	}

	line, err := s.contracts.CreateBudgetLine(r.Context(), core.BudgetLine{
		ProjectID:     r.PathValue("projectID"),
		Code:          req.Code,
		Label:         req.Label,
		BudgetInitial: initial,
		BudgetRevised: revised,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetLineView(line))
}

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}

	amountInitial, err := optionalAmount(req.AmountInitial)
	if err != nil {
		writeError(r, w, err)
		return
	}
	vatRate, err := optionalAmount(req.VATRate)
	if err != nil {
		writeError(r, w, err)
		return
	}

	contract := core.Contract{
		CompanyID:     req.CompanyID,
		Title:         req.Title,
		Type:          req.Type,
		AmountInitial: amountInitial,
		VATRate:       vatRate,
		MainCode:      req.MainCode,
	}
	for _, a := range req.Allocations {
		amount, err := core.ParseAmount(a.Amount)
		if err != nil {
			writeError(r, w, err)
			return
		}
		contract.Allocations = append(contract.Allocations, core.Allocation{
			BudgetLineID: a.BudgetLineID,
			Amount:       amount,
		})
	}

	created, err := s.contracts.CreateContract(r.Context(), r.PathValue("projectID"), contract)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractView(created))
}

func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	contract, err := s.contracts.GetContract(r.Context(), r.PathValue("contractID"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractView(contract))
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := s.contracts.ListContracts(r.Context(), r.PathValue("projectID"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	views := make([]contractView, 0, len(contracts))
	for _, c := range contracts {
		views = append(views, toContractView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateChangeOrder(w http.ResponseWriter, r *http.Request) {
	var req createChangeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}

	delta, err := core.ParseAmount(req.AmountDelta)
	if err != nil {
		writeError(r, w, err)
		return
	}

	co, err := s.contracts.AddChangeOrder(r.Context(), r.PathValue("contractID"), core.ChangeOrder{
		Reference:    req.Reference,
		Title:        req.Title,
		AmountDelta:  delta,
		BudgetLineID: req.BudgetLineID,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChangeOrderView(co))
}

func (s *Server) handleCreateProgress(w http.ResponseWriter, r *http.Request) {
	var req createProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}

	percent, err := optionalAmount(req.ProgressPercent)
	if err != nil {
		writeError(r, w, err)
		return
	}

	wp, err := s.contracts.AddWorkProgress(r.Context(), r.PathValue("contractID"), core.WorkProgress{
		Description:     req.Description,
		ProgressPercent: percent,
		SubmittedByID:   req.SubmittedByID,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProgressView(wp))
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}

	amountIncl, err := core.ParsePositiveAmount(req.AmountInclVAT)
	if err != nil {
		writeError(r, w, err)
		return
	}
	amountExcl, err := optionalAmount(req.AmountExclVAT)
	if err != nil {
		writeError(r, w, err)
		return
	}
	vatAmount, err := optionalAmount(req.VATAmount)
	if err != nil {
		writeError(r, w, err)
		return
	}
	retention, err := optionalAmount(req.RetentionAmount)
	if err != nil {
		writeError(r, w, err)
		return
	}

	inv, err := s.contracts.AddInvoice(r.Context(), r.PathValue("contractID"), core.Invoice{
		Number:          req.Number,
		IssueDate:       req.IssueDate,
		DueDate:         req.DueDate,
		AmountExclVAT:   amountExcl,
		VATAmount:       vatAmount,
		AmountInclVAT:   amountIncl,
		RetentionAmount: retention,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceView(inv))
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r, w, err)
		return
	}

	amount, err := core.ParsePositiveAmount(req.Amount)
	if err != nil {
		writeError(r, w, err)
		return
	}

	payment, err := s.contracts.RecordPayment(r.Context(), r.PathValue("invoiceID"), core.Payment{
		Date:      req.Date,
		Amount:    amount,
		Reference: req.Reference,
		Method:    core.PaymentMethod(req.Method),
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentView(payment))
}

func (s *Server) handleProjectBudget(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.ProjectBudget(r.Context(), r.PathValue("projectID"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCFCExport(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")

	// Render to a buffer first so a missing project still returns a clean 404.
	var buf bytes.Buffer
	if err := s.reports.WriteCFCExport(r.Context(), projectID, &buf); err != nil {
		writeError(r, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="cfc-`+projectID+`.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleOrganizationOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.reports.OrganizationOverview(r.Context(), r.PathValue("organizationID"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
