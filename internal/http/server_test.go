package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"chantier/internal/reporting"
	"chantier/internal/rollup"
	"chantier/internal/services"
	"chantier/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	contracts := services.NewContractService(store, rollup.New(store), nil)
	return NewServer(":0", contracts, reporting.NewService(store))
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

type idResponse struct {
	ID string `json:"id"`
}

func createProject(t *testing.T, s *Server) string {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/projects", map[string]string{
		"organizationId": "org-1",
		"name":           "Les Vergers",
		"city":           "Nyon",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp idResponse
	decodeBody(t, rec, &resp)
	return resp.ID
}

func createBudgetLine(t *testing.T, s *Server, projectID, code, label, budget string) string {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/projects/"+projectID+"/budget-lines", map[string]string{
		"code":          code,
		"label":         label,
		"budgetInitial": budget,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create budget line: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp idResponse
	decodeBody(t, rec, &resp)
	return resp.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status field = %q, want ok", resp["status"])
	}
}

func TestLedgerScenario(t *testing.T) {
	s := newTestServer(t)
	projectID := createProject(t, s)
	lineID := createBudgetLine(t, s, projectID, "211", "Gros oeuvre", "800000")

	rec := doRequest(t, s, http.MethodPost, "/projects/"+projectID+"/contracts", map[string]any{
		"companyId":     "co-1",
		"title":         "Gros oeuvre",
		"amountInitial": "250000",
		"allocations": []map[string]string{
			{"budgetLineId": lineID, "amount": "250000"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create contract: status %d, body %s", rec.Code, rec.Body.String())
	}
	var contract struct {
		ID      string          `json:"id"`
		Status  string          `json:"status"`
		Type    string          `json:"type"`
		VATRate decimal.Decimal `json:"vatRate"`
	}
	decodeBody(t, rec, &contract)
	if contract.Status != "DRAFT" || contract.Type != "EG" {
		t.Errorf("contract defaults = %s/%s, want DRAFT/EG", contract.Status, contract.Type)
	}
	if !contract.VATRate.Equal(decimal.NewFromFloat(8.1)) {
		t.Errorf("vatRate = %s, want 8.1", contract.VATRate)
	}

	rec = doRequest(t, s, http.MethodPost, "/contracts/"+contract.ID+"/invoices", map[string]string{
		"amountInclVat":   "10000",
		"retentionAmount": "500",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invoice: status %d, body %s", rec.Code, rec.Body.String())
	}
	var invoice struct {
		ID            string          `json:"id"`
		AmountPayable decimal.Decimal `json:"amountPayable"`
		Status        string          `json:"status"`
	}
	decodeBody(t, rec, &invoice)
	if !invoice.AmountPayable.Equal(decimal.NewFromInt(9500)) {
		t.Errorf("amountPayable = %s, want 9500", invoice.AmountPayable)
	}
	if invoice.Status != "SENT" {
		t.Errorf("invoice status = %s, want SENT", invoice.Status)
	}

	rec = doRequest(t, s, http.MethodPost, "/invoices/"+invoice.ID+"/payments", map[string]string{
		"amount": "9500",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create payment: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/projects/"+projectID+"/budget", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get budget: status %d, body %s", rec.Code, rec.Body.String())
	}
	var report []struct {
		Code           string          `json:"code"`
		BudgetedAmount decimal.Decimal `json:"budgetedAmount"`
		EngagedAmount  decimal.Decimal `json:"engagedAmount"`
		BilledAmount   decimal.Decimal `json:"billedAmount"`
		PaidAmount     decimal.Decimal `json:"paidAmount"`
	}
	decodeBody(t, rec, &report)
	if len(report) != 1 {
		t.Fatalf("report rows = %d, want 1", len(report))
	}
	row := report[0]
	if !row.EngagedAmount.Equal(decimal.NewFromInt(250000)) {
		t.Errorf("engaged = %s, want 250000", row.EngagedAmount)
	}
	if !row.BilledAmount.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("billed = %s, want 10000", row.BilledAmount)
	}
	if !row.PaidAmount.Equal(decimal.NewFromInt(9500)) {
		t.Errorf("paid = %s, want 9500", row.PaidAmount)
	}

	rec = doRequest(t, s, http.MethodGet, "/contracts/"+contract.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get contract: status %d", rec.Code)
	}
	var full struct {
		Invoices []struct {
			Status string `json:"status"`
		} `json:"invoices"`
	}
	decodeBody(t, rec, &full)
	if len(full.Invoices) != 1 || full.Invoices[0].Status != "PAID" {
		t.Errorf("invoices = %+v, want one PAID invoice", full.Invoices)
	}
}

func TestCFCExport(t *testing.T) {
	s := newTestServer(t)
	projectID := createProject(t, s)
	createBudgetLine(t, s, projectID, "211", "Gros oeuvre", "800000")

	rec := doRequest(t, s, http.MethodGet, "/projects/"+projectID+"/cfc.csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content-type = %q, want text/csv", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Synthèse CFC - Les Vergers") {
		t.Errorf("missing title row in:\n%s", body)
	}
	if !strings.Contains(body, "211;Gros oeuvre") {
		t.Errorf("missing data row in:\n%s", body)
	}
}

func TestOrganizationOverviewEndpoint(t *testing.T) {
	s := newTestServer(t)
	projectID := createProject(t, s)
	createBudgetLine(t, s, projectID, "211", "Gros oeuvre", "800000")

	rec := doRequest(t, s, http.MethodGet, "/organizations/org-1/overview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var overview struct {
		TotalProjects int `json:"totalProjects"`
		ByStatus      struct {
			Planning int `json:"planning"`
		} `json:"byStatus"`
	}
	decodeBody(t, rec, &overview)
	if overview.TotalProjects != 1 || overview.ByStatus.Planning != 1 {
		t.Errorf("overview = %+v, want 1 planning project", overview)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/projects", map[string]string{
		"organizationId": "org-1",
		"name":           "Les Vergers",
		"bogus":          "field",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestValidationMapsTo422(t *testing.T) {
	s := newTestServer(t)
	projectID := createProject(t, s)

	rec := doRequest(t, s, http.MethodPost, "/projects/"+projectID+"/contracts", map[string]string{
		"companyId": "co-1",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
	}
}

func TestBadAmountMapsTo422(t *testing.T) {
	s := newTestServer(t)
	projectID := createProject(t, s)
	createBudgetLine(t, s, projectID, "211", "Gros oeuvre", "800000")

	rec := doRequest(t, s, http.MethodPost, "/projects/"+projectID+"/budget-lines", map[string]string{
		"code":          "230",
		"label":         "Electricité",
		"budgetInitial": "12.34.56",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownProjectMapsTo404(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/projects/missing/budget", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body %s", rec.Code, rec.Body.String())
	}
}
