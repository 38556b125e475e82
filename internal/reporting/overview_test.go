package reporting

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"chantier/internal/core"
	"chantier/internal/storage/memory"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedProject(t *testing.T, store *memory.Store, orgID, id, name, status string) {
	t.Helper()
	err := store.CreateProject(context.Background(), core.Project{
		ID:             id,
		OrganizationID: orgID,
		Name:           name,
		City:           "Lausanne",
		Status:         status,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func seedLine(t *testing.T, store *memory.Store, projectID, id, code, label string, revised, engaged, invoiced, paid string) {
	t.Helper()
	ctx := context.Background()
	err := store.CreateBudgetLine(ctx, core.BudgetLine{
		ID:            id,
		ProjectID:     projectID,
		Code:          code,
		Label:         label,
		BudgetInitial: amt(revised),
		BudgetRevised: amt(revised),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateBudgetTotals(ctx, id, amt(engaged), amt(invoiced), amt(paid)); err != nil {
		t.Fatal(err)
	}
}

func TestProjectBudget(t *testing.T) {
	store := memory.New()
	svc := NewService(store)
	seedProject(t, store, "org-1", "p-1", "Les Vergers", "CONSTRUCTION")
	seedLine(t, store, "p-1", "l-1", "211", "Gros oeuvre", "800000", "250000", "90000", "60000")
	seedLine(t, store, "p-1", "l-2", "230", "Electricité", "120000", "0", "0", "0")

	report, err := svc.ProjectBudget(context.Background(), "p-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(report) != 2 {
		t.Fatalf("got %d rows, want 2", len(report))
	}
	row := report[0]
	if row.Code != "211" || !row.BudgetedAmount.Equal(amt("800000")) {
		t.Errorf("row = %+v, want code 211 budget 800000", row)
	}
	if !row.EngagedAmount.Equal(amt("250000")) || !row.BilledAmount.Equal(amt("90000")) || !row.PaidAmount.Equal(amt("60000")) {
		t.Errorf("totals = %s/%s/%s, want 250000/90000/60000",
			row.EngagedAmount, row.BilledAmount, row.PaidAmount)
	}
}

func TestProjectBudgetUnknownProject(t *testing.T) {
	svc := NewService(memory.New())
	_, err := svc.ProjectBudget(context.Background(), "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestOrganizationOverview(t *testing.T) {
	store := memory.New()
	svc := NewService(store)
	seedProject(t, store, "org-1", "p-1", "Les Vergers", "CONSTRUCTION")
	seedProject(t, store, "org-1", "p-2", "Riva Nord", "PLANNING")
	seedProject(t, store, "org-2", "p-3", "Autre", "DELIVERED")
	seedLine(t, store, "p-1", "l-1", "211", "Gros oeuvre", "800000", "250000", "90000", "60000")
	seedLine(t, store, "p-1", "l-2", "230", "Electricité", "120000", "40000", "0", "0")
	seedLine(t, store, "p-2", "l-3", "211", "Gros oeuvre", "500000", "0", "0", "0")

	overview, err := svc.OrganizationOverview(context.Background(), "org-1")
	if err != nil {
		t.Fatal(err)
	}
	if overview.TotalProjects != 2 {
		t.Fatalf("totalProjects = %d, want 2", overview.TotalProjects)
	}
	if overview.ByStatus.Construction != 1 || overview.ByStatus.Planning != 1 || overview.ByStatus.Delivered != 0 {
		t.Errorf("byStatus = %+v, want 1 construction, 1 planning", overview.ByStatus)
	}

	byID := map[string]core.ProjectOverview{}
	for _, p := range overview.Projects {
		byID[p.ID] = p
	}
	p1 := byID["p-1"]
	if !p1.CFC.Budget.Equal(amt("920000")) || !p1.CFC.Engagement.Equal(amt("290000")) {
		t.Errorf("p-1 cfc = budget %s engagement %s, want 920000/290000", p1.CFC.Budget, p1.CFC.Engagement)
	}
	if !p1.CFC.Invoiced.Equal(amt("90000")) || !p1.CFC.Paid.Equal(amt("60000")) {
		t.Errorf("p-1 cfc = invoiced %s paid %s, want 90000/60000", p1.CFC.Invoiced, p1.CFC.Paid)
	}
	p2 := byID["p-2"]
	if !p2.CFC.Budget.Equal(amt("500000")) || !p2.CFC.Engagement.IsZero() {
		t.Errorf("p-2 cfc = %+v, want budget 500000 and zero engagement", p2.CFC)
	}
}

func TestOrganizationOverviewEmpty(t *testing.T) {
	svc := NewService(memory.New())
	overview, err := svc.OrganizationOverview(context.Background(), "org-none")
	if err != nil {
		t.Fatal(err)
	}
	if overview.TotalProjects != 0 || len(overview.Projects) != 0 {
		t.Fatalf("overview = %+v, want empty", overview)
	}
}

func TestWriteCFCExport(t *testing.T) {
	store := memory.New()
	svc := NewService(store)
	seedProject(t, store, "org-1", "p-1", "Les Vergers", "CONSTRUCTION")
	seedLine(t, store, "p-1", "l-1", "211", "Gros oeuvre", "800000", "250000", "90000", "60000")

	var buf bytes.Buffer
	if err := svc.WriteCFCExport(context.Background(), "p-1", &buf); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d csv lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "Synthèse CFC - Les Vergers") {
		t.Errorf("title line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "CFC;Libellé;Budget initial (CHF)") {
		t.Errorf("header line = %q", lines[2])
	}
	if lines[3] != "211;Gros oeuvre;800000;800000;250000;90000;60000" {
		t.Errorf("data line = %q", lines[3])
	}
}

func TestWriteCFCExportUnknownProject(t *testing.T) {
	svc := NewService(memory.New())
	var buf bytes.Buffer
	err := svc.WriteCFCExport(context.Background(), "missing", &buf)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
