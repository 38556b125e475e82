package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"chantier/internal/core"
	"chantier/internal/rollup"
	"chantier/internal/storage/memory"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(t *testing.T) (*ContractService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewContractService(store, rollup.New(store), nil), store
}

func setupProject(t *testing.T, svc *ContractService) (core.Project, []core.BudgetLine) {
	t.Helper()
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, core.Project{OrganizationID: "org-1", Name: "Les Vergers", City: "Nyon"})
	if err != nil {
		t.Fatal(err)
	}

	var lines []core.BudgetLine
	for _, l := range []core.BudgetLine{
		{ProjectID: project.ID, Code: "211", Label: "Gros oeuvre", BudgetInitial: amt("800000")},
		{ProjectID: project.ID, Code: "230", Label: "Electricité", BudgetInitial: amt("120000")},
	} {
		created, err := svc.CreateBudgetLine(ctx, l)
		if err != nil {
			t.Fatal(err)
		}
		lines = append(lines, created)
	}
	return project, lines
}

func TestCreateContractRollsUp(t *testing.T) {
	svc, store := newTestService(t)
	project, lines := setupProject(t, svc)
	ctx := context.Background()

	_, err := svc.CreateContract(ctx, project.ID, core.Contract{
		Title:         "Gros oeuvre",
		CompanyID:     "co-1",
		AmountInitial: amt("250000"),
		Allocations: []core.Allocation{
			{BudgetLineID: lines[0].ID, Amount: amt("250000")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	persisted, err := store.ListBudgetLines(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !persisted[0].EngagedTotal.Equal(amt("250000")) {
		t.Errorf("engaged = %s, want 250000", persisted[0].EngagedTotal)
	}
	if !persisted[1].EngagedTotal.IsZero() {
		t.Errorf("untouched line engaged = %s, want 0", persisted[1].EngagedTotal)
	}
}

func TestCreateContractUnknownProject(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateContract(context.Background(), "missing", core.Contract{
		Title: "x", CompanyID: "co-1",
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestCreateContractValidation(t *testing.T) {
	svc, _ := newTestService(t)
	project, _ := setupProject(t, svc)

	_, err := svc.CreateContract(context.Background(), project.ID, core.Contract{CompanyID: "co-1"})
	if !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("expected empty-title error, got %v", err)
	}
}

func TestContractDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	project, _ := setupProject(t, svc)

	c, err := svc.CreateContract(context.Background(), project.ID, core.Contract{
		Title: "Electricité", CompanyID: "co-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != core.DefaultContractType {
		t.Errorf("type = %s, want %s", c.Type, core.DefaultContractType)
	}
	if !c.VATRate.Equal(core.DefaultVATRate) {
		t.Errorf("vat = %s, want %s", c.VATRate, core.DefaultVATRate)
	}
	if c.Status != core.ContractDraft {
		t.Errorf("status = %s, want DRAFT", c.Status)
	}
}

func TestInvoicePayableDerivation(t *testing.T) {
	svc, _ := newTestService(t)
	project, lines := setupProject(t, svc)
	ctx := context.Background()

	contract, err := svc.CreateContract(ctx, project.ID, core.Contract{
		Title: "Gros oeuvre", CompanyID: "co-1",
		Allocations: []core.Allocation{{BudgetLineID: lines[0].ID, Amount: amt("100000")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	inv, err := svc.AddInvoice(ctx, contract.ID, core.Invoice{
		AmountInclVAT:   amt("10000"),
		RetentionAmount: amt("500"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !inv.AmountPayable.Equal(amt("9500")) {
		t.Errorf("payable = %s, want 9500", inv.AmountPayable)
	}
	if inv.Status != core.InvoiceSent {
		t.Errorf("status = %s, want SENT", inv.Status)
	}
}

// An invoice with payable 1000 must stay SENT after a 400 payment and flip to
// PAID once cumulative payments reach 1100.
func TestInvoiceStatusTransition(t *testing.T) {
	svc, store := newTestService(t)
	project, lines := setupProject(t, svc)
	ctx := context.Background()

	contract, err := svc.CreateContract(ctx, project.ID, core.Contract{
		Title: "Gros oeuvre", CompanyID: "co-1",
		Allocations: []core.Allocation{{BudgetLineID: lines[0].ID, Amount: amt("100000")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	inv, err := svc.AddInvoice(ctx, contract.ID, core.Invoice{AmountInclVAT: amt("1000")})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.RecordPayment(ctx, inv.ID, core.Payment{Amount: amt("400")}); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status == core.InvoicePaid {
		t.Fatal("invoice must not be PAID after a partial payment")
	}

	if _, err := svc.RecordPayment(ctx, inv.ID, core.Payment{Amount: amt("700")}); err != nil {
		t.Fatal(err)
	}
	got, err = store.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.InvoicePaid {
		t.Fatalf("status = %s, want PAID after cumulative 1100 >= 1000", got.Status)
	}
}

func TestSingleContractScenario(t *testing.T) {
	svc, store := newTestService(t)
	project, lines := setupProject(t, svc)
	ctx := context.Background()

	contract, err := svc.CreateContract(ctx, project.ID, core.Contract{
		Title: "Gros oeuvre", CompanyID: "co-1",
		AmountInitial: amt("10000"),
		Allocations:   []core.Allocation{{BudgetLineID: lines[0].ID, Amount: amt("10000")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	inv, err := svc.AddInvoice(ctx, contract.ID, core.Invoice{AmountInclVAT: amt("3000")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordPayment(ctx, inv.ID, core.Payment{Amount: amt("3000")}); err != nil {
		t.Fatal(err)
	}

	persisted, err := store.ListBudgetLines(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	lineA := persisted[0]
	if !lineA.EngagedTotal.Equal(amt("10000")) || !lineA.InvoicedTotal.Equal(amt("3000")) || !lineA.PaidTotal.Equal(amt("3000")) {
		t.Errorf("totals = engaged %s / invoiced %s / paid %s, want 10000/3000/3000",
			lineA.EngagedTotal, lineA.InvoicedTotal, lineA.PaidTotal)
	}

	gotInv, err := store.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotInv.Status != core.InvoicePaid {
		t.Errorf("invoice status = %s, want PAID", gotInv.Status)
	}
}

func TestChangeOrderDoesNotMoveTotals(t *testing.T) {
	svc, store := newTestService(t)
	project, lines := setupProject(t, svc)
	ctx := context.Background()

	contract, err := svc.CreateContract(ctx, project.ID, core.Contract{
		Title: "Gros oeuvre", CompanyID: "co-1",
		Allocations: []core.Allocation{{BudgetLineID: lines[0].ID, Amount: amt("10000")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	co, err := svc.AddChangeOrder(ctx, contract.ID, core.ChangeOrder{
		Title:        "Plus-value façade",
		AmountDelta:  amt("5000"),
		BudgetLineID: lines[0].ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if co.Status != core.ChangeOrderDraft {
		t.Errorf("status = %s, want DRAFT", co.Status)
	}

	persisted, err := store.ListBudgetLines(ctx, project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !persisted[0].EngagedTotal.Equal(amt("10000")) {
		t.Errorf("engaged = %s, want 10000 (deltas are not aggregated)", persisted[0].EngagedTotal)
	}
}

func TestRecordPaymentUnknownInvoice(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RecordPayment(context.Background(), "missing", core.Payment{Amount: amt("100")})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
