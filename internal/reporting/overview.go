// Package reporting provides the read side of the budget rollup: the
// per-project budget table, the organization-wide overview and the CFC CSV
// export. It only ever reads the denormalized totals maintained by the
// rollup.
package reporting

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"chantier/internal/core"
	"chantier/internal/storage"
)

// overviewConcurrency bounds the per-project budget loads of an overview.
const overviewConcurrency = 4

type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// ProjectBudget returns the budget table of one project. budgetedAmount is
// the revised budget of the line.
func (s *Service) ProjectBudget(ctx context.Context, projectID string) ([]core.BudgetReportLine, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	lines, err := s.store.ListBudgetLines(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load budget lines: %w", err)
	}

	report := make([]core.BudgetReportLine, len(lines))
	for i, l := range lines {
		report[i] = core.BudgetReportLine{
			Code:           l.Code,
			Label:          l.Label,
			BudgetedAmount: l.BudgetRevised,
			EngagedAmount:  l.EngagedTotal,
			BilledAmount:   l.InvoicedTotal,
			PaidAmount:     l.PaidTotal,
		}
	}
	return report, nil
}

// OrganizationOverview aggregates the budget columns of every project of an
// organization. Per-project line loads fan out with bounded concurrency.
func (s *Service) OrganizationOverview(ctx context.Context, organizationID string) (core.OrganizationOverview, error) {
	projects, err := s.store.ListProjects(ctx, organizationID)
	if err != nil {
		return core.OrganizationOverview{}, fmt.Errorf("load projects: %w", err)
	}

	overview := core.OrganizationOverview{
		TotalProjects: len(projects),
		Projects:      make([]core.ProjectOverview, len(projects)),
	}
	for _, p := range projects {
		switch p.Status {
		case "PLANNING":
			overview.ByStatus.Planning++
		case "SALES":
			overview.ByStatus.Sales++
		case "CONSTRUCTION":
			overview.ByStatus.Construction++
		case "DELIVERED":
			overview.ByStatus.Delivered++
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)

	for i, p := range projects {
		g.Go(func() error {
			lines, err := s.store.ListBudgetLines(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("load budget lines of %s: %w", p.ID, err)
			}
			cfc := core.ProjectCFC{
				Budget:     decimal.Zero,
				Engagement: decimal.Zero,
				Invoiced:   decimal.Zero,
				Paid:       decimal.Zero,
			}
			for _, l := range lines {
				cfc.Budget = cfc.Budget.Add(l.BudgetRevised)
				cfc.Engagement = cfc.Engagement.Add(l.EngagedTotal)
				cfc.Invoiced = cfc.Invoiced.Add(l.InvoicedTotal)
				cfc.Paid = cfc.Paid.Add(l.PaidTotal)
			}
			mu.Lock()
			overview.Projects[i] = core.ProjectOverview{
				ID:     p.ID,
				Name:   p.Name,
				City:   p.City,
				Status: p.Status,
				Type:   p.Type,
				CFC:    cfc,
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return core.OrganizationOverview{}, err
	}
	return overview, nil
}

// WriteCFCExport writes the project's CFC synthesis as a semicolon-separated
// CSV, matching the layout consumed by the dashboards: a title row, a blank
// row, the header row, then one row per line.
func (s *Service) WriteCFCExport(ctx context.Context, projectID string, w io.Writer) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	lines, err := s.store.ListBudgetLines(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load budget lines: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write([]string{fmt.Sprintf("Synthèse CFC - %s", project.Name)}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.Write([]string{""}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	header := []string{
		"CFC",
		"Libellé",
		"Budget initial (CHF)",
		"Budget révisé (CHF)",
		"Engagements (CHF)",
		"Facturé (CHF)",
		"Payé (CHF)",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	for _, l := range lines {
		row := []string{
			l.Code,
			l.Label,
			l.BudgetInitial.String(),
			l.BudgetRevised.String(),
			l.EngagedTotal.String(),
			l.InvoicedTotal.String(),
			l.PaidTotal.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
