package core

import "github.com/shopspring/decimal"

// BudgetReportLine is the read-side row of the project budget table.
type BudgetReportLine struct {
	Code           string          `json:"code"`
	Label          string          `json:"label"`
	BudgetedAmount decimal.Decimal `json:"budgetedAmount"`
	EngagedAmount  decimal.Decimal `json:"engagedAmount"`
	BilledAmount   decimal.Decimal `json:"billedAmount"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
}

// ProjectCFC aggregates the budget columns of every line of one project.
type ProjectCFC struct {
	Budget     decimal.Decimal `json:"budget"`
	Engagement decimal.Decimal `json:"engagement"`
	Invoiced   decimal.Decimal `json:"invoiced"`
	Paid       decimal.Decimal `json:"paid"`
}

// ProjectOverview is one project's entry in the organization overview.
type ProjectOverview struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	City   string     `json:"city"`
	Status string     `json:"status"`
	Type   string     `json:"type"`
	CFC    ProjectCFC `json:"cfc"`
}

// StatusCounts breaks down projects by lifecycle status.
type StatusCounts struct {
	Planning     int `json:"planning"`
	Sales        int `json:"sales"`
	Construction int `json:"construction"`
	Delivered    int `json:"delivered"`
}

// OrganizationOverview is the reporting read model across all projects of
// one organization.
type OrganizationOverview struct {
	TotalProjects int               `json:"totalProjects"`
	ByStatus      StatusCounts      `json:"byStatus"`
	Projects      []ProjectOverview `json:"projects"`
}
