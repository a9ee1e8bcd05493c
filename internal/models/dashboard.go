package models

// DashboardSummary aggregates a creator's account state for the dashboard
// landing view. Counts over time ranges use half-open [from, to) windows.
type DashboardSummary struct {
	Campaigns       map[string]int64 `json:"campaigns"`
	TotalBudget     float64          `json:"total_budget"`
	TotalSpent      float64          `json:"total_spent"`
	MessagesSent    int64            `json:"messages_sent"`
	ContentGenerated int64           `json:"content_generated"`
}
