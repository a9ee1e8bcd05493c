package models

import "time"

// CampaignStatus tracks where a campaign is in its lifecycle.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// CampaignType is the monetization mechanic a campaign runs.
type CampaignType string

const (
	CampaignPPV          CampaignType = "ppv"
	CampaignSubscription CampaignType = "subscription"
	CampaignTipGoal      CampaignType = "tip_goal"
	CampaignCustom       CampaignType = "custom"
)

// ValidCampaignType reports whether t is a recognized campaign type.
func ValidCampaignType(t CampaignType) bool {
	switch t {
	case CampaignPPV, CampaignSubscription, CampaignTipGoal, CampaignCustom:
		return true
	}
	return false
}

// Platform identifiers a campaign can target.
const (
	PlatformOnlyFans  = "onlyfans"
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformReddit    = "reddit"
)

// ValidPlatform reports whether p is a supported distribution platform.
func ValidPlatform(p string) bool {
	switch p {
	case PlatformOnlyFans, PlatformInstagram, PlatformTikTok, PlatformReddit:
		return true
	}
	return false
}

// Budget tracks spend against the total allocated to a campaign. Amounts are
// in minor-unit-free currency values as reported by the dashboard.
type Budget struct {
	Total    float64 `json:"total"`
	Spent    float64 `json:"spent"`
	Currency string  `json:"currency,omitempty"`
}

// Campaign is the aggregate managed by the campaign service.
type Campaign struct {
	ID          string         `json:"id"`
	CreatorID   string         `json:"creator_id"`
	Name        string         `json:"name"`
	Type        CampaignType   `json:"type"`
	Platforms   []string       `json:"platforms"`
	Goals       []string       `json:"goals,omitempty"`
	Budget      Budget         `json:"budget"`
	Status      CampaignStatus `json:"status"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	LaunchedAt  *time.Time     `json:"launched_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BudgetCheck is the outcome of applying spend to a campaign budget.
type BudgetCheck struct {
	Exceeded       bool    `json:"exceeded"`
	CampaignPaused bool    `json:"campaignPaused"`
	Remaining      float64 `json:"remaining"`
}
