package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fanforge/creator-platform/internal/campaign"
	"github.com/fanforge/creator-platform/internal/models"
)

type memoryCampaigns struct {
	byID map[string]models.Campaign
}

func newMemoryCampaigns() *memoryCampaigns {
	return &memoryCampaigns{byID: make(map[string]models.Campaign)}
}

func (m *memoryCampaigns) Create(_ context.Context, c models.Campaign) error {
	m.byID[c.ID] = c
	return nil
}

func (m *memoryCampaigns) Get(_ context.Context, creatorID, id string) (models.Campaign, error) {
	c, ok := m.byID[id]
	if !ok || c.CreatorID != creatorID {
		return models.Campaign{}, campaign.ErrNotFound
	}
	return c, nil
}

func (m *memoryCampaigns) Update(_ context.Context, c models.Campaign) error {
	if _, ok := m.byID[c.ID]; !ok {
		return campaign.ErrNotFound
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memoryCampaigns) ListByCreator(_ context.Context, creatorID string) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range m.byID {
		if c.CreatorID == creatorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func campaignRouter(t *testing.T, userID string) (*gin.Engine, *campaign.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := campaign.NewService(newMemoryCampaigns(), zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	r := gin.New()
	group := r.Group("/")
	group.Use(asUser(models.User{ID: userID, Tier: models.TierStandard}))
	RegisterCampaignRoutes(group, svc)
	return r, svc
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCampaignCreateAndLaunch(t *testing.T) {
	r, _ := campaignRouter(t, "creator-1")

	rec := doJSON(r, http.MethodPost, "/campaigns", `{
		"name": "Summer PPV Drop",
		"type": "ppv",
		"platforms": ["onlyfans", "instagram"],
		"budget": {"total": 1000, "currency": "USD"}
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode campaign: %v", err)
	}
	if created.Status != models.CampaignDraft {
		t.Fatalf("new campaigns must be drafts, got %s", created.Status)
	}

	launch := doJSON(r, http.MethodPost, "/campaigns/"+created.ID+"/launch", `{}`)
	if launch.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", launch.Code, launch.Body.String())
	}

	again := doJSON(r, http.MethodPost, "/campaigns/"+created.ID+"/launch", `{}`)
	if again.Code != http.StatusBadRequest {
		t.Fatalf("relaunching active campaign: expected 400, got %d", again.Code)
	}
	if !strings.Contains(again.Body.String(), "Campaign is already active") {
		t.Fatalf("expected already-active message, got %s", again.Body.String())
	}
}

func TestCampaignCreateValidation(t *testing.T) {
	r, _ := campaignRouter(t, "creator-1")

	rec := doJSON(r, http.MethodPost, "/campaigns", `{
		"name": "No Platform",
		"type": "ppv",
		"platforms": [],
		"budget": {"total": 100}
	}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCampaignSchedulePastDate(t *testing.T) {
	r, _ := campaignRouter(t, "creator-1")

	rec := doJSON(r, http.MethodPost, "/campaigns", `{
		"name": "Launch Later",
		"type": "subscription",
		"platforms": ["onlyfans"],
		"budget": {"total": 500}
	}`)
	var created models.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode campaign: %v", err)
	}

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	sched := doJSON(r, http.MethodPost, "/campaigns/"+created.ID+"/schedule", `{"scheduled_at":"`+past+`"}`)
	if sched.Code != http.StatusBadRequest {
		t.Fatalf("past schedule: expected 400, got %d: %s", sched.Code, sched.Body.String())
	}
}

func TestCampaignSpendPausesOverBudget(t *testing.T) {
	r, _ := campaignRouter(t, "creator-1")

	rec := doJSON(r, http.MethodPost, "/campaigns", `{
		"name": "Tight Budget",
		"type": "ppv",
		"platforms": ["onlyfans"],
		"budget": {"total": 1000}
	}`)
	var created models.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode campaign: %v", err)
	}

	if launch := doJSON(r, http.MethodPost, "/campaigns/"+created.ID+"/launch", `{}`); launch.Code != http.StatusOK {
		t.Fatalf("launch failed: %d", launch.Code)
	}

	spend := doJSON(r, http.MethodPost, "/campaigns/"+created.ID+"/spend", `{"amount": 1100}`)
	if spend.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", spend.Code, spend.Body.String())
	}

	var check models.BudgetCheck
	if err := json.Unmarshal(spend.Body.Bytes(), &check); err != nil {
		t.Fatalf("decode budget check: %v", err)
	}
	if !check.Exceeded || !check.CampaignPaused {
		t.Fatalf("overspend must exceed and pause, got %+v", check)
	}
}

func TestCampaignScopedToCreator(t *testing.T) {
	r, svc := campaignRouter(t, "creator-1")

	other, err := svc.Create(context.Background(), campaign.CreateParams{
		CreatorID: "creator-2",
		Name:      "Someone Else's",
		Type:      models.CampaignPPV,
		Platforms: []string{models.PlatformOnlyFans},
		Budget:    models.Budget{Total: 100},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := doJSON(r, http.MethodGet, "/campaigns/"+other.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-creator access: expected 404, got %d", rec.Code)
	}
}
