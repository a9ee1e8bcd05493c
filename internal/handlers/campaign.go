package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fanforge/creator-platform/internal/campaign"
	"github.com/fanforge/creator-platform/internal/models"
)

// CampaignService is the lifecycle surface the campaign endpoints depend on.
type CampaignService interface {
	Create(ctx context.Context, p campaign.CreateParams) (models.Campaign, error)
	Get(ctx context.Context, creatorID, id string) (models.Campaign, error)
	List(ctx context.Context, creatorID string) ([]models.Campaign, error)
	Schedule(ctx context.Context, creatorID, id string, at time.Time) (models.Campaign, error)
	Launch(ctx context.Context, creatorID, id string) (models.Campaign, error)
	Pause(ctx context.Context, creatorID, id string) (models.Campaign, error)
	Complete(ctx context.Context, creatorID, id string) (models.Campaign, error)
	ApplySpend(ctx context.Context, creatorID, id string, amount float64) (models.BudgetCheck, error)
}

type createCampaignRequest struct {
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Platforms []string      `json:"platforms"`
	Goals     []string      `json:"goals"`
	Budget    models.Budget `json:"budget"`
}

type scheduleRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

type spendRequest struct {
	Amount float64 `json:"amount"`
}

// RegisterCampaignRoutes registers the authenticated campaign endpoints. All
// lookups are scoped to the authenticated creator; a campaign belonging to
// another creator behaves as not found.
func RegisterCampaignRoutes(r gin.IRoutes, svc CampaignService) {
	r.POST("/campaigns", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req createCampaignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		created, err := svc.Create(c.Request.Context(), campaign.CreateParams{
			CreatorID: user.ID,
			Name:      req.Name,
			Type:      models.CampaignType(req.Type),
			Platforms: req.Platforms,
			Goals:     req.Goals,
			Budget:    req.Budget,
		})
		if err != nil {
			respondCampaignError(c, err)
			return
		}

		c.JSON(http.StatusCreated, created)
	})

	r.GET("/campaigns", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		list, err := svc.List(c.Request.Context(), user.ID)
		if err != nil {
			respondCampaignError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"campaigns": list})
	})

	r.GET("/campaigns/:id", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		found, err := svc.Get(c.Request.Context(), user.ID, c.Param("id"))
		if err != nil {
			respondCampaignError(c, err)
			return
		}
		c.JSON(http.StatusOK, found)
	})

	r.POST("/campaigns/:id/schedule", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req scheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ScheduledAt == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at required"})
			return
		}
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be RFC3339"})
			return
		}

		updated, err := svc.Schedule(c.Request.Context(), user.ID, c.Param("id"), at.UTC())
		if err != nil {
			respondCampaignError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	})

	transition := func(op func(ctx context.Context, creatorID, id string) (models.Campaign, error)) gin.HandlerFunc {
		return func(c *gin.Context) {
			user, ok := CurrentUser(c)
			if !ok {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}

			updated, err := op(c.Request.Context(), user.ID, c.Param("id"))
			if err != nil {
				respondCampaignError(c, err)
				return
			}
			c.JSON(http.StatusOK, updated)
		}
	}

	r.POST("/campaigns/:id/launch", transition(svc.Launch))
	r.POST("/campaigns/:id/pause", transition(svc.Pause))
	r.POST("/campaigns/:id/complete", transition(svc.Complete))

	r.POST("/campaigns/:id/spend", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req spendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		check, err := svc.ApplySpend(c.Request.Context(), user.ID, c.Param("id"), req.Amount)
		if err != nil {
			respondCampaignError(c, err)
			return
		}
		c.JSON(http.StatusOK, check)
	})
}

func respondCampaignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
	case errors.Is(err, campaign.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "campaign operation failed"})
	}
}
