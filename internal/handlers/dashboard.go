package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fanforge/creator-platform/internal/models"
)

// DashboardStore aggregates account activity for the dashboard view.
type DashboardStore interface {
	DashboardSummary(ctx context.Context, creatorID string, from, to time.Time) (models.DashboardSummary, error)
}

// RegisterDashboardRoutes registers the authenticated dashboard endpoint.
//
// GET /dashboard?from=<RFC3339>&to=<RFC3339>
// Defaults to the trailing 30 days. The range is half-open [from, to).
func RegisterDashboardRoutes(r gin.IRoutes, store DashboardStore) {
	r.GET("/dashboard", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		to := time.Now().UTC()
		from := to.AddDate(0, 0, -30)

		if raw := c.Query("from"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
				return
			}
			from = parsed.UTC()
		}
		if raw := c.Query("to"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
				return
			}
			to = parsed.UTC()
		}
		if !from.Before(to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
			return
		}

		summary, err := store.DashboardSummary(c.Request.Context(), user.ID, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard"})
			return
		}

		c.JSON(http.StatusOK, summary)
	})
}
