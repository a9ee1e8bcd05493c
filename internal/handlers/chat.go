package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fanforge/creator-platform/internal/chat"
)

type chatRouteRequest struct {
	Classification chat.Classification `json:"classification"`
	Hints          chat.Hints          `json:"hints"`
}

// RegisterChatRoutes registers the authenticated model routing endpoint.
//
// POST /chat/route
// The client's subscription tier participates in routing; VIP accounts are
// always served by the large model.
func RegisterChatRoutes(r gin.IRoutes, cfg chat.Config) {
	r.POST("/chat/route", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req chatRouteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		decision := chat.SelectDeployment(req.Classification, user.Tier, cfg, req.Hints)
		c.JSON(http.StatusOK, decision)
	})
}
