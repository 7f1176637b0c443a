package bonus

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"settlement-engine/pkg/errutil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.RouterGroup) {
	campaigns := r.Group("/campaigns/:campaign_id")
	campaigns.POST("/bonus-tiers", h.createTier)
	campaigns.GET("/bonus-tiers", h.listTiers)
	campaigns.POST("/leaderboard-rules", h.createRule)
	campaigns.GET("/leaderboard-rules", h.listRules)
}

func (h *Handler) createTier(c *gin.Context) {
	var tier Tier
	if err := c.ShouldBindJSON(&tier); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	tier.CampaignID = c.Param("campaign_id")

	if err := h.svc.CreateTier(c.Request.Context(), &tier); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, tier)
}

func (h *Handler) listTiers(c *gin.Context) {
	tiers, err := h.svc.ListTiers(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

func (h *Handler) createRule(c *gin.Context) {
	var rule LeaderboardRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	rule.CampaignID = c.Param("campaign_id")

	if err := h.svc.CreateLeaderboardRule(c.Request.Context(), &rule); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) listRules(c *gin.Context) {
	rules, err := h.svc.ListLeaderboardRules(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}
