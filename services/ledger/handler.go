package ledger

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"settlement-engine/pkg/errutil"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *gin.RouterGroup) {
	r.GET("/earnings/creator/:id/summary", h.creatorSummary)
	r.POST("/earnings/calculate", h.calculate)
	r.GET("/earnings/:id", h.getEntry)
	r.DELETE("/earnings/:id", h.archive)
}

func (h *Handler) getEntry(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid earning id", err))
		return
	}

	entry, err := h.service.GetEntry(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) archive(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid earning id", err))
		return
	}

	if err := h.service.ArchiveEntry(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) creatorSummary(c *gin.Context) {
	summary, err := h.service.CreatorSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type calculateRequest struct {
	CreatorID           string           `json:"creator_id" binding:"required"`
	CampaignID          string           `json:"campaign_id" binding:"required"`
	ApplicationID       string           `json:"application_id" binding:"required"`
	GMV                 decimal.Decimal  `json:"gmv"`
	CommissionRate      decimal.Decimal  `json:"commission_rate"`
	BaseAmount          *decimal.Decimal `json:"base_amount,omitempty"`
	LeaderboardPosition int              `json:"leaderboard_position,omitempty"`
}

func (h *Handler) calculate(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.ValidationFailed("invalid calculate request", err))
		return
	}

	entry, err := h.service.Recalculate(c.Request.Context(), RecalculateInput{
		CreatorID:           req.CreatorID,
		CampaignID:          req.CampaignID,
		ApplicationID:       req.ApplicationID,
		GMV:                 req.GMV,
		CommissionRate:      req.CommissionRate,
		BaseAmount:          req.BaseAmount,
		LeaderboardPosition: req.LeaderboardPosition,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, entry)
}
