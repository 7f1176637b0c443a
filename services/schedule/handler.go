package schedule

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
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
	schedules := r.Group("/schedules")
	schedules.PUT("/campaign/:campaign_id", h.upsert)
	schedules.GET("/campaign/:campaign_id", h.getByCampaign)
	schedules.GET("/campaign/:campaign_id/eligible", h.eligible)
	schedules.POST("/:id/execute", h.execute)
}

func (h *Handler) upsert(c *gin.Context) {
	var req UpsertInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	schedule, err := h.svc.Upsert(c.Request.Context(), c.Param("campaign_id"), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (h *Handler) getByCampaign(c *gin.Context) {
	schedule, err := h.svc.GetByCampaign(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (h *Handler) eligible(c *gin.Context) {
	eligible, err := h.svc.EligibleCreators(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eligible": eligible})
}

func (h *Handler) execute(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid schedule id", err))
		return
	}

	results, err := h.svc.Execute(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
