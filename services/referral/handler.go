package referral

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
	referrals := r.Group("/referrals")
	referrals.POST("/redeem", h.redeem)
	referrals.POST("/:id/bonus", h.accrue)
	referrals.GET("/creator/:id", h.listByReferrer)
}

func (h *Handler) redeem(c *gin.Context) {
	var req RedeemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	referral, err := h.svc.Redeem(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, referral)
}

func (h *Handler) accrue(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid referral id", err))
		return
	}

	var req AccrueInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	referral, err := h.svc.AccrueBonus(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, referral)
}

func (h *Handler) listByReferrer(c *gin.Context) {
	referrals, err := h.svc.ListByReferrer(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": referrals})
}
