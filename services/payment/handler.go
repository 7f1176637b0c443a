package payment

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"settlement-engine/pkg/errutil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	payments.POST("", h.create)
	payments.GET("/:id", h.get)
	payments.POST("/:id/retry", h.retry)
	payments.POST("/:id/cancel", h.cancel)
}

type createRequest struct {
	CreatorID       string          `json:"creator_id" binding:"required"`
	CampaignID      *string         `json:"campaign_id"`
	EarningID       *string         `json:"earning_id"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	PaymentType     Type            `json:"payment_type" binding:"required"`
	Method          Method          `json:"payment_method" binding:"required"`
	ProviderAccount string          `json:"provider_account"`
	Dispatch        bool            `json:"dispatch"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	in := CreateInput{
		CreatorID:       req.CreatorID,
		CampaignID:      req.CampaignID,
		Amount:          req.Amount,
		PaymentType:     req.PaymentType,
		Method:          req.Method,
		ProviderAccount: req.ProviderAccount,
	}
	if req.EarningID != nil {
		id, err := snowflake.ParseString(*req.EarningID)
		if err != nil {
			c.Error(errutil.BadRequest("invalid earning_id", err))
			return
		}
		in.EarningID = &id
	}

	p, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}

	if req.Dispatch {
		if p, err = h.svc.Dispatch(c.Request.Context(), p.PaymentID); err != nil {
			c.Error(err)
			return
		}
	}

	c.JSON(http.StatusCreated, p)
}

func (h *Handler) get(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid payment id", err))
		return
	}

	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) retry(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid payment id", err))
		return
	}

	p, err := h.svc.Retry(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.Error(errutil.BadRequest("invalid payment id", err))
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	p, err := h.svc.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}
