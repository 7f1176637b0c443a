package webhook

import (
	"io"
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

func (h *Handler) Register(e *gin.Engine) {
	e.POST("/webhooks/:provider", h.receive)
}

func (h *Handler) receive(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		c.Error(errutil.BadRequest("unable to read webhook body", err))
		return
	}

	result, err := h.svc.Process(c.Request.Context(), c.Param("provider"), c.Request.Header, body)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
