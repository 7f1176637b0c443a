package payment

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		NewProviders,
		NewService,
	),
)

var Gateway = fx.Module("payment.gateway",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(h *Handler, e *gin.Engine) {
	h.Register(e.Group("/api/v1"))
}
