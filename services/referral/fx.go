package referral

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("referral",
	fx.Provide(NewService),
)

var Gateway = fx.Module("referral.gateway",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(h *Handler, e *gin.Engine) {
	h.Register(e.Group("/api/v1"))
}
