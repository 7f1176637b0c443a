package ledger

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.module",
	fx.Provide(NewService),
)

var Gateway = fx.Module("ledger.gateway",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(engine *gin.Engine, handler *Handler) {
	handler.Register(engine.Group("/api/v1"))
}
