package webhook

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook",
	fx.Provide(
		NewAdapters,
		NewService,
	),
)

var Gateway = fx.Module("webhook.gateway",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

// Worker wires the retry sweep into the task server and scheduler.
var Worker = fx.Module("webhook.worker",
	fx.Invoke(
		RegisterSweepHandler,
		RegisterScheduler,
	),
)

func registerRoutes(h *Handler, e *gin.Engine) {
	h.Register(e)
}
