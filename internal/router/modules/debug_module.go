package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orientati/user-service/internal/container"
	"github.com/orientati/user-service/internal/interface/middleware"
)

// DebugModule exposes the runtime and event-pipeline counters over
// expvar. Only added to the registry when DEBUG_METRICS_ENABLED is set.
type DebugModule struct{}

func NewDebugModule() *DebugModule { return &DebugModule{} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rg.GET("/debug/vars",
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), nil),
		gin.WrapH(expvar.Handler()))
}
