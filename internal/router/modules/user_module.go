package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orientati/user-service/internal/container"
	handlers "github.com/orientati/user-service/internal/interface/http"
	"github.com/orientati/user-service/internal/interface/middleware"
)

// UserModule wires the user lifecycle routes.
// Reads:     GET /users, GET /users/:id
// Mutations: POST /users, PATCH /users/:id, DELETE /users/:id,
//            POST /users/change_password,
//            POST /users/request_email_verification,
//            POST /users/verify_email
type UserModule struct {
	Handler *handlers.UserHandler
}

func NewUserModule(h *handlers.UserHandler) *UserModule {
	return &UserModule{Handler: h}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	readLimiter := middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	writeLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	passwordLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	verifyLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	users := rg.Group("/users")
	{
		users.GET("", readLimiter, m.Handler.List)
		users.GET("/:id", readLimiter, m.Handler.Get)
		users.POST("", writeLimiter, m.Handler.Create)
		users.PATCH("/:id", writeLimiter, m.Handler.Update)
		users.DELETE("/:id", writeLimiter, m.Handler.Delete)
		users.POST("/change_password", passwordLimiter, m.Handler.ChangePassword)
		users.POST("/request_email_verification", verifyLimiter, m.Handler.RequestEmailVerification)
		users.POST("/verify_email", verifyLimiter, m.Handler.VerifyEmail)
	}
}
