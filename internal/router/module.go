package router

import "github.com/gin-gonic/gin"

// Module is a feature unit that mounts its routes onto a shared group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
