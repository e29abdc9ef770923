package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/solution_explorer/internal/api/controller"
	"github.com/bassista/solution_explorer/internal/api/middleware"
	"github.com/bassista/solution_explorer/internal/config"
)

// NewConfigurationRouter sets up configuration-related routes.
func NewConfigurationRouter(timeout time.Duration, group *gin.RouterGroup, cfg *config.Config) {
	cc := controller.NewConfigurationController(cfg)

	group.GET("configuration", middleware.RequestTimeout(timeout), cc.GetConfiguration)
}
