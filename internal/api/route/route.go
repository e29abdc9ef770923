package route

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bassista/solution_explorer/internal/api/controller"
	"github.com/bassista/solution_explorer/internal/api/middleware"
	"github.com/bassista/solution_explorer/internal/app"
)

// SetupRoutes builds the main engine: middleware chain, health check,
// configuration, diagram and watch endpoints.
func SetupRoutes(appCtx *app.App, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.Writer()))
	r.Use(middleware.HoneybadgerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	publicRouter := r.Group("")
	publicRouter.Use(middleware.Identity(middleware.OpaqueTokenIdentity))

	service := &controller.RepositoryService{Repo: appCtx.Explorer}
	timeout := appCtx.Config.Server.RequestTimeout

	NewConfigurationRouter(timeout, publicRouter, appCtx.Config)
	NewDiagramRouter(timeout, publicRouter, service)
	NewWatchRouter(publicRouter, service)

	return r
}
