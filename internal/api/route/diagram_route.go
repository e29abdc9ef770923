package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/solution_explorer/internal/api/controller"
	"github.com/bassista/solution_explorer/internal/api/middleware"
)

func NewDiagramRouter(timeout time.Duration, group *gin.RouterGroup, service controller.ExplorerService) {
	dc := controller.NewDiagramController(service)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.POST("solution/open", timeoutMiddleware, dc.Open)
	group.PUT("solution", timeoutMiddleware, dc.SaveSolution)
	group.GET("diagrams", timeoutMiddleware, dc.List)
	group.GET("diagrams/:name", timeoutMiddleware, dc.Get)
	group.PUT("diagrams/:name", timeoutMiddleware, dc.Save)
	group.DELETE("diagrams/:name", timeoutMiddleware, dc.Delete)
	group.POST("diagrams/:name/rename", timeoutMiddleware, dc.Rename)
}
