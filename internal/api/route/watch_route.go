package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/solution_explorer/internal/api/controller"
)

const watchKeepAlive = 30 * time.Second

// NewWatchRouter registers the event stream. It runs without a request
// timeout; the stream lives as long as the client stays connected.
func NewWatchRouter(group *gin.RouterGroup, service controller.ExplorerService) {
	wc := controller.NewWatchController(service, watchKeepAlive)

	group.GET("watch", wc.Stream)
}
