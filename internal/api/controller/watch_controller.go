package controller

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/solution_explorer/internal/logger"
)

const watchComponent = "watch-controller"

// WatchController streams file change notifications as server-sent events.
type WatchController struct {
	service   ExplorerService
	keepAlive time.Duration
}

func NewWatchController(service ExplorerService, keepAlive time.Duration) *WatchController {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &WatchController{service: service, keepAlive: keepAlive}
}

// Stream handles GET /watch?path=. Each debounced change of path is sent as a
// "change" event; the subscription ends with the request.
func (wc *WatchController) Stream(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing path query parameter", "code": "invalid_argument"})
		return
	}

	// Slow clients drop events rather than stall the watcher's timers.
	events := make(chan string, 16)
	sub, err := wc.service.Watch(path, func(changed string) {
		select {
		case events <- changed:
		default:
			logger.WithPath(watchComponent, changed).Warn("watch client too slow, change dropped")
		}
	})
	if err != nil {
		respondError(c, watchComponent, err)
		return
	}
	defer func() { _ = sub.Close() }()

	log := logger.WithPath(watchComponent, sub.Path())
	log.Debugf("watch stream %s opened", sub.ID())
	defer log.Debugf("watch stream %s closed", sub.ID())

	ticker := time.NewTicker(wc.keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("subscribed", gin.H{"path": sub.Path(), "id": sub.ID()})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case changed := <-events:
			c.SSEvent("change", gin.H{"path": changed})
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
