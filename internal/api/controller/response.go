package controller

import (
	"errors"
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/containerd/errdefs/pkg/errhttp"
	"github.com/gin-gonic/gin"

	"github.com/bassista/solution_explorer/internal/api/middleware"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/logger"
)

// DiagramPayload is the wire form of a diagram. Content is the raw document text.
type DiagramPayload struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content"`
}

// FailurePayload is one failed file of a multi-file operation.
type FailurePayload struct {
	Path  string `json:"path"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

func toPayload(d domain.Diagram) DiagramPayload {
	return DiagramPayload{Name: d.Name, Path: d.Path, Content: string(d.Content)}
}

func toPayloads(diagrams []domain.Diagram) []DiagramPayload {
	out := make([]DiagramPayload, len(diagrams))
	for i, d := range diagrams {
		out[i] = toPayload(d)
	}
	return out
}

func (p DiagramPayload) diagram() domain.Diagram {
	return domain.Diagram{Name: p.Name, Path: p.Path, Content: []byte(p.Content)}
}

func toFailures(failures []domain.FileFailure) []FailurePayload {
	out := make([]FailurePayload, len(failures))
	for i, f := range failures {
		out[i] = FailurePayload{Path: f.Path, Error: f.Err.Error(), Code: middleware.ErrorClass(f.Err)}
	}
	return out
}

// partialLoad extracts the per-file failures of a partially loaded solution.
func partialLoad(err error) ([]FailurePayload, bool) {
	var partial *domain.PartialLoadError
	if errors.As(err, &partial) {
		return toFailures(partial.Failures), true
	}
	return nil, false
}

// respondError maps err onto an HTTP status through its error class.
// Content the diagram format rejects is the client's fault.
func respondError(c *gin.Context, component string, err error) {
	status := errhttp.ToHTTP(err)
	if errdefs.IsDataLoss(err) {
		status = http.StatusUnprocessableEntity
	}
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		logger.WithComponent(component).Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		logger.WithComponent(component).Debugf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": middleware.ErrorClass(err)})
}
