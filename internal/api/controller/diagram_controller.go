package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/solution_explorer/internal/api/middleware"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/explorer"
	"github.com/bassista/solution_explorer/internal/logger"
)

const diagramComponent = "diagram-controller"

// DiagramController handles the solution and diagram endpoints.
type DiagramController struct {
	service ExplorerService
}

func NewDiagramController(service ExplorerService) *DiagramController {
	return &DiagramController{service: service}
}

type openRequest struct {
	Path string `json:"path" binding:"required"`
}

type saveDiagramRequest struct {
	Path    string `json:"path"`
	Content string `json:"content" binding:"required"`
}

type renameRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

type saveSolutionRequest struct {
	RootPath string           `json:"root_path"`
	Diagrams []DiagramPayload `json:"diagrams" binding:"required"`
}

// target reads the optional ?path= query parameter.
func target(c *gin.Context) explorer.Target {
	if p := c.Query("path"); p != "" {
		return explorer.ExplicitPath(p)
	}
	return explorer.CurrentPath()
}

// Open handles POST /solution/open. A partially loaded solution is opened
// and answered with 200 plus the files that failed.
func (dc *DiagramController) Open(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "code": "invalid_argument"})
		return
	}
	logger.WithComponent(diagramComponent).Debugf("POST /solution/open %s", req.Path)

	info, err := dc.service.Open(c.Request.Context(), middleware.IdentityFrom(c), req.Path)
	if failures, ok := partialLoad(err); ok {
		c.JSON(http.StatusOK, gin.H{"session": info, "failures": failures})
		return
	}
	if err != nil {
		respondError(c, diagramComponent, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": info})
}

// List handles GET /diagrams.
func (dc *DiagramController) List(c *gin.Context) {
	diagrams, err := dc.service.List(c.Request.Context(), middleware.IdentityFrom(c))
	if failures, ok := partialLoad(err); ok {
		c.JSON(http.StatusOK, gin.H{"diagrams": toPayloads(diagrams), "failures": failures})
		return
	}
	if err != nil {
		respondError(c, diagramComponent, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diagrams": toPayloads(diagrams)})
}

// Get handles GET /diagrams/:name[?path=].
func (dc *DiagramController) Get(c *gin.Context) {
	d, err := dc.service.Get(c.Request.Context(), middleware.IdentityFrom(c), c.Param("name"), target(c))
	if err != nil {
		respondError(c, diagramComponent, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(d))
}

// Save handles PUT /diagrams/:name[?path=]. The body's path is the diagram's
// recorded source; the query path is an explicit target.
func (dc *DiagramController) Save(c *gin.Context) {
	var req saveDiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "code": "invalid_argument"})
		return
	}
	d := domain.Diagram{Name: c.Param("name"), Path: req.Path, Content: []byte(req.Content)}

	saved, err := dc.service.Save(c.Request.Context(), middleware.IdentityFrom(c), d, target(c))
	if err != nil {
		respondError(c, diagramComponent, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(saved))
}

// Delete handles DELETE /diagrams/:name[?path=]; path locates the file when
// the name alone is not enough.
func (dc *DiagramController) Delete(c *gin.Context) {
	d := domain.Diagram{Name: c.Param("name"), Path: c.Query("path")}
	if err := dc.service.Delete(c.Request.Context(), middleware.IdentityFrom(c), d); err != nil {
		respondError(c, diagramComponent, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Rename handles POST /diagrams/:name/rename.
func (dc *DiagramController) Rename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "code": "invalid_argument"})
		return
	}
	d := domain.Diagram{Name: c.Param("name"), Path: c.Query("path")}

	renamed, err := dc.service.Rename(c.Request.Context(), middleware.IdentityFrom(c), d, req.NewName)
	if err != nil {
		respondError(c, diagramComponent, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(renamed))
}

// SaveSolution handles PUT /solution[?path=]. When only some diagrams could
// be written the answer is 207 with the saved paths and the failures.
func (dc *DiagramController) SaveSolution(c *gin.Context) {
	var req saveSolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "code": "invalid_argument"})
		return
	}
	sol := domain.Solution{RootPath: req.RootPath, Diagrams: make([]domain.Diagram, len(req.Diagrams))}
	for i, p := range req.Diagrams {
		sol.Diagrams[i] = p.diagram()
	}

	saved, err := dc.service.SaveSolution(c.Request.Context(), middleware.IdentityFrom(c), sol, target(c))
	var partial *domain.PartialSaveError
	if errors.As(err, &partial) {
		_ = c.Error(err)
		c.JSON(http.StatusMultiStatus, gin.H{"saved": saved, "failures": toFailures(partial.Failures)})
		return
	}
	if err != nil {
		respondError(c, diagramComponent, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}
