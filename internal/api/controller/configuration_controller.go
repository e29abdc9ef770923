package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/solution_explorer/internal/config"
)

// ConfigurationResponse is what clients need to know about the explorer setup.
type ConfigurationResponse struct {
	RootPath   string   `json:"rootPath"`
	Extensions []string `json:"extensions"`
	IgnoreFile string   `json:"ignoreFile"`
	DebounceMs int64    `json:"debounceMs"`
}

// ConfigurationController handles configuration-related API endpoints.
type ConfigurationController struct {
	config *config.Config
}

func NewConfigurationController(cfg *config.Config) *ConfigurationController {
	return &ConfigurationController{
		config: cfg,
	}
}

// GetConfiguration handles GET /configuration.
func (cc *ConfigurationController) GetConfiguration(c *gin.Context) {
	ex := cc.config.Explorer
	c.JSON(http.StatusOK, ConfigurationResponse{
		RootPath:   ex.RootPath,
		Extensions: ex.Extensions,
		IgnoreFile: ex.IgnoreFile,
		DebounceMs: ex.Debounce.Milliseconds(),
	})
}
