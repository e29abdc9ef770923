package route

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/solution_explorer/internal/app"
	"github.com/bassista/solution_explorer/internal/config"
	"github.com/bassista/solution_explorer/internal/explorer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	repo, err := explorer.New(context.Background(), explorer.DefaultOptions())
	require.NoError(t, err)

	cfg := &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second, CORSAllowedOrigins: "*"},
		Explorer: config.ExplorerConfig{Extensions: []string{".bpmn"}},
	}
	a, err := app.New(cfg, repo)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	return SetupRoutes(a, logrus.New())
}

func request(r http.Handler, method, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRoutes_Health(t *testing.T) {
	w := request(newEngine(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"UP"}`, w.Body.String())
}

func TestSetupRoutes_DiagramLifecycle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.bpmn"), []byte("<definitions/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.bpmn"), []byte("<definitions/>"), 0o644))
	r := newEngine(t)

	w := request(r, http.MethodGet, "/diagrams", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "nothing opened yet")

	open, err := json.Marshal(map[string]string{"path": root})
	require.NoError(t, err)
	w = request(r, http.MethodPost, "/solution/open", string(open))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = request(r, http.MethodDelete, "/diagrams/a", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = request(r, http.MethodPost, "/diagrams/b/rename", `{"new_name":"c"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(r, http.MethodPut, "/diagrams/d", `{"content":"<definitions id=\"d\"/>"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(r, http.MethodGet, "/diagrams", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Diagrams []struct {
			Name string `json:"name"`
		} `json:"diagrams"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Diagrams, 2)
	assert.Equal(t, "c", body.Diagrams[0].Name)
	assert.Equal(t, "d", body.Diagrams[1].Name)

	w = request(r, http.MethodGet, "/diagrams/a", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetupRoutes_Configuration(t *testing.T) {
	w := request(newEngine(t), http.MethodGet, "/configuration", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ".bpmn")
}

func TestSetupRoutes_RejectsMalformedAuthorization(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/diagrams", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	newEngine(t).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
