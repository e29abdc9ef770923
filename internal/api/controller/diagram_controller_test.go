package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bassista/solution_explorer/internal/api/middleware"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/explorer"
	"github.com/bassista/solution_explorer/internal/watch"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockExplorerService is a mock implementation of ExplorerService
type MockExplorerService struct {
	mock.Mock
}

func (m *MockExplorerService) Open(ctx context.Context, id domain.Identity, pathspec string) (SessionInfo, error) {
	args := m.Called(ctx, id, pathspec)
	return args.Get(0).(SessionInfo), args.Error(1)
}

func (m *MockExplorerService) List(ctx context.Context, id domain.Identity) ([]domain.Diagram, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]domain.Diagram), args.Error(1)
}

func (m *MockExplorerService) Get(ctx context.Context, id domain.Identity, name string, target explorer.Target) (domain.Diagram, error) {
	args := m.Called(ctx, id, name, target)
	return args.Get(0).(domain.Diagram), args.Error(1)
}

func (m *MockExplorerService) Save(ctx context.Context, id domain.Identity, d domain.Diagram, target explorer.Target) (domain.Diagram, error) {
	args := m.Called(ctx, id, d, target)
	return args.Get(0).(domain.Diagram), args.Error(1)
}

func (m *MockExplorerService) Delete(ctx context.Context, id domain.Identity, d domain.Diagram) error {
	args := m.Called(ctx, id, d)
	return args.Error(0)
}

func (m *MockExplorerService) Rename(ctx context.Context, id domain.Identity, d domain.Diagram, newName string) (domain.Diagram, error) {
	args := m.Called(ctx, id, d, newName)
	return args.Get(0).(domain.Diagram), args.Error(1)
}

func (m *MockExplorerService) SaveSolution(ctx context.Context, id domain.Identity, sol domain.Solution, target explorer.Target) ([]string, error) {
	args := m.Called(ctx, id, sol, target)
	saved, _ := args.Get(0).([]string)
	return saved, args.Error(1)
}

func (m *MockExplorerService) Watch(pathspec string, cb watch.Callback) (*watch.Subscription, error) {
	args := m.Called(pathspec, cb)
	sub, _ := args.Get(0).(*watch.Subscription)
	return sub, args.Error(1)
}

func newDiagramRouter(svc ExplorerService) *gin.Engine {
	dc := NewDiagramController(svc)
	r := gin.New()
	r.Use(middleware.Identity(nil))
	r.POST("/solution/open", dc.Open)
	r.PUT("/solution", dc.SaveSolution)
	r.GET("/diagrams", dc.List)
	r.GET("/diagrams/:name", dc.Get)
	r.PUT("/diagrams/:name", dc.Save)
	r.DELETE("/diagrams/:name", dc.Delete)
	r.POST("/diagrams/:name/rename", dc.Rename)
	return r
}

func do(r http.Handler, method, url, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, url, nil)
	} else {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

var anyCtx = mock.Anything

func TestDiagramController_Open(t *testing.T) {
	svc := new(MockExplorerService)
	svc.On("Open", anyCtx, domain.Identity{}, "/srv/sol").
		Return(SessionInfo{Path: "/srv/sol", Kind: "directory", Diagrams: 2}, nil)

	w := do(newDiagramRouter(svc), http.MethodPost, "/solution/open", `{"path":"/srv/sol"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	session := decode(t, w)["session"].(map[string]any)
	assert.Equal(t, "directory", session["kind"])
	assert.EqualValues(t, 2, session["diagrams"])
	svc.AssertExpectations(t)
}

func TestDiagramController_OpenPartial(t *testing.T) {
	svc := new(MockExplorerService)
	partial := &domain.PartialLoadError{Failures: []domain.FileFailure{
		{Path: "/srv/sol/bad.bpmn", Err: &domain.ParseError{Path: "/srv/sol/bad.bpmn"}},
	}}
	svc.On("Open", anyCtx, domain.Identity{}, "/srv/sol").
		Return(SessionInfo{Path: "/srv/sol", Kind: "directory", Diagrams: 1}, partial)

	w := do(newDiagramRouter(svc), http.MethodPost, "/solution/open", `{"path":"/srv/sol"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	failures := decode(t, w)["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "data_loss", failures[0].(map[string]any)["code"])
}

func TestDiagramController_OpenErrors(t *testing.T) {
	svc := new(MockExplorerService)
	svc.On("Open", anyCtx, domain.Identity{}, "/missing").
		Return(SessionInfo{}, &domain.NotFoundError{Path: "/missing"})
	r := newDiagramRouter(svc)

	w := do(r, http.MethodPost, "/solution/open", `{"path":"/missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["code"])

	w = do(r, http.MethodPost, "/solution/open", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiagramController_List(t *testing.T) {
	svc := new(MockExplorerService)
	svc.On("List", anyCtx, domain.Identity{}).Return([]domain.Diagram{
		{Name: "a", Path: "/srv/sol/a.bpmn", Content: []byte("<a/>")},
	}, nil)

	w := do(newDiagramRouter(svc), http.MethodGet, "/diagrams", "")

	assert.Equal(t, http.StatusOK, w.Code)
	diagrams := decode(t, w)["diagrams"].([]any)
	require.Len(t, diagrams, 1)
	assert.Equal(t, "<a/>", diagrams[0].(map[string]any)["content"])
}

func TestDiagramController_ListNothingOpened(t *testing.T) {
	svc := new(MockExplorerService)
	svc.On("List", anyCtx, domain.Identity{}).
		Return([]domain.Diagram(nil), &domain.InvalidPathError{Reason: "no path opened"})

	w := do(newDiagramRouter(svc), http.MethodGet, "/diagrams", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiagramController_GetWithTarget(t *testing.T) {
	svc := new(MockExplorerService)
	svc.On("Get", anyCtx, domain.Identity{}, "a", explorer.ExplicitPath("/other")).
		Return(domain.Diagram{Name: "a", Path: "/other/a.bpmn", Content: []byte("<a/>")}, nil)
	svc.On("Get", anyCtx, domain.Identity{}, "ghost", explorer.CurrentPath()).
		Return(domain.Diagram{}, &domain.NotFoundError{Name: "ghost"})
	r := newDiagramRouter(svc)

	w := do(r, http.MethodGet, "/diagrams/a?path=/other", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/other/a.bpmn", decode(t, w)["path"])

	w = do(r, http.MethodGet, "/diagrams/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiagramController_Save(t *testing.T) {
	svc := new(MockExplorerService)
	in := domain.Diagram{Name: "a", Content: []byte("<a/>")}
	svc.On("Save", anyCtx, domain.Identity{Subject: "bearer", Token: "tok"}, in, explorer.CurrentPath()).
		Return(domain.Diagram{Name: "a", Path: "/srv/sol/a.bpmn", Content: []byte("<a/>")}, nil)

	req := httptest.NewRequest(http.MethodPut, "/diagrams/a", strings.NewReader(`{"content":"<a/>"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	newDiagramRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/srv/sol/a.bpmn", decode(t, w)["path"])
	svc.AssertExpectations(t)
}

func TestDiagramController_SaveErrors(t *testing.T) {
	svc := new(MockExplorerService)
	svc.On("Save", anyCtx, domain.Identity{}, mock.MatchedBy(func(d domain.Diagram) bool { return d.Name == "dup" }), explorer.CurrentPath()).
		Return(domain.Diagram{}, &domain.ConflictError{Name: "dup", Paths: []string{"/x/dup.bpmn", "/dup.bpmn"}})
	svc.On("Save", anyCtx, domain.Identity{}, mock.MatchedBy(func(d domain.Diagram) bool { return d.Name == "bad" }), explorer.CurrentPath()).
		Return(domain.Diagram{}, &domain.ParseError{Path: "/bad.bpmn"})
	svc.On("Save", anyCtx, domain.Identity{}, mock.MatchedBy(func(d domain.Diagram) bool { return d.Name == "locked" }), explorer.CurrentPath()).
		Return(domain.Diagram{}, &domain.ForbiddenError{Operation: "save", Path: "/locked.bpmn"})
	r := newDiagramRouter(svc)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPut, "/diagrams/dup", `{"content":"<a/>"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(r, http.MethodPut, "/diagrams/bad", `{"content":"<<"}`).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPut, "/diagrams/locked", `{"content":"<a/>"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/diagrams/a", `{}`).Code)
}

func TestDiagramController_Delete(t *testing.T) {
	svc := new(MockExplorerService)
	svc.On("Delete", anyCtx, domain.Identity{}, domain.Diagram{Name: "a"}).Return(nil)
	svc.On("Delete", anyCtx, domain.Identity{}, domain.Diagram{Name: "b", Path: "/x/b.bpmn"}).
		Return(&domain.NotFoundError{Path: "/x/b.bpmn"})
	r := newDiagramRouter(svc)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/diagrams/a", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/diagrams/b?path=/x/b.bpmn", "").Code)
	svc.AssertExpectations(t)
}

func TestDiagramController_Rename(t *testing.T) {
	svc := new(MockExplorerService)
	svc.On("Rename", anyCtx, domain.Identity{}, domain.Diagram{Name: "b"}, "c").
		Return(domain.Diagram{Name: "c", Path: "/srv/sol/c.bpmn"}, nil)
	svc.On("Rename", anyCtx, domain.Identity{}, domain.Diagram{Name: "b"}, "a").
		Return(domain.Diagram{}, &domain.ConflictError{Name: "a", Exists: true})
	r := newDiagramRouter(svc)

	w := do(r, http.MethodPost, "/diagrams/b/rename", `{"new_name":"c"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c", decode(t, w)["name"])

	w = do(r, http.MethodPost, "/diagrams/b/rename", `{"new_name":"a"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_exists", decode(t, w)["code"])

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/diagrams/b/rename", `{}`).Code)
}

func TestDiagramController_SaveSolution(t *testing.T) {
	svc := new(MockExplorerService)
	sol := domain.Solution{Diagrams: []domain.Diagram{{Name: "a", Content: []byte("<a/>")}}}
	svc.On("SaveSolution", anyCtx, domain.Identity{}, sol, explorer.ExplicitPath("/dst")).
		Return([]string{"/dst/a.bpmn"}, nil)

	w := do(newDiagramRouter(svc), http.MethodPut, "/solution?path=/dst", `{"diagrams":[{"name":"a","content":"<a/>"}]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"/dst/a.bpmn"}, decode(t, w)["saved"])
}

func TestDiagramController_SaveSolutionPartial(t *testing.T) {
	svc := new(MockExplorerService)
	partial := &domain.PartialSaveError{
		Saved:    []string{"/sol/a.bpmn"},
		Failures: []domain.FileFailure{{Path: "/sol/b.bpmn", Err: &domain.ParseError{Path: "/sol/b.bpmn"}}},
	}
	svc.On("SaveSolution", anyCtx, domain.Identity{}, mock.Anything, explorer.CurrentPath()).
		Return([]string{"/sol/a.bpmn"}, partial)

	w := do(newDiagramRouter(svc), http.MethodPut, "/solution",
		`{"diagrams":[{"name":"a","content":"<a/>"},{"name":"b","content":"<<"}]}`)

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{"/sol/a.bpmn"}, body["saved"])
	assert.Len(t, body["failures"], 1)
}
