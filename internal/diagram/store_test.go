package diagram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bassista/solution_explorer/internal/auth"
	"github.com/bassista/solution_explorer/internal/domain"
)

const sampleBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" id="d1">
  <process id="p1"/>
</definitions>
`

// MockAuthorizer is a mock implementation of auth.Authorizer
type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Authorize(ctx context.Context, id domain.Identity, op auth.Operation, path string) error {
	args := m.Called(ctx, id, op, path)
	return args.Error(0)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStore_LoadDerivesNameFromBaseName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order.process.bpmn")
	writeFile(t, path, sampleBPMN)

	store := NewStore(nil, nil, nil)
	d, err := store.Load(context.Background(), domain.Identity{}, path)
	require.NoError(t, err)

	assert.Equal(t, "order.process", d.Name)
	assert.Equal(t, path, d.Path)
	assert.Equal(t, sampleBPMN, string(d.Content))
}

func TestStore_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.bpmn")
	writeFile(t, bad, "<definitions>")

	store := NewStore(nil, nil, nil)
	ctx := context.Background()

	_, err := store.Load(ctx, domain.Identity{}, filepath.Join(dir, "missing.bpmn"))
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = store.Load(ctx, domain.Identity{}, bad)
	var pe *domain.ParseError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, bad, pe.Path)

	_, err = store.Load(ctx, domain.Identity{}, dir)
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestStore_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "invoice.bpmn")

	store := NewStore(nil, nil, nil)
	ctx := context.Background()
	in := domain.Diagram{Name: "invoice", Content: []byte(sampleBPMN)}

	require.NoError(t, store.Save(ctx, domain.Identity{}, in, path))

	out, err := store.Load(ctx, domain.Identity{}, path)
	require.NoError(t, err)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.Content, out.Content)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStore_SaveDefaultsToDiagramPathAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bpmn")
	writeFile(t, path, "<definitions/>")

	store := NewStore(nil, nil, nil)
	d := domain.Diagram{Name: "a", Path: path, Content: []byte(sampleBPMN)}
	require.NoError(t, store.Save(context.Background(), domain.Identity{}, d, ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleBPMN, string(data))
}

func TestStore_SaveRejects(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(nil, nil, nil)
	ctx := context.Background()

	err := store.Save(ctx, domain.Identity{}, domain.Diagram{Name: "a", Content: []byte(sampleBPMN)}, "")
	assert.True(t, errdefs.IsInvalidArgument(err), "no path")

	err = store.Save(ctx, domain.Identity{}, domain.Diagram{Name: "../a", Content: []byte(sampleBPMN)}, filepath.Join(dir, "a.bpmn"))
	assert.True(t, errdefs.IsInvalidArgument(err), "bad name")

	err = store.Save(ctx, domain.Identity{}, domain.Diagram{Name: "a", Content: []byte("not xml")}, filepath.Join(dir, "a.bpmn"))
	var pe *domain.ParseError
	assert.True(t, errors.As(err, &pe))
	_, statErr := os.Stat(filepath.Join(dir, "a.bpmn"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStore_ConcurrentSavesNeverInterleave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "race.bpmn")
	store := NewStore(nil, RawFormat{}, nil)

	payloadA := make([]byte, 1<<20)
	payloadB := make([]byte, 1<<20)
	for i := range payloadA {
		payloadA[i] = 'a'
		payloadB[i] = 'b'
	}

	var wg sync.WaitGroup
	for _, p := range [][]byte{payloadA, payloadB} {
		wg.Add(1)
		go func(p []byte) {
			defer wg.Done()
			assert.NoError(t, store.Save(context.Background(), domain.Identity{}, domain.Diagram{Name: "race", Content: p}, path))
		}(p)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, string(data) == string(payloadA) || string(data) == string(payloadB))
}

func TestStore_Delete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bpmn")
	writeFile(t, path, sampleBPMN)

	store := NewStore(nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, domain.Identity{}, path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	err = store.Delete(ctx, domain.Identity{}, path)
	assert.True(t, errdefs.IsNotFound(err), "deleting twice must fail")
}

func TestStore_RenameRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bpmn")
	b := filepath.Join(dir, "b.bpmn")
	writeFile(t, a, sampleBPMN)
	writeFile(t, b, "<definitions id=\"b\"/>")

	store := NewStore(nil, nil, nil)
	err := store.Rename(context.Background(), domain.Identity{}, a, b)

	var ce *domain.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Exists)
	data, _ := os.ReadFile(b)
	assert.Equal(t, "<definitions id=\"b\"/>", string(data))
	_, err = os.Stat(a)
	assert.NoError(t, err)
}

func TestStore_RenameMovesFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bpmn")
	c := filepath.Join(dir, "sub", "c.bpmn")
	writeFile(t, a, sampleBPMN)

	store := NewStore(nil, nil, nil)
	ctx := context.Background()
	require.NoError(t, store.Rename(ctx, domain.Identity{}, a, c))

	d, err := store.Load(ctx, domain.Identity{}, c)
	require.NoError(t, err)
	assert.Equal(t, "c", d.Name)
	_, err = os.Stat(a)
	assert.True(t, os.IsNotExist(err))

	err = store.Rename(ctx, domain.Identity{}, a, filepath.Join(dir, "d.bpmn"))
	assert.True(t, errdefs.IsNotFound(err))

	err = store.Rename(ctx, domain.Identity{}, c, filepath.Join(dir, "d.txt"))
	assert.True(t, errdefs.IsInvalidArgument(err))
}

func TestStore_AuthorizationIsDelegated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bpmn")
	writeFile(t, path, sampleBPMN)

	id := domain.Identity{Subject: "bob"}
	authz := &MockAuthorizer{}
	authz.On("Authorize", mock.Anything, id, auth.OpDelete, path).
		Return(&domain.ForbiddenError{Operation: "delete", Path: path})
	authz.On("Authorize", mock.Anything, id, auth.OpRename, path).
		Return(&domain.UnauthorizedError{Operation: "rename"})

	store := NewStore(nil, nil, authz)
	ctx := context.Background()

	err := store.Delete(ctx, id, path)
	assert.True(t, errdefs.IsPermissionDenied(err))

	err = store.Rename(ctx, id, path, filepath.Join(dir, "b.bpmn"))
	assert.True(t, errdefs.IsUnauthorized(err))

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "denied operations must not touch the file")
	authz.AssertExpectations(t)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStore(nil, nil, nil).Load(ctx, domain.Identity{}, "/nowhere.bpmn")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"a", "order process", "v1.2"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", " ", "..", ".hidden", "a/b", `a\b`, "a\x00"} {
		assert.False(t, ValidName(name), fmt.Sprintf("%q", name))
	}
}
