package controller

import (
	"context"

	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/explorer"
	"github.com/bassista/solution_explorer/internal/watch"
)

// SessionInfo describes an opened pathspec.
type SessionInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Diagrams int    `json:"diagrams"`
}

// ExplorerService is what the HTTP layer needs from the repository. Every
// call carries the identity of the request.
type ExplorerService interface {
	Open(ctx context.Context, id domain.Identity, pathspec string) (SessionInfo, error)
	List(ctx context.Context, id domain.Identity) ([]domain.Diagram, error)
	Get(ctx context.Context, id domain.Identity, name string, target explorer.Target) (domain.Diagram, error)
	Save(ctx context.Context, id domain.Identity, d domain.Diagram, target explorer.Target) (domain.Diagram, error)
	Delete(ctx context.Context, id domain.Identity, d domain.Diagram) error
	Rename(ctx context.Context, id domain.Identity, d domain.Diagram, newName string) (domain.Diagram, error)
	SaveSolution(ctx context.Context, id domain.Identity, sol domain.Solution, target explorer.Target) ([]string, error)
	Watch(pathspec string, cb watch.Callback) (*watch.Subscription, error)
}

// RepositoryService serves requests from the repository's current session,
// acting as the requesting identity.
type RepositoryService struct {
	Repo *explorer.Repository
}

func (s *RepositoryService) session(id domain.Identity) (*explorer.Session, error) {
	current, err := s.Repo.Current()
	if err != nil {
		return nil, err
	}
	return current.As(id), nil
}

func (s *RepositoryService) Open(ctx context.Context, id domain.Identity, pathspec string) (SessionInfo, error) {
	sess, err := s.Repo.OpenPath(ctx, pathspec, id)
	if sess == nil {
		return SessionInfo{}, err
	}
	diagrams, _ := sess.GetDiagrams(ctx)
	return SessionInfo{Path: sess.Path(), Kind: sess.Kind().String(), Diagrams: len(diagrams)}, err
}

func (s *RepositoryService) List(ctx context.Context, id domain.Identity) ([]domain.Diagram, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sess.GetDiagrams(ctx)
}

func (s *RepositoryService) Get(ctx context.Context, id domain.Identity, name string, target explorer.Target) (domain.Diagram, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.Diagram{}, err
	}
	return sess.GetDiagramByName(ctx, name, target)
}

func (s *RepositoryService) Save(ctx context.Context, id domain.Identity, d domain.Diagram, target explorer.Target) (domain.Diagram, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.Diagram{}, err
	}
	return sess.SaveDiagram(ctx, d, target)
}

func (s *RepositoryService) Delete(ctx context.Context, id domain.Identity, d domain.Diagram) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	return sess.DeleteDiagram(ctx, d)
}

func (s *RepositoryService) Rename(ctx context.Context, id domain.Identity, d domain.Diagram, newName string) (domain.Diagram, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.Diagram{}, err
	}
	return sess.RenameDiagram(ctx, d, newName)
}

func (s *RepositoryService) SaveSolution(ctx context.Context, id domain.Identity, sol domain.Solution, target explorer.Target) ([]string, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sess.SaveSolution(ctx, sol, target)
}

func (s *RepositoryService) Watch(pathspec string, cb watch.Callback) (*watch.Subscription, error) {
	return s.Repo.Watch(pathspec, cb)
}
