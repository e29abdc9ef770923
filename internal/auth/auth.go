// Package auth is the boundary to the identity/authorization collaborator.
package auth

import (
	"context"

	"github.com/bassista/solution_explorer/internal/domain"
)

// Operation names an explorer operation subject to authorization.
type Operation string

const (
	OpOpen   Operation = "open"
	OpRead   Operation = "read"
	OpSave   Operation = "save"
	OpDelete Operation = "delete"
	OpRename Operation = "rename"
)

// Authorizer decides whether an identity may perform an operation on a path.
// A denial is reported as *domain.ForbiddenError or *domain.UnauthorizedError.
type Authorizer interface {
	Authorize(ctx context.Context, id domain.Identity, op Operation, path string) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, id domain.Identity, op Operation, path string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, id domain.Identity, op Operation, path string) error {
	return f(ctx, id, op, path)
}

// AllowAll permits every operation.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, domain.Identity, Operation, string) error { return nil }

// ClaimAuthorizer requires a claim per operation. Operations without an
// entry in Required are allowed for any identity, anonymous included.
type ClaimAuthorizer struct {
	Required map[Operation]string
}

// NewClaimAuthorizer returns the default claim set used by the process engine
// tooling: reads are free, mutations need a dedicated claim.
func NewClaimAuthorizer() *ClaimAuthorizer {
	return &ClaimAuthorizer{Required: map[Operation]string{
		OpSave:   "can_save_diagram",
		OpDelete: "can_delete_diagram",
		OpRename: "can_rename_diagram",
	}}
}

func (a *ClaimAuthorizer) Authorize(ctx context.Context, id domain.Identity, op Operation, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	claim, ok := a.Required[op]
	if !ok {
		return nil
	}
	if id.IsAnonymous() {
		return &domain.UnauthorizedError{Operation: string(op), Reason: "no identity provided"}
	}
	if !id.HasClaim(claim) {
		return &domain.ForbiddenError{Operation: string(op), Path: path}
	}
	return nil
}
