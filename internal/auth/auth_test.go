package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowAll(t *testing.T) {
	err := AllowAll{}.Authorize(context.Background(), domain.Identity{}, OpDelete, "/s/a.bpmn")
	assert.NoError(t, err)
}

func TestClaimAuthorizer(t *testing.T) {
	a := NewClaimAuthorizer()
	ctx := context.Background()

	tests := []struct {
		name    string
		id      domain.Identity
		op      Operation
		wantErr any
	}{
		{"read needs nothing", domain.Identity{}, OpRead, nil},
		{"open needs nothing", domain.Identity{}, OpOpen, nil},
		{"anonymous delete", domain.Identity{}, OpDelete, &domain.UnauthorizedError{}},
		{"delete without claim", domain.Identity{Subject: "bob"}, OpDelete, &domain.ForbiddenError{}},
		{"delete with claim", domain.Identity{Subject: "bob", Claims: []string{"can_delete_diagram"}}, OpDelete, nil},
		{"rename with wrong claim", domain.Identity{Token: "t", Claims: []string{"can_delete_diagram"}}, OpRename, &domain.ForbiddenError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authorize(ctx, tt.id, tt.op, "/s/a.bpmn")
			switch want := tt.wantErr.(type) {
			case nil:
				assert.NoError(t, err)
			case *domain.UnauthorizedError:
				require.Error(t, err)
				assert.True(t, errors.As(err, &want))
			case *domain.ForbiddenError:
				require.Error(t, err)
				assert.True(t, errors.As(err, &want))
				assert.Equal(t, "/s/a.bpmn", want.Path)
			}
		})
	}
}

func TestClaimAuthorizer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewClaimAuthorizer().Authorize(ctx, domain.Identity{}, OpRead, "/s")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthorizerFunc(t *testing.T) {
	called := false
	var a Authorizer = AuthorizerFunc(func(_ context.Context, _ domain.Identity, op Operation, _ string) error {
		called = true
		assert.Equal(t, OpSave, op)
		return nil
	})
	assert.NoError(t, a.Authorize(context.Background(), domain.Identity{}, OpSave, "/s"))
	assert.True(t, called)
}
