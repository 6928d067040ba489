// internal/member/service.go
package member

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the member service.
type Service interface {
	Register(ctx context.Context, params CreateParams) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, query ListQuery) ([]*User, int, error)
	UpdateUser(ctx context.Context, id uuid.UUID, params UpdateParams) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	UpdateFCMToken(ctx context.Context, id uuid.UUID, token string, pushEnabled *bool) (*User, error)
}
