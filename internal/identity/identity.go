// Package identity carries the authenticated caller through the engine.
// Authentication itself happens upstream; the engine only receives the
// verified id and role.
package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/booking-engine/internal/apperr"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleClient, RoleProvider, RoleAdmin:
		return r, nil
	default:
		return "", apperr.New(apperr.ErrInvalidArgument, "unknown role %q", s)
	}
}

type Actor struct {
	ID   uuid.UUID
	Role Role
}

func Client(id uuid.UUID) Actor   { return Actor{ID: id, Role: RoleClient} }
func Provider(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleProvider} }
func Admin(id uuid.UUID) Actor    { return Actor{ID: id, Role: RoleAdmin} }

func (a Actor) String() string { return string(a.Role) + ":" + a.ID.String() }

// Require fails with ErrForbidden unless a has one of roles.
func (a Actor) Require(roles ...Role) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return apperr.New(apperr.ErrForbidden, "role %q may not perform this operation", a.Role)
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
