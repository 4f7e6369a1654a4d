// Package access carries the authenticated identity through a request and makes role decisions.
package access

import (
	"context"
	"fmt"
	"slices"

	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
)

type ctxKey string

const identityKey ctxKey = "fv.identity"

// WithIdentity stores the authenticated identity in context.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext fetches the identity stored by WithIdentity.
func FromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}

// RequireRole allows id only if its role is one of roles.
// A nil identity yields errs.ErrUnauthorized, a role outside the set errs.ErrForbidden.
func RequireRole(id *model.Identity, roles ...model.Role) error {
	if id == nil {
		return errs.ErrUnauthorized
	}
	if !slices.Contains(roles, id.Role) {
		return fmt.Errorf("%w: role %q not allowed", errs.ErrForbidden, id.Role)
	}
	return nil
}

// Require is RequireRole for the identity stored in ctx.
func Require(ctx context.Context, roles ...model.Role) error {
	id, ok := FromContext(ctx)
	if !ok {
		return RequireRole(nil, roles...)
	}
	return RequireRole(&id, roles...)
}
