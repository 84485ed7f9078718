package rbac

import (
	"context"
	"strings"
)

// Permissions checked by the headless quiz routes.
const (
	PermView    = "headlessquiz:view"     // own quiz view and attempts
	PermViewAny = "headlessquiz:view-any" // another user's view and attempts
	PermSave    = "attempt:save"
	PermSubmit  = "attempt:submit"
	PermEvents  = "events:read"
)

// Checker answers permission questions against a role → patterns table.
// A pattern is an exact permission, "*" or a prefix ending in "*".
type Checker struct {
	policy map[string][]string
}

func NewChecker(policy map[string][]string) *Checker {
	if policy == nil {
		policy = RolePermissions
	}
	return &Checker{policy: policy}
}

func (c *Checker) Has(role, perm string) bool {
	if role == "" {
		return false
	}
	for _, pattern := range c.policy[role] {
		if matchPerm(pattern, perm) {
			return true
		}
	}
	return false
}

// Any reports whether role holds at least one of perms.
func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard {
		return pattern == perm
	}
	return strings.HasPrefix(perm, prefix)
}

var defaultChecker = NewChecker(nil)

// Can reports whether role holds perm under the default policy.
func Can(role, perm string) bool { return defaultChecker.Has(role, perm) }

type roleKey struct{}

// WithRole stores the caller's effective role, refreshed from the users table
// after token verification.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
