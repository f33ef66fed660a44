// Package service holds the blog's business rules on top of the repositories.
package service

import "blogpage/internal/observability"

// Owned is a resource with exactly one owning user.
type Owned interface {
	OwnerID() uint
}

// ModifyPolicy reports whether the acting user may change or delete r.
type ModifyPolicy func(actorID uint, r Owned) bool

// AuthorOnly allows a mutation only when the actor authored the resource.
func AuthorOnly(actorID uint, r Owned) bool {
	return r != nil && actorID != 0 && r.OwnerID() == actorID
}

// authorize runs policy and records denials. It must be called before any write.
func authorize(policy ModifyPolicy, actorID uint, r Owned, resource, operation string) bool {
	if policy == nil {
		policy = AuthorOnly
	}
	if policy(actorID, r) {
		return true
	}
	observability.AuthorizationDenials.WithLabelValues(resource, operation).Inc()
	return false
}
