// Package authz decides whether an identity may act within an organization.
// Decisions are pure functions of the identity, the scope and the policy.
package authz

import (
	"fmt"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/identity"
)

// Requirement describes what an operation needs from its caller.
type Requirement struct {
	// RequireOrganization rejects calls made without an organization scope.
	RequireOrganization bool

	// Permission is the capability the caller's role must grant. Empty means
	// being authenticated and a member of the scope is enough.
	Permission Permission
}

// Require returns an organization-scoped requirement for perm.
func Require(perm Permission) Requirement {
	return Requirement{RequireOrganization: true, Permission: perm}
}

// Evaluator applies a Policy. It holds no mutable state and is safe for
// concurrent use.
type Evaluator struct {
	policy *Policy
}

// NewEvaluator creates an evaluator. A nil policy uses DefaultPolicy.
func NewEvaluator(policy *Policy) *Evaluator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Evaluator{policy: policy}
}

// Policy returns the policy the evaluator applies.
func (e *Evaluator) Policy() *Policy {
	return e.policy
}

// CanAccess returns nil when id may act in scope with req, otherwise an
// *apperr.Error of kind Unauthenticated, OrganizationRequired or Forbidden.
func (e *Evaluator) CanAccess(id *identity.Identity, scope identity.OrganizationScope, req Requirement) error {
	if id == nil {
		return apperr.Unauthenticated("authentication required")
	}

	if scope.IsZero() {
		if req.RequireOrganization {
			return apperr.OrganizationRequired()
		}
		// Personal resources need no membership.
		return nil
	}

	membership, ok := id.MembershipIn(scope)
	if !ok {
		return apperr.Forbidden("not a member of this organization")
	}

	if req.Permission == "" {
		return nil
	}

	if !e.policy.Allows(membership.Role, req.Permission) {
		return apperr.Forbidden(fmt.Sprintf("role %s lacks %s", membership.Role, req.Permission))
	}

	return nil
}
