// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import "context"

// Policy is a named collection of ACL templates, attached to users
// directly or through groups.
type Policy struct {
	UUID         string
	Name         string
	Description  string
	ACLTemplates []string
}

// PoliciesPage is one page of policies.
type PoliciesPage struct {
	Total    uint64
	Filtered uint64
	Policies []Policy
}

// PolicyRepository persists policies and their template associations.
// Template strings are deduplicated globally by exact content.
type PolicyRepository interface {
	// Save persists a new policy with its templates. A name collision
	// yields ErrDuplicatePolicy.
	Save(ctx context.Context, policy Policy) (Policy, error)

	// Update replaces name, description and template set.
	Update(ctx context.Context, policy Policy) (Policy, error)

	// Delete removes the policy and its template joins. A missing
	// policy yields ErrPolicyNotFound.
	Delete(ctx context.Context, id string) error

	// RetrieveByUUID fetches a policy with its aggregated templates.
	RetrieveByUUID(ctx context.Context, id string) (Policy, error)

	// RetrieveAll lists policies matching the page filters, each with
	// its aggregated templates. A policy without templates carries an
	// empty slice.
	RetrieveAll(ctx context.Context, pm Page) (PoliciesPage, error)

	// RetrieveForUser returns the user's effective policies: direct
	// associations plus the policies of every group the user belongs
	// to, deduplicated by uuid and ordered by name.
	RetrieveForUser(ctx context.Context, userID string) ([]Policy, error)

	// AssociateTemplate attaches a template to the policy. Attaching
	// an already associated template yields ErrDuplicateTemplate.
	AssociateTemplate(ctx context.Context, policyID, template string) error

	// DissociateTemplate detaches a template from the policy.
	DissociateTemplate(ctx context.Context, policyID, template string) error

	// Exists reports whether the policy uuid is known.
	Exists(ctx context.Context, id string) (bool, error)
}
