// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/voxlink/warden/auth"
)

// PolicyRepository is an in-memory policy repository mock. Direct
// user-policy links are attached through Grant so that RetrieveForUser
// can be exercised without a user repository.
type PolicyRepository struct {
	mu       sync.Mutex
	order    []string
	policies map[string]auth.Policy
	grants   map[string][]string
}

var _ auth.PolicyRepository = (*PolicyRepository)(nil)

// NewPolicyRepository returns an in-memory policy repository mock.
func NewPolicyRepository() *PolicyRepository {
	return &PolicyRepository{
		policies: map[string]auth.Policy{},
		grants:   map[string][]string{},
	}
}

// Grant links a policy to a user for RetrieveForUser.
func (prm *PolicyRepository) Grant(userID, policyID string) {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	prm.grants[userID] = append(prm.grants[userID], policyID)
}

func (prm *PolicyRepository) Save(ctx context.Context, policy auth.Policy) (auth.Policy, error) {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	for _, existing := range prm.policies {
		if existing.Name == policy.Name {
			return auth.Policy{}, auth.ErrDuplicatePolicy
		}
	}

	prm.order = append(prm.order, policy.UUID)
	prm.policies[policy.UUID] = policy
	return policy, nil
}

func (prm *PolicyRepository) Update(ctx context.Context, policy auth.Policy) (auth.Policy, error) {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	if _, ok := prm.policies[policy.UUID]; !ok {
		return auth.Policy{}, auth.ErrPolicyNotFound
	}
	prm.policies[policy.UUID] = policy
	return policy, nil
}

func (prm *PolicyRepository) Delete(ctx context.Context, id string) error {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	if _, ok := prm.policies[id]; !ok {
		return auth.ErrPolicyNotFound
	}
	delete(prm.policies, id)
	return nil
}

func (prm *PolicyRepository) RetrieveByUUID(ctx context.Context, id string) (auth.Policy, error) {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	policy, ok := prm.policies[id]
	if !ok {
		return auth.Policy{}, auth.ErrPolicyNotFound
	}
	return policy, nil
}

func (prm *PolicyRepository) RetrieveAll(ctx context.Context, pm auth.Page) (auth.PoliciesPage, error) {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	policies := []auth.Policy{}
	for _, id := range prm.order {
		policies = append(policies, prm.policies[id])
	}

	return auth.PoliciesPage{
		Total:    uint64(len(policies)),
		Filtered: uint64(len(policies)),
		Policies: policies,
	}, nil
}

func (prm *PolicyRepository) RetrieveForUser(ctx context.Context, userID string) ([]auth.Policy, error) {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	policies := []auth.Policy{}
	for _, id := range prm.grants[userID] {
		if policy, ok := prm.policies[id]; ok {
			policies = append(policies, policy)
		}
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })

	return policies, nil
}

func (prm *PolicyRepository) AssociateTemplate(ctx context.Context, policyID, template string) error {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	policy, ok := prm.policies[policyID]
	if !ok {
		return auth.ErrPolicyNotFound
	}
	for _, t := range policy.ACLTemplates {
		if t == template {
			return auth.ErrDuplicateTemplate
		}
	}
	policy.ACLTemplates = append(policy.ACLTemplates, template)
	prm.policies[policyID] = policy
	return nil
}

func (prm *PolicyRepository) DissociateTemplate(ctx context.Context, policyID, template string) error {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	policy, ok := prm.policies[policyID]
	if !ok {
		return auth.ErrPolicyNotFound
	}
	for k, t := range policy.ACLTemplates {
		if t == template {
			policy.ACLTemplates = append(policy.ACLTemplates[:k], policy.ACLTemplates[k+1:]...)
			break
		}
	}
	prm.policies[policyID] = policy
	return nil
}

func (prm *PolicyRepository) Exists(ctx context.Context, id string) (bool, error) {
	prm.mu.Lock()
	defer prm.mu.Unlock()

	_, ok := prm.policies[id]
	return ok, nil
}
