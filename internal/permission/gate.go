package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaultpass/consumer-secrets/internal/model"
	"github.com/vaultpass/consumer-secrets/internal/repository"
)

// Resolver produces an actor's permission set within a tenant.
type Resolver interface {
	ResolveActorPermissions(ctx context.Context, actor model.Actor, orgID string) (Set, error)
}

// MembershipStore is the subset of the membership repository the resolver reads.
type MembershipStore interface {
	GetOrganization(ctx context.Context, orgID string) (*repository.Organization, error)
	GetMembership(ctx context.Context, orgID string, kind model.ActorKind, actorID string) (*repository.Membership, error)
}

// MembershipResolver resolves permissions from tenant membership rows.
type MembershipResolver struct {
	store MembershipStore
}

// NewMembershipResolver creates a new MembershipResolver.
func NewMembershipResolver(store MembershipStore) *MembershipResolver {
	return &MembershipResolver{store: store}
}

// ResolveActorPermissions returns the grants the actor's role carries in orgID.
// The actor must have authenticated against orgID, with the org's enforced auth
// method if it has one, and must be a member.
func (r *MembershipResolver) ResolveActorPermissions(ctx context.Context, actor model.Actor, orgID string) (Set, error) {
	if actor.ID == "" || orgID == "" || actor.OrgID != orgID {
		return Set{}, fmt.Errorf("%w: actor is not authenticated for organization %s", ErrForbidden, orgID)
	}

	org, err := r.store.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrOrganizationNotFound) {
			return Set{}, fmt.Errorf("%w: organization %s", ErrForbidden, orgID)
		}
		return Set{}, err
	}
	if org.EnforcedAuthMethod != "" && org.EnforcedAuthMethod != actor.AuthMethod {
		return Set{}, fmt.Errorf("%w: organization requires %s authentication", ErrForbidden, org.EnforcedAuthMethod)
	}

	kind := actor.Kind
	if kind == "" {
		kind = model.ActorUser
	}
	m, err := r.store.GetMembership(ctx, orgID, kind, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrMembershipNotFound) {
			return Set{}, fmt.Errorf("%w: not a member of organization %s", ErrForbidden, orgID)
		}
		return Set{}, err
	}

	return Set{OrgID: orgID, Grants: GrantsForRole(m.Role)}, nil
}

// Gate checks consumer secret actions against resolved permission sets.
type Gate struct {
	resolver Resolver
}

// NewGate creates a new Gate.
func NewGate(resolver Resolver) *Gate {
	return &Gate{resolver: resolver}
}

// Authorize checks a tenant-wide action such as listing or creating.
func (g *Gate) Authorize(ctx context.Context, actor model.Actor, orgID string, action Action) error {
	set, err := g.resolver.ResolveActorPermissions(ctx, actor, orgID)
	if err != nil {
		return err
	}
	if !set.Allows(SubjectConsumerSecret, action) {
		return fmt.Errorf("%w: %s consumer secrets", ErrForbidden, action)
	}
	return nil
}

// AuthorizeOwned checks an action on a single record owned by ownerUserID in orgID.
func (g *Gate) AuthorizeOwned(ctx context.Context, actor model.Actor, orgID string, action Action, ownerUserID string) error {
	set, err := g.resolver.ResolveActorPermissions(ctx, actor, orgID)
	if err != nil {
		return err
	}
	if !set.AllowsOwned(SubjectConsumerSecret, action, actor.ID, ownerUserID) {
		return fmt.Errorf("%w: %s consumer secret", ErrForbidden, action)
	}
	return nil
}
