package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vaultpass/consumer-secrets/internal/model"
	"github.com/vaultpass/consumer-secrets/internal/permission"
	"github.com/vaultpass/consumer-secrets/internal/repository"
)

var ErrSecretNotFound = errors.New("consumer secret not found")

// SecretStore is the persistence the service orchestrates.
type SecretStore interface {
	Insert(ctx context.Context, secret model.ConsumerSecret) (*model.ConsumerSecret, error)
	FindByID(ctx context.Context, id string) (*model.ConsumerSecret, error)
	FindByUserAndOrg(ctx context.Context, userID, orgID string) ([]model.ConsumerSecret, error)
	UpdateByID(ctx context.Context, id string, patch model.ConsumerSecretPatch) (*model.ConsumerSecret, error)
	DeleteByID(ctx context.Context, id string) (*model.ConsumerSecret, error)
}

// Authorizer decides whether an actor may act on consumer secrets.
type Authorizer interface {
	Authorize(ctx context.Context, actor model.Actor, orgID string, action permission.Action) error
	AuthorizeOwned(ctx context.Context, actor model.Actor, orgID string, action permission.Action, ownerUserID string) error
}

// ConsumerSecretService handles consumer secret business logic. Ciphertext fields
// pass through untouched; the service never inspects or logs them.
type ConsumerSecretService struct {
	store SecretStore
	authz Authorizer
}

// NewConsumerSecretService creates a new ConsumerSecretService.
func NewConsumerSecretService(store SecretStore, authz Authorizer) *ConsumerSecretService {
	return &ConsumerSecretService{store: store, authz: authz}
}

// List returns the actor's own secrets in orgID, ordered by ID. Broader tenant
// permissions do not widen the listing.
func (s *ConsumerSecretService) List(ctx context.Context, actor model.Actor, orgID string) ([]model.ConsumerSecret, error) {
	if err := s.authz.Authorize(ctx, actor, orgID, permission.ActionRead); err != nil {
		return nil, err
	}
	return s.store.FindByUserAndOrg(ctx, actor.ID, orgID)
}

// Get returns a single secret.
func (s *ConsumerSecretService) Get(ctx context.Context, actor model.Actor, id string) (*model.ConsumerSecret, error) {
	return s.findAuthorized(ctx, actor, id, permission.ActionRead)
}

// Create stores a new secret owned by the actor in orgID. Field presence is
// validated by the caller.
func (s *ConsumerSecretService) Create(ctx context.Context, actor model.Actor, orgID string, req model.CreateConsumerSecretRequest) (*model.ConsumerSecret, error) {
	if err := s.authz.Authorize(ctx, actor, orgID, permission.ActionCreate); err != nil {
		return nil, err
	}
	if actor.Kind != "" && actor.Kind != model.ActorUser {
		return nil, fmt.Errorf("%w: only users own consumer secrets", permission.ErrForbidden)
	}

	secret, err := s.store.Insert(ctx, model.ConsumerSecret{
		UsernameCiphertext: req.UsernameCiphertext,
		UsernameNonce:      req.UsernameNonce,
		PasswordCiphertext: req.PasswordCiphertext,
		PasswordNonce:      req.PasswordNonce,
		Algorithm:          req.Algorithm,
		UserID:             actor.ID,
		OrgID:              orgID,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("consumer secret created", "id", secret.ID, "org_id", orgID, "user_id", actor.ID)
	return secret, nil
}

// Update applies a partial patch to a secret and returns the new state.
func (s *ConsumerSecretService) Update(ctx context.Context, actor model.Actor, id string, patch model.ConsumerSecretPatch) (*model.ConsumerSecret, error) {
	if _, err := s.findAuthorized(ctx, actor, id, permission.ActionEdit); err != nil {
		return nil, err
	}

	secret, err := s.store.UpdateByID(ctx, id, patch)
	if err != nil {
		return nil, notFoundOr(err)
	}

	slog.Info("consumer secret updated", "id", id, "version", secret.Version)
	return secret, nil
}

// Delete removes a secret and returns its last state.
func (s *ConsumerSecretService) Delete(ctx context.Context, actor model.Actor, id string) (*model.ConsumerSecret, error) {
	if _, err := s.findAuthorized(ctx, actor, id, permission.ActionDelete); err != nil {
		return nil, err
	}

	secret, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}

	slog.Info("consumer secret deleted", "id", id)
	return secret, nil
}

// findAuthorized loads a record, then checks action against its owner in the
// record's own tenant. Existence is established first so the check has an owner.
func (s *ConsumerSecretService) findAuthorized(ctx context.Context, actor model.Actor, id string, action permission.Action) (*model.ConsumerSecret, error) {
	secret, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	if err := s.authz.AuthorizeOwned(ctx, actor, secret.OrgID, action, secret.UserID); err != nil {
		return nil, err
	}
	return secret, nil
}

// notFoundOr maps a missing row, including one removed by a concurrent delete,
// to ErrSecretNotFound and passes other errors through.
func notFoundOr(err error) error {
	if errors.Is(err, repository.ErrSecretNotFound) {
		return ErrSecretNotFound
	}
	return err
}
