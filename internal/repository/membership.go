package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vaultpass/consumer-secrets/internal/model"
)

var (
	ErrMembershipNotFound   = errors.New("organization membership not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrDuplicateEntry       = errors.New("entry already exists")
)

// Membership is an actor's role within one organization.
type Membership struct {
	OrgID     string
	ActorKind model.ActorKind
	ActorID   string
	Role      string
}

// Organization holds the tenant settings that affect authorization.
type Organization struct {
	ID                 string
	Name               string
	EnforcedAuthMethod model.AuthMethod
}

// MembershipRepository reads tenant membership rows mirrored from the identity service.
type MembershipRepository struct {
	db *DB
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(db *DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// GetOrganization retrieves an organization by ID.
func (r *MembershipRepository) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	org := &Organization{}
	var enforced sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, enforced_auth_method FROM organizations WHERE id = ?`, orgID,
	).Scan(&org.ID, &org.Name, &enforced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, storageError("get organization", err)
	}
	org.EnforcedAuthMethod = model.AuthMethod(enforced.String)
	return org, nil
}

// GetMembership retrieves the actor's membership in an organization.
func (r *MembershipRepository) GetMembership(ctx context.Context, orgID string, kind model.ActorKind, actorID string) (*Membership, error) {
	m := &Membership{}
	err := r.db.QueryRowContext(ctx,
		`SELECT org_id, actor_kind, actor_id, role FROM org_memberships
		WHERE org_id = ? AND actor_kind = ? AND actor_id = ?`, orgID, string(kind), actorID,
	).Scan(&m.OrgID, &m.ActorKind, &m.ActorID, &m.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, storageError("get organization membership", err)
	}
	return m, nil
}

// CreateOrganization inserts an organization. Used for seeding and tests; the identity
// service owns the canonical row.
func (r *MembershipRepository) CreateOrganization(ctx context.Context, org Organization) error {
	var enforced any
	if org.EnforcedAuthMethod != "" {
		enforced = string(org.EnforcedAuthMethod)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, enforced_auth_method) VALUES (?, ?, ?)`,
		org.ID, org.Name, enforced)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateEntry
		}
		return storageError("create organization", err)
	}
	return nil
}

// CreateUser inserts a user row. Used for seeding and tests.
func (r *MembershipRepository) CreateUser(ctx context.Context, id, email string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, email) VALUES (?, ?)`, id, email)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateEntry
		}
		return storageError("create user", err)
	}
	return nil
}

// AddMember inserts a membership row. Used for seeding and tests.
func (r *MembershipRepository) AddMember(ctx context.Context, m Membership) error {
	kind := m.ActorKind
	if kind == "" {
		kind = model.ActorUser
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO org_memberships (org_id, actor_kind, actor_id, role) VALUES (?, ?, ?, ?)`,
		m.OrgID, string(kind), m.ActorID, m.Role)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateEntry
		}
		return storageError("add organization member", err)
	}
	return nil
}

// isDuplicateEntryError matches unique-key violations from MySQL and SQLite.
func isDuplicateEntryError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
