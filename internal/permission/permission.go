package permission

import "errors"

var ErrForbidden = errors.New("forbidden")

// Action is an operation an actor may perform on a subject.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Subject is the kind of resource a grant applies to.
type Subject string

const SubjectConsumerSecret Subject = "consumer-secret"

// Scope narrows a grant to a set of records.
type Scope int

const (
	// ScopeOwn covers only records whose owner is the acting user.
	ScopeOwn Scope = iota
	// ScopeAll covers every record in the tenant.
	ScopeAll
)

// Grant allows one action on one subject within a scope.
type Grant struct {
	Subject Subject
	Action  Action
	Scope   Scope
}

// Set is the resolved permission set of one actor in one tenant.
type Set struct {
	OrgID  string
	Grants []Grant
}

// Allows reports whether any grant permits action on subject, regardless of scope.
// Collection-level operations (list, create) are checked this way.
func (s Set) Allows(subject Subject, action Action) bool {
	for _, g := range s.Grants {
		if g.Subject == subject && g.Action == action {
			return true
		}
	}
	return false
}

// AllowsOwned reports whether action on a record owned by ownerUserID is permitted
// for the actor actorID.
func (s Set) AllowsOwned(subject Subject, action Action, actorID, ownerUserID string) bool {
	for _, g := range s.Grants {
		if g.Subject != subject || g.Action != action {
			continue
		}
		switch g.Scope {
		case ScopeAll:
			return true
		case ScopeOwn:
			if ownerUserID != "" && ownerUserID == actorID {
				return true
			}
		}
	}
	return false
}

// Role names stored in org_memberships.
const (
	RoleAdmin    = "admin"
	RoleMember   = "member"
	RoleNoAccess = "no-access"
)

var allActions = []Action{ActionRead, ActionCreate, ActionEdit, ActionDelete}

// GrantsForRole returns the consumer secret grants that come with a tenant role.
// Unknown roles get nothing.
func GrantsForRole(role string) []Grant {
	var scope Scope
	switch role {
	case RoleAdmin:
		scope = ScopeAll
	case RoleMember:
		scope = ScopeOwn
	default:
		return nil
	}

	grants := make([]Grant, 0, len(allActions))
	for _, a := range allActions {
		grants = append(grants, Grant{Subject: SubjectConsumerSecret, Action: a, Scope: scope})
	}
	return grants
}
