package model

// ActorKind is the type of principal making a request.
type ActorKind string

const (
	ActorUser     ActorKind = "user"
	ActorIdentity ActorKind = "identity"
)

// AuthMethod records how the actor authenticated.
type AuthMethod string

const (
	AuthMethodEmail AuthMethod = "email"
	AuthMethodSAML  AuthMethod = "saml"
	AuthMethodOIDC  AuthMethod = "oidc"
	AuthMethodToken AuthMethod = "token"
)

// Actor is the per-request identity used for every authorization decision.
// It is never persisted alongside a ConsumerSecret.
type Actor struct {
	Kind       ActorKind
	ID         string
	OrgID      string
	AuthMethod AuthMethod
}
