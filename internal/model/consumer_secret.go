package model

import "time"

// AlgorithmNaClBox identifies ciphertext produced by NaCl box (X25519, XSalsa20-Poly1305).
const AlgorithmNaClBox = "nacl-box"

// ConsumerSecret is a stored username/password pair. The four ciphertext-bearing
// fields are opaque to the server and are never parsed or validated here.
type ConsumerSecret struct {
	ID                 string    `json:"id"`
	Version            int       `json:"version"`
	UsernameCiphertext string    `json:"usernameCiphertext"`
	UsernameNonce      string    `json:"usernameNonce"`
	PasswordCiphertext string    `json:"passwordCiphertext"`
	PasswordNonce      string    `json:"passwordNonce"`
	Algorithm          string    `json:"algorithm"`
	UserID             string    `json:"userId"`
	OrgID              string    `json:"orgId"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ConsumerSecretPatch holds the fields of a partial update. Nil fields are left untouched.
type ConsumerSecretPatch struct {
	UsernameCiphertext *string `json:"usernameCiphertext,omitempty"`
	UsernameNonce      *string `json:"usernameNonce,omitempty"`
	PasswordCiphertext *string `json:"passwordCiphertext,omitempty"`
	PasswordNonce      *string `json:"passwordNonce,omitempty"`
	Algorithm          *string `json:"algorithm,omitempty"`
}

// IsEmpty reports whether the patch carries no fields.
func (p ConsumerSecretPatch) IsEmpty() bool {
	return p.UsernameCiphertext == nil && p.UsernameNonce == nil &&
		p.PasswordCiphertext == nil && p.PasswordNonce == nil && p.Algorithm == nil
}

// CreateConsumerSecretRequest is the POST /consumer-secrets body. All fields are required.
type CreateConsumerSecretRequest struct {
	UsernameCiphertext string `json:"usernameCiphertext"`
	UsernameNonce      string `json:"usernameNonce"`
	PasswordCiphertext string `json:"passwordCiphertext"`
	PasswordNonce      string `json:"passwordNonce"`
	Algorithm          string `json:"algorithm"`
}

// UpdateConsumerSecretRequest is the PATCH /consumer-secrets/{id} body.
type UpdateConsumerSecretRequest = ConsumerSecretPatch

// ConsumerSecretResponse wraps a single record on the wire.
type ConsumerSecretResponse struct {
	ConsumerSecret ConsumerSecret `json:"consumerSecret"`
}

// ConsumerSecretListResponse wraps a record listing on the wire.
type ConsumerSecretListResponse struct {
	ConsumerSecrets []ConsumerSecret `json:"consumerSecrets"`
}
