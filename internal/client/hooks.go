package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaultpass/consumer-secrets/internal/model"
)

// Field names used in DecryptionError.
const (
	FieldUsername = "username"
	FieldPassword = "password"
)

var ErrNoChanges = errors.New("nothing to update")

// DecryptionError reports a field that could not be decrypted. For tampered,
// malformed or foreign ciphertext it unwraps to crypto.ErrDecryption.
type DecryptionError struct {
	SecretID string
	Field    string
	Err      error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypt %s of consumer secret %s: %v", e.Field, e.SecretID, e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// SecretAPI is the server surface the hooks call.
type SecretAPI interface {
	ListConsumerSecrets(ctx context.Context, orgID string) ([]model.ConsumerSecret, error)
	GetConsumerSecret(ctx context.Context, id string) (*model.ConsumerSecret, error)
	CreateConsumerSecret(ctx context.Context, orgID string, req model.CreateConsumerSecretRequest) (*model.ConsumerSecret, error)
	UpdateConsumerSecret(ctx context.Context, id string, patch model.ConsumerSecretPatch) (*model.ConsumerSecret, error)
	DeleteConsumerSecret(ctx context.Context, id string) (*model.ConsumerSecret, error)
}

// Credentials is a plaintext username/password pair.
type Credentials struct {
	Username string
	Password string
}

// DecryptedSecret is a record with its fields decrypted. A field that failed to
// decrypt is left empty and its error is set; it must not be shown as a value.
type DecryptedSecret struct {
	ID        string
	Version   int
	Algorithm string
	UserID    string
	OrgID     string
	CreatedAt time.Time
	UpdatedAt time.Time

	Username    string
	Password    string
	UsernameErr error
	PasswordErr error
}

// Err joins the per-field decryption errors, or returns nil.
func (d *DecryptedSecret) Err() error {
	return errors.Join(d.UsernameErr, d.PasswordErr)
}

// Secrets encrypts before every write and decrypts after every read.
type Secrets struct {
	api  SecretAPI
	keys *KeyContext
}

// NewSecrets creates a new Secrets.
func NewSecrets(api SecretAPI, keys *KeyContext) *Secrets {
	return &Secrets{api: api, keys: keys}
}

// List fetches and decrypts every secret the caller owns in orgID. A record that
// fails to decrypt is still returned, with its field errors set.
func (s *Secrets) List(ctx context.Context, orgID string) ([]DecryptedSecret, error) {
	records, err := s.api.ListConsumerSecrets(ctx, orgID)
	if err != nil {
		return nil, err
	}

	out := make([]DecryptedSecret, 0, len(records))
	for _, r := range records {
		out = append(out, s.decrypt(r))
	}
	return out, nil
}

// Get fetches and decrypts one secret.
func (s *Secrets) Get(ctx context.Context, id string) (*DecryptedSecret, error) {
	record, err := s.api.GetConsumerSecret(ctx, id)
	if err != nil {
		return nil, err
	}
	d := s.decrypt(*record)
	return &d, nil
}

// Create encrypts both fields separately and stores the bundle in orgID.
func (s *Secrets) Create(ctx context.Context, orgID string, creds Credentials) (*DecryptedSecret, error) {
	username, err := s.keys.Seal(creds.Username)
	if err != nil {
		return nil, err
	}
	password, err := s.keys.Seal(creds.Password)
	if err != nil {
		return nil, err
	}

	record, err := s.api.CreateConsumerSecret(ctx, orgID, model.CreateConsumerSecretRequest{
		UsernameCiphertext: username.Ciphertext,
		UsernameNonce:      username.Nonce,
		PasswordCiphertext: password.Ciphertext,
		PasswordNonce:      password.Nonce,
		Algorithm:          model.AlgorithmNaClBox,
	})
	if err != nil {
		return nil, err
	}
	d := s.decrypt(*record)
	return &d, nil
}

// Update encrypts and sends only the non-empty fields of changes; empty fields
// are left as they are on the server.
func (s *Secrets) Update(ctx context.Context, id string, changes Credentials) (*DecryptedSecret, error) {
	var patch model.ConsumerSecretPatch
	algorithm := model.AlgorithmNaClBox

	if changes.Username != "" {
		sealed, err := s.keys.Seal(changes.Username)
		if err != nil {
			return nil, err
		}
		patch.UsernameCiphertext = &sealed.Ciphertext
		patch.UsernameNonce = &sealed.Nonce
		patch.Algorithm = &algorithm
	}
	if changes.Password != "" {
		sealed, err := s.keys.Seal(changes.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordCiphertext = &sealed.Ciphertext
		patch.PasswordNonce = &sealed.Nonce
		patch.Algorithm = &algorithm
	}
	if patch.IsEmpty() {
		return nil, ErrNoChanges
	}

	record, err := s.api.UpdateConsumerSecret(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	d := s.decrypt(*record)
	return &d, nil
}

// Delete removes a secret and returns its decrypted last state.
func (s *Secrets) Delete(ctx context.Context, id string) (*DecryptedSecret, error) {
	record, err := s.api.DeleteConsumerSecret(ctx, id)
	if err != nil {
		return nil, err
	}
	d := s.decrypt(*record)
	return &d, nil
}

func (s *Secrets) decrypt(r model.ConsumerSecret) DecryptedSecret {
	d := DecryptedSecret{
		ID:        r.ID,
		Version:   r.Version,
		Algorithm: r.Algorithm,
		UserID:    r.UserID,
		OrgID:     r.OrgID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if r.Algorithm != "" && r.Algorithm != model.AlgorithmNaClBox {
		unsupported := fmt.Errorf("unsupported algorithm %q", r.Algorithm)
		d.UsernameErr = &DecryptionError{SecretID: r.ID, Field: FieldUsername, Err: unsupported}
		d.PasswordErr = &DecryptionError{SecretID: r.ID, Field: FieldPassword, Err: unsupported}
		return d
	}

	var err error
	if d.Username, err = s.keys.Open(r.UsernameCiphertext, r.UsernameNonce); err != nil {
		d.Username = ""
		d.UsernameErr = &DecryptionError{SecretID: r.ID, Field: FieldUsername, Err: err}
	}
	if d.Password, err = s.keys.Open(r.PasswordCiphertext, r.PasswordNonce); err != nil {
		d.Password = ""
		d.PasswordErr = &DecryptionError{SecretID: r.ID, Field: FieldPassword, Err: err}
	}
	return d
}
