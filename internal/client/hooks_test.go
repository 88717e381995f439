package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpass/consumer-secrets/internal/crypto"
	"github.com/vaultpass/consumer-secrets/internal/model"
)

// recordingAPI stores what it is sent and replays it on reads.
type recordingAPI struct {
	rows    map[string]model.ConsumerSecret
	order   []string
	creates []model.CreateConsumerSecretRequest
	patches []model.ConsumerSecretPatch
}

func newRecordingAPI() *recordingAPI {
	return &recordingAPI{rows: map[string]model.ConsumerSecret{}}
}

func (a *recordingAPI) ListConsumerSecrets(_ context.Context, orgID string) ([]model.ConsumerSecret, error) {
	var out []model.ConsumerSecret
	for _, id := range a.order {
		if r, ok := a.rows[id]; ok && r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *recordingAPI) GetConsumerSecret(_ context.Context, id string) (*model.ConsumerSecret, error) {
	r, ok := a.rows[id]
	if !ok {
		return nil, &APIError{Status: 404, Message: "consumer secret not found"}
	}
	return &r, nil
}

func (a *recordingAPI) CreateConsumerSecret(_ context.Context, orgID string, req model.CreateConsumerSecretRequest) (*model.ConsumerSecret, error) {
	a.creates = append(a.creates, req)
	id := fmt.Sprintf("secret-%d", len(a.order)+1)
	r := model.ConsumerSecret{
		ID: id, Version: 1, OrgID: orgID, UserID: "user-1",
		UsernameCiphertext: req.UsernameCiphertext, UsernameNonce: req.UsernameNonce,
		PasswordCiphertext: req.PasswordCiphertext, PasswordNonce: req.PasswordNonce,
		Algorithm: req.Algorithm,
	}
	a.rows[id] = r
	a.order = append(a.order, id)
	return &r, nil
}

func (a *recordingAPI) UpdateConsumerSecret(_ context.Context, id string, p model.ConsumerSecretPatch) (*model.ConsumerSecret, error) {
	a.patches = append(a.patches, p)
	r, ok := a.rows[id]
	if !ok {
		return nil, &APIError{Status: 404}
	}
	if p.UsernameCiphertext != nil {
		r.UsernameCiphertext, r.UsernameNonce = *p.UsernameCiphertext, *p.UsernameNonce
	}
	if p.PasswordCiphertext != nil {
		r.PasswordCiphertext, r.PasswordNonce = *p.PasswordCiphertext, *p.PasswordNonce
	}
	r.Version++
	a.rows[id] = r
	return &r, nil
}

func (a *recordingAPI) DeleteConsumerSecret(_ context.Context, id string) (*model.ConsumerSecret, error) {
	r, ok := a.rows[id]
	if !ok {
		return nil, &APIError{Status: 404}
	}
	delete(a.rows, id)
	return &r, nil
}

func newTestSecrets(t *testing.T) (*Secrets, *recordingAPI, *KeyContext) {
	t.Helper()
	keys, err := GenerateKeyContext()
	require.NoError(t, err)
	api := newRecordingAPI()
	return NewSecrets(api, keys), api, keys
}

func TestCreateSendsOnlyCiphertext(t *testing.T) {
	s, api, _ := newTestSecrets(t)

	got, err := s.Create(context.Background(), "org-1", Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "hunter2", got.Password)
	assert.NoError(t, got.Err())

	require.Len(t, api.creates, 1)
	req := api.creates[0]
	assert.Equal(t, model.AlgorithmNaClBox, req.Algorithm)
	assert.NotContains(t, req.UsernameCiphertext, "alice")
	assert.NotContains(t, req.PasswordCiphertext, "hunter2")
	assert.NotEqual(t, req.UsernameNonce, req.PasswordNonce, "each field gets its own nonce")
	assert.NotEqual(t, req.UsernameCiphertext, req.PasswordCiphertext)
}

func TestUpdateSendsOnlyChangedFields(t *testing.T) {
	s, api, _ := newTestSecrets(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "org-1", Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	before := api.rows[created.ID]

	updated, err := s.Update(ctx, created.ID, Credentials{Username: "alice2"})
	require.NoError(t, err)

	require.Len(t, api.patches, 1)
	p := api.patches[0]
	assert.NotNil(t, p.UsernameCiphertext)
	assert.NotNil(t, p.UsernameNonce)
	assert.Nil(t, p.PasswordCiphertext)
	assert.Nil(t, p.PasswordNonce)
	require.NotNil(t, p.Algorithm)
	assert.Equal(t, model.AlgorithmNaClBox, *p.Algorithm)

	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "hunter2", updated.Password)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, before.PasswordCiphertext, api.rows[created.ID].PasswordCiphertext)
}

func TestUpdateWithoutChanges(t *testing.T) {
	s, api, _ := newTestSecrets(t)
	_, err := s.Update(context.Background(), "secret-1", Credentials{})
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Empty(t, api.patches)
}

func TestListIsolatesDecryptionFailures(t *testing.T) {
	s, api, _ := newTestSecrets(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "org-1", Credentials{Username: "a", Password: "1"})
	require.NoError(t, err)
	second, err := s.Create(ctx, "org-1", Credentials{Username: "b", Password: "2"})
	require.NoError(t, err)

	// Seal the first record's password with a different key pair.
	other, err := GenerateKeyContext()
	require.NoError(t, err)
	foreign, err := other.Seal("1")
	require.NoError(t, err)
	r := api.rows[first.ID]
	r.PasswordCiphertext, r.PasswordNonce = foreign.Ciphertext, foreign.Nonce
	api.rows[first.ID] = r

	list, err := s.List(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	broken := list[0]
	assert.Equal(t, first.ID, broken.ID)
	assert.Equal(t, "a", broken.Username)
	assert.NoError(t, broken.UsernameErr)
	assert.Empty(t, broken.Password, "a failed field must not carry ciphertext or partial text")
	var de *DecryptionError
	require.ErrorAs(t, broken.PasswordErr, &de)
	assert.Equal(t, first.ID, de.SecretID)
	assert.Equal(t, FieldPassword, de.Field)
	assert.ErrorIs(t, broken.Err(), crypto.ErrDecryption)

	ok := list[1]
	assert.Equal(t, second.ID, ok.ID)
	assert.Equal(t, "b", ok.Username)
	assert.Equal(t, "2", ok.Password)
	assert.NoError(t, ok.Err())
}

func TestUnsupportedAlgorithm(t *testing.T) {
	s, api, _ := newTestSecrets(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "org-1", Credentials{Username: "a", Password: "1"})
	require.NoError(t, err)
	r := api.rows[created.ID]
	r.Algorithm = "aes-256-gcm"
	api.rows[created.ID] = r

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Username)
	assert.Error(t, got.UsernameErr)
	assert.Error(t, got.PasswordErr)
}

func TestGetAndDeletePropagateAPIErrors(t *testing.T) {
	s, _, _ := newTestSecrets(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Delete(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeystoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "vaultctl.env")

	keys, err := GenerateKeyContext()
	require.NoError(t, err)
	require.NoError(t, keys.Save(path))

	loaded, err := LoadKeyContext(path)
	require.NoError(t, err)
	assert.Equal(t, keys.PublicKey(), loaded.PublicKey())

	sealed, err := keys.Seal("s3cret")
	require.NoError(t, err)
	plain, err := loaded.Open(sealed.Ciphertext, sealed.Nonce)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)
}

func TestKeystoreIsOwnerOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := t.TempDir()
	keys, err := GenerateKeyContext()
	require.NoError(t, err)

	fresh := filepath.Join(dir, "fresh.env")
	require.NoError(t, keys.Save(fresh))
	info, err := os.Stat(fresh)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	existing := filepath.Join(dir, "existing.env")
	require.NoError(t, os.WriteFile(existing, []byte("OLD=1\n"), 0o644))
	require.NoError(t, keys.Save(existing))
	info, err = os.Stat(existing)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := godotenv.Read(existing)
	require.NoError(t, err)
	assert.NotContains(t, entries, "OLD")
	assert.Equal(t, keys.PublicKey(), entries[KeyPublic])
}

func TestLoadKeyContextErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadKeyContext(filepath.Join(dir, "absent.env"))
	assert.Error(t, err)

	keys, err := GenerateKeyContext()
	require.NoError(t, err)
	partial := filepath.Join(dir, "partial.env")
	require.NoError(t, keys.Save(partial))
	entries := map[string]string{KeyPublic: keys.PublicKey()}
	require.NoError(t, godotenv.Write(entries, partial))

	_, err = LoadKeyContext(partial)
	assert.ErrorIs(t, err, ErrKeyMissing)

	bad := filepath.Join(dir, "bad.env")
	require.NoError(t, godotenv.Write(map[string]string{KeyPublic: "short", KeyPrivate: "short"}, bad))
	_, err = LoadKeyContext(bad)
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}

func TestNewKeyContextRejectsNil(t *testing.T) {
	_, err := NewKeyContext(nil, nil)
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}
