package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpass/consumer-secrets/internal/config"
	"github.com/vaultpass/consumer-secrets/internal/crypto"
	"github.com/vaultpass/consumer-secrets/internal/model"
	"github.com/vaultpass/consumer-secrets/internal/permission"
	"github.com/vaultpass/consumer-secrets/internal/repository"
	"github.com/vaultpass/consumer-secrets/internal/service"
)

var testToken = crypto.TokenConfig{
	Secret:   "handler-test-secret",
	Issuer:   "vaultpass",
	Audience: "vaultpass-api",
	Expiry:   time.Hour,
}

var generousLimits = config.RateLimit{ReadRPS: 1000, ReadBurst: 1000, WriteRPS: 1000, WriteBurst: 1000}

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	orgID  string
	alice  string
	bob    string
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := repository.NewDB(config.Database{
		Driver: repository.DriverLibSQL,
		DSN:    "file:" + filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	members := repository.NewMembershipRepository(db)
	ts := &testServer{
		t:      t,
		orgID:  uuid.NewString(),
		alice:  uuid.NewString(),
		bob:    uuid.NewString(),
		tokens: map[string]string{},
	}
	require.NoError(t, members.CreateOrganization(ctx, repository.Organization{ID: ts.orgID, Name: "acme"}))
	for _, id := range []string{ts.alice, ts.bob} {
		require.NoError(t, members.CreateUser(ctx, id, id+"@example.com"))
		require.NoError(t, members.AddMember(ctx, repository.Membership{OrgID: ts.orgID, ActorID: id, Role: permission.RoleMember}))
		token, err := crypto.GenerateToken(model.Actor{
			Kind: model.ActorUser, ID: id, OrgID: ts.orgID, AuthMethod: model.AuthMethodEmail,
		}, testToken)
		require.NoError(t, err)
		ts.tokens[id] = token
	}

	svc := service.NewConsumerSecretService(
		repository.NewConsumerSecretRepository(db),
		permission.NewGate(permission.NewMembershipResolver(members)),
	)

	routerCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	ts.srv = httptest.NewServer(NewRouter(routerCtx, RouterConfig{
		Token:     testToken,
		RateLimit: generousLimits,
		Secrets:   NewConsumerSecretHandler(svc),
		DB:        db,
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(method, path, actorID string, body any) (int, []byte) {
	ts.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, rdr)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[actorID])
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(ts.t, err)
	return resp.StatusCode, buf.Bytes()
}

func (ts *testServer) collection() string {
	return "/api/v1/consumer-secrets?orgId=" + ts.orgID
}

func decodeSecret(t *testing.T, body []byte) model.ConsumerSecret {
	t.Helper()
	var resp model.ConsumerSecretResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.ConsumerSecret
}

func createBody() map[string]string {
	return map[string]string{
		"usernameCiphertext": "encrypted_username",
		"usernameNonce":      "username_nonce",
		"passwordCiphertext": "encrypted_password",
		"passwordNonce":      "password_nonce",
		"algorithm":          "nacl-box",
	}
}

func TestConsumerSecretLifecycle(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(http.MethodPost, ts.collection(), ts.alice, createBody())
	require.Equal(t, http.StatusOK, status, string(body))
	created := decodeSecret(t, body)
	assert.Equal(t, ts.alice, created.UserID)
	assert.Equal(t, ts.orgID, created.OrgID)

	status, body = ts.do(http.MethodGet, ts.collection(), ts.alice, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var list model.ConsumerSecretListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.ConsumerSecrets, 1)
	got := list.ConsumerSecrets[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "encrypted_username", got.UsernameCiphertext)
	assert.Equal(t, "username_nonce", got.UsernameNonce)
	assert.Equal(t, "encrypted_password", got.PasswordCiphertext)
	assert.Equal(t, "password_nonce", got.PasswordNonce)
	assert.Equal(t, "nacl-box", got.Algorithm)

	status, body = ts.do(http.MethodPatch, "/api/v1/consumer-secrets/"+created.ID, ts.alice, map[string]string{
		"usernameCiphertext": "new_encrypted_username",
		"usernameNonce":      "new_username_nonce",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	updated := decodeSecret(t, body)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "new_encrypted_username", updated.UsernameCiphertext)
	assert.Equal(t, "new_username_nonce", updated.UsernameNonce)
	assert.Equal(t, "encrypted_password", updated.PasswordCiphertext)
	assert.Equal(t, "password_nonce", updated.PasswordNonce)

	status, body = ts.do(http.MethodDelete, "/api/v1/consumer-secrets/"+created.ID, ts.alice, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, created.ID, decodeSecret(t, body).ID)

	status, _ = ts.do(http.MethodGet, "/api/v1/consumer-secrets/"+created.ID, ts.alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWireShape(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(http.MethodPost, ts.collection(), ts.alice, createBody())
	require.Equal(t, http.StatusOK, status)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	record, ok := raw["consumerSecret"]
	require.True(t, ok, string(body))
	for _, key := range []string{"id", "userId", "orgId", "usernameCiphertext", "usernameNonce",
		"passwordCiphertext", "passwordNonce", "algorithm", "createdAt", "updatedAt"} {
		assert.Contains(t, record, key)
	}
	_, err := time.Parse(time.RFC3339Nano, record["createdAt"].(string))
	assert.NoError(t, err)
}

func TestCreateIgnoresClientOwner(t *testing.T) {
	ts := newTestServer(t)

	body := createBody()
	body["userId"] = ts.bob
	status, resp := ts.do(http.MethodPost, ts.collection(), ts.alice, body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ts.alice, decodeSecret(t, resp).UserID)
}

func TestCreateMissingFields(t *testing.T) {
	ts := newTestServer(t)

	for _, field := range []string{"usernameCiphertext", "usernameNonce", "passwordCiphertext", "passwordNonce", "algorithm"} {
		t.Run(field, func(t *testing.T) {
			body := createBody()
			delete(body, field)
			status, resp := ts.do(http.MethodPost, ts.collection(), ts.alice, body)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Contains(t, string(resp), field)
		})
	}

	body := createBody()
	body["passwordNonce"] = "   "
	status, _ := ts.do(http.MethodPost, ts.collection(), ts.alice, body)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp := ts.do(http.MethodGet, ts.collection(), ts.alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(resp), `"consumerSecrets":[]`, "no partial record may be stored")
}

func TestOwnershipIsolationOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(http.MethodPost, ts.collection(), ts.alice, createBody())
	require.Equal(t, http.StatusOK, status)
	id := decodeSecret(t, body).ID
	path := "/api/v1/consumer-secrets/" + id

	status, body = ts.do(http.MethodGet, ts.collection(), ts.bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), id)

	status, _ = ts.do(http.MethodGet, path, ts.bob, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = ts.do(http.MethodPatch, path, ts.bob, map[string]string{"usernameNonce": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = ts.do(http.MethodDelete, path, ts.bob, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = ts.do(http.MethodGet, path, ts.alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decodeSecret(t, body).Version)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(http.MethodGet, ts.collection(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ts.do(http.MethodGet, "/api/v1/consumer-secrets", ts.alice, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(http.MethodGet, "/api/v1/consumer-secrets?orgId="+uuid.NewString(), ts.alice, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ts.do(http.MethodGet, "/api/v1/consumer-secrets/not-a-uuid", ts.alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(http.MethodPatch, "/api/v1/consumer-secrets/"+uuid.NewString(), ts.alice, map[string]string{"algorithm": "nacl-box"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(http.MethodDelete, "/api/v1/consumer-secrets/"+uuid.NewString(), ts.alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := ts.do(http.MethodPost, ts.collection(), ts.alice, createBody())
	require.Equal(t, http.StatusOK, status)
	path := "/api/v1/consumer-secrets/" + decodeSecret(t, body).ID

	status, _ = ts.do(http.MethodPatch, path, ts.alice, map[string]string{"usernameNonce": "  "})
	assert.Equal(t, http.StatusBadRequest, status)

	req, err := http.NewRequest(http.MethodPatch, ts.srv.URL+path, strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ts.tokens[ts.alice])
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	huge := createBody()
	huge["usernameCiphertext"] = strings.Repeat("a", maxBodyBytes)
	status, _ = ts.do(http.MethodPost, ts.collection(), ts.alice, huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("dial tcp: connection refused") }

func TestHealthDatabaseDown(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth(downDB{})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token, err := crypto.GenerateToken(model.Actor{ID: "u1", OrgID: "o1"}, testToken)
	require.NoError(t, err)

	// The service is never reached: the empty body fails validation first.
	h := NewRouter(ctx, RouterConfig{
		Token:     testToken,
		RateLimit: config.RateLimit{ReadRPS: 100, ReadBurst: 100, WriteRPS: 0.001, WriteBurst: 1},
		Secrets:   NewConsumerSecretHandler(nil),
	})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/consumer-secrets?orgId=o1", strings.NewReader("{}"))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
}

func TestWriteServiceErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"not found", service.ErrSecretNotFound, http.StatusNotFound, service.ErrSecretNotFound.Error()},
		{"forbidden", fmt.Errorf("%w: edit consumer-secret", permission.ErrForbidden), http.StatusUnauthorized, "unauthorized"},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/consumer-secrets/x", nil)
			writeServiceError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["error"])
		})
	}
}
