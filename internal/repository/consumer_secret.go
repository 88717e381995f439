package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vaultpass/consumer-secrets/internal/model"
)

var ErrSecretNotFound = errors.New("consumer secret not found")

// StorageError wraps a persistence failure with the name of the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

const consumerSecretColumns = `id, version, username_ciphertext, username_nonce, password_ciphertext,
	password_nonce, algorithm, user_id, org_id, created_at, updated_at`

// ConsumerSecretRepository persists consumer secrets. It applies no authorization:
// callers decide who may see the rows it returns.
type ConsumerSecretRepository struct {
	db    *DB
	now   func() time.Time
	newID func() string
}

// NewConsumerSecretRepository creates a new ConsumerSecretRepository.
func NewConsumerSecretRepository(db *DB) *ConsumerSecretRepository {
	return &ConsumerSecretRepository{
		db:    db,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID: func() string { return uuid.NewString() },
	}
}

// BeginTx starts a transaction that the ...Tx methods can join.
func (r *ConsumerSecretRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// Insert stores a new secret, assigning its ID, version 1, and timestamps.
// UserID and OrgID must reference existing rows.
func (r *ConsumerSecretRepository) Insert(ctx context.Context, secret model.ConsumerSecret) (*model.ConsumerSecret, error) {
	var out *model.ConsumerSecret
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = r.InsertTx(ctx, tx, secret)
		return err
	})
	if err != nil {
		return nil, asStorageError("insert consumer secret", err)
	}
	return out, nil
}

// InsertTx is Insert within the caller's transaction.
func (r *ConsumerSecretRepository) InsertTx(ctx context.Context, tx *sql.Tx, secret model.ConsumerSecret) (*model.ConsumerSecret, error) {
	now := r.now()
	secret.ID = r.newID()
	secret.Version = 1
	secret.CreatedAt = now
	secret.UpdatedAt = now
	if secret.Algorithm == "" {
		secret.Algorithm = model.AlgorithmNaClBox
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO consumer_secrets (`+consumerSecretColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		secret.ID, secret.Version,
		secret.UsernameCiphertext, secret.UsernameNonce,
		secret.PasswordCiphertext, secret.PasswordNonce,
		secret.Algorithm, secret.UserID, secret.OrgID,
		secret.CreatedAt, secret.UpdatedAt,
	)
	if err != nil {
		return nil, storageError("insert consumer secret", err)
	}

	out, err := findByID(ctx, tx, secret.ID, "")
	if err != nil {
		return nil, asStorageError("insert consumer secret", err)
	}
	return out, nil
}

// FindByID returns the secret with the given ID or ErrSecretNotFound.
func (r *ConsumerSecretRepository) FindByID(ctx context.Context, id string) (*model.ConsumerSecret, error) {
	secret, err := findByID(ctx, r.db, id, "")
	if err != nil && !errors.Is(err, ErrSecretNotFound) {
		return nil, storageError("find consumer secret by id", err)
	}
	return secret, err
}

// FindByUserAndOrg returns every secret owned by userID in orgID, ordered by ID.
func (r *ConsumerSecretRepository) FindByUserAndOrg(ctx context.Context, userID, orgID string) ([]model.ConsumerSecret, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+consumerSecretColumns+`
		FROM consumer_secrets WHERE user_id = ? AND org_id = ? ORDER BY id ASC`, userID, orgID)
	if err != nil {
		return nil, storageError("get all consumer secrets", err)
	}
	defer rows.Close()

	secrets := []model.ConsumerSecret{}
	for rows.Next() {
		s, err := scanConsumerSecret(rows)
		if err != nil {
			return nil, storageError("get all consumer secrets", err)
		}
		secrets = append(secrets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("get all consumer secrets", err)
	}

	return secrets, nil
}

// UpdateByID applies the non-nil patch fields, increments the version by one and
// refreshes updated_at. It fails with a StorageError wrapping ErrSecretNotFound when
// no row matches. The version is not compared against any expected value.
func (r *ConsumerSecretRepository) UpdateByID(ctx context.Context, id string, patch model.ConsumerSecretPatch) (*model.ConsumerSecret, error) {
	var out *model.ConsumerSecret
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = r.UpdateByIDTx(ctx, tx, id, patch)
		return err
	})
	if err != nil {
		return nil, asStorageError("update consumer secret", err)
	}
	return out, nil
}

// UpdateByIDTx is UpdateByID within the caller's transaction.
func (r *ConsumerSecretRepository) UpdateByIDTx(ctx context.Context, tx *sql.Tx, id string, patch model.ConsumerSecretPatch) (*model.ConsumerSecret, error) {
	var sets []string
	var args []any
	add := func(column string, v *string) {
		if v != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *v)
		}
	}
	add("username_ciphertext", patch.UsernameCiphertext)
	add("username_nonce", patch.UsernameNonce)
	add("password_ciphertext", patch.PasswordCiphertext)
	add("password_nonce", patch.PasswordNonce)
	add("algorithm", patch.Algorithm)
	sets = append(sets, "version = version + 1", "updated_at = ?")
	args = append(args, r.now(), id)

	res, err := tx.ExecContext(ctx,
		`UPDATE consumer_secrets SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, storageError("update consumer secret", err)
	}
	if err := checkRowsAffected(res, "update consumer secret"); err != nil {
		return nil, err
	}

	out, err := findByID(ctx, tx, id, "")
	if err != nil {
		return nil, asStorageError("update consumer secret", err)
	}
	return out, nil
}

// DeleteByID removes the row and returns its last state. It fails with a
// StorageError wrapping ErrSecretNotFound when no row matches.
func (r *ConsumerSecretRepository) DeleteByID(ctx context.Context, id string) (*model.ConsumerSecret, error) {
	var out *model.ConsumerSecret
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = r.DeleteByIDTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, asStorageError("delete consumer secret", err)
	}
	return out, nil
}

// DeleteByIDTx is DeleteByID within the caller's transaction.
func (r *ConsumerSecretRepository) DeleteByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.ConsumerSecret, error) {
	last, err := findByID(ctx, tx, id, r.lockClause())
	if err != nil {
		return nil, asStorageError("delete consumer secret", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM consumer_secrets WHERE id = ?`, id)
	if err != nil {
		return nil, storageError("delete consumer secret", err)
	}
	if err := checkRowsAffected(res, "delete consumer secret"); err != nil {
		return nil, err
	}

	return last, nil
}

// lockClause returns the row-lock suffix for a SELECT inside a write transaction.
// SQLite has no row locks; its single writer already serializes the transaction.
func (r *ConsumerSecretRepository) lockClause() string {
	if r.db.driver == DriverMySQL {
		return " FOR UPDATE"
	}
	return ""
}

func findByID(ctx context.Context, q DBTX, id, suffix string) (*model.ConsumerSecret, error) {
	row := q.QueryRowContext(ctx, `SELECT `+consumerSecretColumns+`
		FROM consumer_secrets WHERE id = ?`+suffix, id)
	secret, err := scanConsumerSecret(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSecretNotFound
		}
		return nil, err
	}
	return secret, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsumerSecret(s rowScanner) (*model.ConsumerSecret, error) {
	var c model.ConsumerSecret
	err := s.Scan(
		&c.ID, &c.Version,
		&c.UsernameCiphertext, &c.UsernameNonce,
		&c.PasswordCiphertext, &c.PasswordNonce,
		&c.Algorithm, &c.UserID, &c.OrgID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func checkRowsAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageError(op, err)
	}
	if n == 0 {
		return storageError(op, ErrSecretNotFound)
	}
	return nil
}

// asStorageError leaves an existing StorageError alone and wraps anything else.
func asStorageError(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return storageError(op, err)
}
