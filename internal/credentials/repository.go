package credentials

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
)

// Repository persists StorageConnection rows and their credential material.
// Credentials never touch the database or the wire in plaintext: every
// column is secretbox-sealed by sealer before INSERT and opened only in
// memory after SELECT.
type Repository struct {
	pool   *pgxpool.Pool
	sealer *sealer
}

// NewRepository builds a credentials Repository. masterKeyB64 is
// CREDENTIAL_MASTER_KEY from config.StorageConfig.
func NewRepository(pool *pgxpool.Pool, masterKeyB64 string) (*Repository, error) {
	s, err := newSealer(masterKeyB64)
	if err != nil {
		return nil, err
	}
	return &Repository{pool: pool, sealer: s}, nil
}

func (r *Repository) encryptCredentials(creds map[string]string) ([]byte, error) {
	if len(creds) == 0 {
		return []byte{}, nil
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	return r.sealer.seal(raw)
}

func (r *Repository) decryptCredentials(sealed []byte) (map[string]string, error) {
	if len(sealed) == 0 {
		return map[string]string{}, nil
	}
	raw, err := r.sealer.open(sealed)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) scanConnection(row pgx.Row) (*models.StorageConnection, error) {
	var (
		c        models.StorageConnection
		provider string
		sealed   []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &provider, &sealed, &c.BasePath, &c.IsDefault, &c.IsActive,
		&c.LastTestedAt, &c.TestStatus, &c.TestError, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apierrors.Wrap(apierrors.KindNotFound, "storage connection not found", err)
		}
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "scan storage connection", err)
	}
	c.Provider = models.Provider(provider)
	creds, err := r.decryptCredentials(sealed)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindCredentialExpired, "decrypt storage connection credentials", err)
	}
	c.Credentials = creds
	return &c, nil
}

const connectionColumns = `id, name, provider, credentials, base_path, is_default, is_active,
	last_tested_at, test_status, test_error, created_at, updated_at`

// Get returns a single StorageConnection with decrypted credentials.
func (r *Repository) Get(ctx context.Context, id int64) (*models.StorageConnection, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM storage_connections WHERE id = $1`, id)
	return r.scanConnection(row)
}

// GetDefault returns the default connection for provider, or a
// KindNotFound error.
func (r *Repository) GetDefault(ctx context.Context, provider models.Provider) (*models.StorageConnection, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM storage_connections
		WHERE provider = $1 AND is_default AND is_active`, provider)
	return r.scanConnection(row)
}

// List returns every storage connection.
func (r *Repository) List(ctx context.Context) ([]models.StorageConnection, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+connectionColumns+` FROM storage_connections ORDER BY id`)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list storage connections", err)
	}
	defer rows.Close()
	var out []models.StorageConnection
	for rows.Next() {
		c, err := r.scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a new StorageConnection. If conn.IsDefault is set, any
// existing default for the same provider is cleared first so the unique
// partial index never conflicts.
func (r *Repository) Create(ctx context.Context, conn models.StorageConnection) (*models.StorageConnection, error) {
	sealed, err := r.encryptCredentials(conn.Credentials)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "encrypt storage connection credentials", err)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	if conn.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE storage_connections SET is_default = FALSE WHERE provider = $1`, conn.Provider); err != nil {
			return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "clear previous default", err)
		}
	}
	row := tx.QueryRow(ctx, `INSERT INTO storage_connections (name, provider, credentials, base_path, is_default, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE) RETURNING `+connectionColumns,
		conn.Name, conn.Provider, sealed, conn.BasePath, conn.IsDefault)
	created, err := r.scanConnection(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "commit tx", err)
	}
	return created, nil
}

// UpdateTestResult records the outcome of a TestConnection probe.
func (r *Repository) UpdateTestResult(ctx context.Context, id int64, result models.TestResult) error {
	status := "ok"
	if !result.OK {
		status = "broken"
	}
	_, err := r.pool.Exec(ctx, `UPDATE storage_connections SET
		last_tested_at = NOW(), test_status = $2, test_error = $3, updated_at = NOW() WHERE id = $1`,
		id, status, result.Err)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "update test result", err)
	}
	return nil
}

// OAuthTokens is the plaintext view of a cloud-disk connection's token pair.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// GetTokens loads and decrypts the OAuth token pair for connectionID, or
// a KindNotFound error if none has been stored yet.
func (r *Repository) GetTokens(ctx context.Context, connectionID int64) (*OAuthTokens, error) {
	var accessSealed, refreshSealed []byte
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, `SELECT access_token, refresh_token, expires_at FROM storage_credentials
		WHERE connection_id = $1`, connectionID).Scan(&accessSealed, &refreshSealed, &expiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apierrors.Wrap(apierrors.KindNotFound, "no credentials on file", err)
		}
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "load oauth tokens", err)
	}
	access, err := r.sealer.open(accessSealed)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindCredentialExpired, "decrypt access token", err)
	}
	refresh, err := r.sealer.open(refreshSealed)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindCredentialExpired, "decrypt refresh token", err)
	}
	return &OAuthTokens{AccessToken: string(access), RefreshToken: string(refresh), ExpiresAt: expiresAt}, nil
}

// UpsertTokens seals and stores a fresh token pair for connectionID.
func (r *Repository) UpsertTokens(ctx context.Context, connectionID int64, tokens OAuthTokens) error {
	access, err := r.sealer.seal([]byte(tokens.AccessToken))
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "encrypt access token", err)
	}
	refresh, err := r.sealer.seal([]byte(tokens.RefreshToken))
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "encrypt refresh token", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO storage_credentials (connection_id, access_token, refresh_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (connection_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		connectionID, access, refresh, tokens.ExpiresAt)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "upsert oauth tokens", err)
	}
	return nil
}

// ListExpiringTokens returns connection IDs whose access token expires
// within window, for the refresher loop to pick up.
func (r *Repository) ListExpiringTokens(ctx context.Context, window time.Duration) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT connection_id FROM storage_credentials WHERE expires_at < $1`,
		time.Now().Add(window))
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindPermanentStorage, "list expiring tokens", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkBroken flags a connection's test_status broken after a permanent
// credential failure (e.g. refresh token revoked).
func (r *Repository) MarkBroken(ctx context.Context, connectionID int64, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE storage_connections SET test_status = 'broken', test_error = $2, updated_at = NOW()
		WHERE id = $1`, connectionID, reason)
	if err != nil {
		return apierrors.Wrap(apierrors.KindPermanentStorage, "mark connection broken", err)
	}
	return nil
}
