package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/modu-market/backend/internal/model"
)

const userColumns = `id, email, name, password_hash, role, provider, provider_user_id, created_at, updated_at`

// ErrIdentityConflict - 이메일이 이미 다른 외부 신원과 연결되어 있어
// 요청된 신원을 만들 수도, 기존 계정에 연결할 수도 없는 경우
var ErrIdentityConflict = errors.New("email already linked to a different identity")

func (db *Postgres) EnsureUserSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'USER',
			provider TEXT NOT NULL DEFAULT '',
			provider_user_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		// 외부 신원당 로컬 유저는 정확히 하나. 동시 콜백 경합은 이 제약으로 푼다.
		`
		CREATE UNIQUE INDEX IF NOT EXISTS users_provider_identity_idx
		ON users(provider, provider_user_id)
		WHERE provider <> ''
		`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, email, name, passwordHash, role string) (*model.User, error) {
	query := `
		INSERT INTO users (email, name, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + userColumns
	return db.scanUser(db.Pool.QueryRow(ctx, query, email, name, passwordHash, role))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return db.scanUser(db.Pool.QueryRow(ctx, query, email))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return db.scanUser(db.Pool.QueryRow(ctx, query, userID))
}

func (db *Postgres) ListUsers(ctx context.Context, page, size int) ([]model.User, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`
	rows, err := db.Pool.Query(ctx, query, size, page*size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
			&u.Provider, &u.ProviderUserID, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindOrCreateOAuthUser resolves the local user for an external identity.
// The insert races through ON CONFLICT DO NOTHING; whoever loses the race
// re-reads the winner's row, so two concurrent callbacks for the same
// provider identity always land on one user.
func (db *Postgres) FindOrCreateOAuthUser(ctx context.Context, provider, providerUserID, email, name string) (*model.User, error) {
	byProvider := `SELECT ` + userColumns + ` FROM users WHERE provider = $1 AND provider_user_id = $2`
	user, err := db.scanUser(db.Pool.QueryRow(ctx, byProvider, provider, providerUserID))
	if err == nil {
		return user, nil
	}
	if !IsNoRows(err) {
		return nil, err
	}

	// 같은 이메일로 가입한 로컬 계정이 있으면 외부 신원을 연결한다.
	link := `
		UPDATE users
		SET provider = $1, provider_user_id = $2, updated_at = NOW()
		WHERE email = $3 AND provider = ''
		RETURNING ` + userColumns
	user, err = db.scanUser(db.Pool.QueryRow(ctx, link, provider, providerUserID, email))
	if err == nil {
		return user, nil
	}
	if !IsNoRows(err) {
		return nil, err
	}

	insert := `
		INSERT INTO users (email, name, password_hash, role, provider, provider_user_id, created_at, updated_at)
		VALUES ($1, $2, '', 'USER', $3, $4, NOW(), NOW())
		ON CONFLICT DO NOTHING
		RETURNING ` + userColumns
	user, err = db.scanUser(db.Pool.QueryRow(ctx, insert, email, name, provider, providerUserID))
	if err == nil {
		return user, nil
	}
	if !IsNoRows(err) {
		return nil, err
	}

	// 경합에서 진 쪽: 반대편이 만든 행을 다시 읽는다. 그래도 없으면 충돌은
	// 이메일 유니크 제약이었고, 그 이메일은 다른 외부 신원의 소유다.
	user, err = db.scanUser(db.Pool.QueryRow(ctx, byProvider, provider, providerUserID))
	if IsNoRows(err) {
		return nil, ErrIdentityConflict
	}
	return user, err
}

func (db *Postgres) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.Provider, &u.ProviderUserID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
