package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/storeadmin/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用した資格情報リポジトリ。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// FindByEmail はメールアドレスで資格情報を検索する。見つからない場合はnilを返す。
func (r *PostgresCredentialRepo) FindByEmail(ctx context.Context, email string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT c.user_id, u.email, c.password_hash, c.hash_version
		 FROM credentials c
		 JOIN users u ON u.id = c.user_id
		 WHERE LOWER(u.email) = LOWER($1)`,
		email,
	).Scan(&cred.UserID, &cred.Email, &cred.PasswordHash, &cred.HashVersion)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return cred, nil
}

// Upsert はユーザーのパスワードハッシュを作成または更新する。
func (r *PostgresCredentialRepo) Upsert(ctx context.Context, cred *model.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash, hash_version, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET password_hash = EXCLUDED.password_hash,
		     hash_version = EXCLUDED.hash_version,
		     updated_at = now()`,
		cred.UserID, cred.PasswordHash, cred.HashVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
