package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/storeadmin/internal/model"
)

// PostgresAddressRepo はPostgreSQLを使用した住所リポジトリ。
type PostgresAddressRepo struct {
	db *sql.DB
}

// NewPostgresAddressRepo はPostgresAddressRepoを生成する。
func NewPostgresAddressRepo(db *sql.DB) *PostgresAddressRepo {
	return &PostgresAddressRepo{db: db}
}

// ListByUserIDs は指定ユーザー群の住所を作成日時の昇順で取得する。
// userIDsが空の場合は問い合わせを行わず空スライスを返す。
func (r *PostgresAddressRepo) ListByUserIDs(ctx context.Context, userIDs []string) ([]*model.Address, error) {
	if len(userIDs) == 0 {
		return []*model.Address{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, phone, is_default, created_at
		 FROM addresses
		 WHERE user_id = ANY($1::uuid[])
		 ORDER BY created_at, id`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*model.Address
	for rows.Next() {
		var (
			addr  model.Address
			phone sql.NullString
		)
		if err := rows.Scan(&addr.ID, &addr.UserID, &phone, &addr.IsDefault, &addr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addr.Phone = nullStringValue(phone)
		addresses = append(addresses, &addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate addresses: %w", err)
	}

	return addresses, nil
}

// compile-time interface check
var _ AddressRepository = (*PostgresAddressRepo)(nil)
