// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/storeadmin/internal/model"
)

// UserRepository はユーザー（Identity Record）の永続化インターフェース。
type UserRepository interface {
	// ListByCreatedDesc は全ユーザーを作成日時の降順で取得する。
	// 作成日時が同一の場合はIDの昇順で並べ、結果を決定的にする。
	ListByCreatedDesc(ctx context.Context) ([]*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するaddresses、credentials、sessionsはCASCADE削除される。
	// 該当行がない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error

	// EnsureByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを検索し、
	// 存在しなければ作成して返す。管理者アカウントのプロビジョニングに使用する。
	EnsureByEmail(ctx context.Context, email string) (*model.User, error)

	// TouchLastLogin はlast_login_atを指定時刻に更新する。
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// AddressRepository は住所（Address Record）の永続化インターフェース。
type AddressRepository interface {
	// ListByUserIDs は指定ユーザー群の住所を作成日時の昇順で取得する。
	ListByUserIDs(ctx context.Context, userIDs []string) ([]*model.Address, error)
}

// CredentialRepository はログイン資格情報の永続化インターフェース。
type CredentialRepository interface {
	// FindByEmail はメールアドレス（大文字小文字を区別しない）で資格情報を検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Credential, error)

	// Upsert はユーザーのパスワードハッシュを作成または更新する。
	Upsert(ctx context.Context, cred *model.Credential) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindLatestActive は有効期限内で最も新しいセッションを取得する。存在しない場合はnilを返す。
	FindLatestActive(ctx context.Context) (*model.Session, error)
	// Extend は有効期限内のセッションの期限をexpiresAtに延長する。
	// 該当セッションがない場合はErrNotFoundを返す。
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
