// Package session は管理者セッションの状態管理とセッションCookieの操作を提供する。
package session

import (
	"context"
	"errors"

	"github.com/hitoshi/storeadmin/internal/model"
)

// ErrStoreUnavailable はSession Storeに到達できないことを表す。
// 初期化時に返された場合はエラーとして扱わず、未ログイン状態として起動する。
var ErrStoreUnavailable = errors.New("session store unavailable")

// Store はセッションの保持・発行・破棄を担うSession Storeのインターフェース。
type Store interface {
	// CurrentSession は復元可能な有効セッションを返す。存在しない場合はnilを返す。
	CurrentSession(ctx context.Context) (*model.Session, error)
	// SignIn はメールアドレスとパスワードで認証し、新しいセッションを発行する。
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	// SignOut は指定セッションを破棄する。
	SignOut(ctx context.Context, sessionID string) error
	// Refresh は指定セッションの有効期限を延長し、更新後のセッションを返す。
	Refresh(ctx context.Context, sessionID string) (*model.Session, error)
	// OnSessionChange はセッション変更通知を購読し、解除関数を返す。
	OnSessionChange(fn func(model.SessionEvent)) (dispose func(), err error)
}
