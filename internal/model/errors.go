// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, directory, store, config, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated          = "NOT_AUTHENTICATED"
	ErrCodeInvalidCredentials        = "INVALID_CREDENTIALS"
	ErrCodeLoginFailed               = "LOGIN_FAILED"
	ErrCodeSessionStoreNotConfigured = "SESSION_STORE_NOT_CONFIGURED"
	ErrCodeUserNotFound              = "USER_NOT_FOUND"
	ErrCodeInvalidUserID             = "INVALID_USER_ID"
	ErrCodeConfirmationRequired      = "CONFIRMATION_REQUIRED"
	ErrCodeProtectedIdentity         = "PROTECTED_IDENTITY"
	ErrCodeStoreMissingRelation      = "STORE_MISSING_RELATION"
	ErrCodeStorePermissionDenied     = "STORE_PERMISSION_DENIED"
	ErrCodeStoreUnknown              = "STORE_UNKNOWN"
)

// NewNotAuthenticatedError は未ログインエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワード不一致のエラーを生成する。
// ユーザーの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewLoginFailedError はSession Storeが返したメッセージをそのまま伝えるログイン失敗エラーを生成する。
func NewLoginFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  fmt.Sprintf("ログインに失敗しました: %s", reason),
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionStoreNotConfiguredError は認証バックエンドが未設定の場合のエラーを生成する。
func NewSessionStoreNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionStoreNotConfigured,
		Message:  "認証バックエンドが設定されていません。",
		Category: "config",
		Action:   "DATABASE_URLを設定してからサーバーを再起動してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "directory",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewInvalidUserIDError はユーザーIDの形式が不正な場合のエラーを生成する。
func NewInvalidUserIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUserID,
		Message:  fmt.Sprintf("無効なユーザーIDです: %s", id),
		Category: "validation",
		Action:   "一覧から対象のユーザーを選択してください。",
	}
}

// NewConfirmationRequiredError は削除確認が行われていない場合のエラーを生成する。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  "削除の確認が必要です。",
		Category: "validation",
		Action:   "削除するユーザーのIDを confirm パラメータに指定してください。",
	}
}

// NewProtectedIdentityError は管理者自身のユーザーを削除しようとした場合のエラーを生成する。
func NewProtectedIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeProtectedIdentity,
		Message:  "管理者アカウントは削除できません。",
		Category: "directory",
		Action:   "削除対象を確認してください。",
	}
}
