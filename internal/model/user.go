package model

import (
	"strings"
	"time"
)

// User はストアに登録されたユーザー（Identity Record）を表す。
// 登録は外部で行われ、管理コンソールからは参照と削除のみ行う。
type User struct {
	ID          string
	Email       string
	FirstName   string // 未設定の場合は空文字
	LastName    string // 未設定の場合は空文字
	Phone       string // ユーザー自身に保存された電話番号。未設定の場合は空文字
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// Address はユーザーに紐づく配送先・連絡先住所（Address Record）を表す。
// 1ユーザーに複数の住所が存在し得る。
type Address struct {
	ID        string
	UserID    string
	Phone     string // 未設定の場合は空文字
	IsDefault bool
	CreatedAt time.Time
}

// Credential はパスワード認証に用いる資格情報を表す。
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
	HashVersion  string
}

// IsAdminEmail はemailが指定管理者のメールアドレスと一致するかを大文字小文字を区別せずに判定する。
// どちらかが空の場合は一致しない。
func IsAdminEmail(email, adminEmail string) bool {
	email = strings.TrimSpace(email)
	adminEmail = strings.TrimSpace(adminEmail)
	if email == "" || adminEmail == "" {
		return false
	}
	return strings.EqualFold(email, adminEmail)
}
