package model

import (
	"strings"
	"time"
)

// UnspecifiedName は氏名が未登録のユーザーに表示するプレースホルダー。
const UnspecifiedName = "未設定"

// DirectoryEntry はユーザー一覧の1行を表す。
// Userと住所から解決した電話番号を統合した表示用の派生データで、
// 読み込みのたびに丸ごと再構築される。
type DirectoryEntry struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	DisplayName string
	Phone       string // 解決できなかった場合は空文字
	CreatedAt   time.Time
}

// DisplayName は姓名から表示名を組み立てる。どちらも空の場合はUnspecifiedNameを返す。
func DisplayName(firstName, lastName string) string {
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if name == "" {
		return UnspecifiedName
	}
	return name
}
