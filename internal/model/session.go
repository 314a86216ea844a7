package model

import "time"

// Session は管理者のログインセッションを表す。
// プロセス内で同時に有効なセッションは高々1つ。
type Session struct {
	ID        string
	UserID    string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はnow時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// SessionEventKind はセッション変更通知の種別を表す。
type SessionEventKind string

const (
	// SessionSignedIn は新しいセッションが発行されたことを示す。
	SessionSignedIn SessionEventKind = "signed_in"
	// SessionRefreshed はセッションの有効期限が延長されたことを示す。
	SessionRefreshed SessionEventKind = "refreshed"
	// SessionSignedOut はセッションが破棄されたことを示す。
	SessionSignedOut SessionEventKind = "signed_out"
)

// SessionEvent はSession Storeから配信されるセッション変更通知。
// SignedOutの場合SessionはnilでSessionIDのみが設定される。
type SessionEvent struct {
	Kind      SessionEventKind `json:"kind"`
	SessionID string           `json:"session_id"`
	Session   *Session         `json:"session,omitempty"`
}
