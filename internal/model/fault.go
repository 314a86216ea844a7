package model

import "fmt"

// FaultKind はDirectory Storeが返したエラーの分類。
// 取りうる値はFaultMissingRelation、FaultPermissionDenied、FaultUnknownのみ。
type FaultKind string

const (
	// FaultMissingRelation は問い合わせたテーブルが存在しないことを示す。
	FaultMissingRelation FaultKind = "missing_relation"
	// FaultPermissionDenied はアクセスポリシーにより問い合わせが拒否されたことを示す。
	FaultPermissionDenied FaultKind = "permission_denied"
	// FaultUnknown はそれ以外のストアエラーを示す。
	FaultUnknown FaultKind = "unknown"
)

// StoreFault は分類済みのストアエラー。
// 取得・削除のどちらの経路でも同じ分類関数から生成される。
type StoreFault struct {
	Kind       FaultKind
	Collection string // 問い合わせ対象のテーブル名
	Detail     string // ストアが返したメッセージ
	Err        error
}

// Error はerrorインターフェースを実装する。
func (f *StoreFault) Error() string {
	return fmt.Sprintf("store fault (%s) on %s: %s", f.Kind, f.Collection, f.Detail)
}

// Unwrap は元のエラーを返す。
func (f *StoreFault) Unwrap() error {
	return f.Err
}

// APIError は分類に応じた利用者向けのエラーを返す。
// 一覧の代わりに表示するメッセージと通知の両方に使用する。
func (f *StoreFault) APIError() *APIError {
	switch f.Kind {
	case FaultMissingRelation:
		return &APIError{
			Code:     ErrCodeStoreMissingRelation,
			Message:  fmt.Sprintf("テーブル「%s」が存在しません。", f.Collection),
			Category: "store",
			Action:   fmt.Sprintf("データストアに「%s」テーブルを作成してください（migrateコマンドで作成できます）。", f.Collection),
		}
	case FaultPermissionDenied:
		return &APIError{
			Code:     ErrCodeStorePermissionDenied,
			Message:  fmt.Sprintf("テーブル「%s」へのアクセスが拒否されました。", f.Collection),
			Category: "store",
			Action:   "ログイン中の管理者が読み取り・削除できるようアクセスポリシーを設定してください。",
		}
	default:
		return &APIError{
			Code:     ErrCodeStoreUnknown,
			Message:  f.Detail,
			Category: "store",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
}
