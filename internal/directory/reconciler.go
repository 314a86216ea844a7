// Package directory はユーザーと住所を統合したユーザー一覧の構築・検索・削除を提供する。
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/storeadmin/internal/metrics"
	"github.com/hitoshi/storeadmin/internal/model"
	"github.com/hitoshi/storeadmin/internal/notify"
	"github.com/hitoshi/storeadmin/internal/repository"
	"github.com/hitoshi/storeadmin/internal/security"
)

// EmptyNotice は表示対象のユーザーがいない場合の案内文。
const EmptyNotice = "表示できるユーザーがいません。"

// 問い合わせ対象のテーブル名
const (
	collectionUsers     = "users"
	collectionAddresses = "addresses"
)

// UserLister はユーザー一覧の取得インターフェース。
type UserLister interface {
	ListByCreatedDesc(ctx context.Context) ([]*model.User, error)
}

// AddressLister は住所の取得インターフェース。
type AddressLister interface {
	ListByUserIDs(ctx context.Context, userIDs []string) ([]*model.Address, error)
}

// UserDeleter はユーザー削除インターフェース。
type UserDeleter interface {
	Delete(ctx context.Context, userID string) error
}

// SessionSource は現在の管理者セッションの参照インターフェース。
type SessionSource interface {
	Current() *model.Session
}

// Snapshot は1回の読み込み結果。生成後は変更しない。
type Snapshot struct {
	Entries  []model.DirectoryEntry
	Fault    *model.APIError // 一覧の代わりに表示するエラー。nilの場合は正常
	Notice   string          // 情報メッセージ（エラーではない）
	LoadedAt time.Time

	token uint64
}

// Err はFaultをerrorとして返す。Faultがない場合はnilを返す。
func (s *Snapshot) Err() error {
	if s == nil || s.Fault == nil {
		return nil
	}
	return s.Fault
}

// Search はスナップショットの一覧をqueryで絞り込む。
func (s *Snapshot) Search(query string) []model.DirectoryEntry {
	if s == nil {
		return []model.DirectoryEntry{}
	}
	return filterEntries(s.Entries, query)
}

// Config はReconcilerの設定。
type Config struct {
	AdminEmail string
}

// Reconciler はユーザー一覧を構築し、最新の結果を保持する。
type Reconciler struct {
	users     UserLister
	addresses AddressLister
	deleter   UserDeleter
	sessions  SessionSource
	notifier  notify.Notifier
	metrics   metrics.MetricsCollector
	config    Config
	now       func() time.Time

	seq     atomic.Uint64
	current atomic.Pointer[Snapshot]

	// applyMu はスナップショットの差し替えを直列化する。読み取りはcurrentから直接行う。
	applyMu   sync.Mutex
	floor     uint64 // これ以下のトークンの結果は反映しない
	sessionID string
}

// NewReconciler はReconcilerを生成する。
func NewReconciler(
	users UserLister,
	addresses AddressLister,
	deleter UserDeleter,
	sessions SessionSource,
	notifier notify.Notifier,
	mc metrics.MetricsCollector,
	config Config,
) *Reconciler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Reconciler{
		users:     users,
		addresses: addresses,
		deleter:   deleter,
		sessions:  sessions,
		notifier:  notifier,
		metrics:   mc,
		config:    config,
		now:       time.Now,
	}
}

// Load はユーザー一覧を読み込み直し、結果を反映して返す。
// 読み込み中により新しい読み込みが反映された場合、この結果は破棄され、反映済みの新しい結果を返す。
// 一覧を表示できない障害がある場合は、そのスナップショットとともにFaultを返す。
func (r *Reconciler) Load(ctx context.Context) (*Snapshot, error) {
	token := r.seq.Add(1)
	start := r.now()

	snap, outcome := r.build(ctx)
	snap.token = token
	snap.LoadedAt = r.now()

	applied, ok := r.apply(snap)
	if !ok {
		outcome = metrics.OutcomeStale
		slog.Debug("discarded stale directory load", slog.Uint64("token", token))
	}
	r.metrics.RecordDirectoryLoad(outcome, r.now().Sub(start))
	if applied == nil {
		// 読み込み中に無効化された場合は、この結果を呼び出し元にのみ返す
		return snap, snap.Err()
	}
	return applied, applied.Err()
}

// Listing は反映済みの一覧を返す。まだ読み込んでいない場合は読み込む。
func (r *Reconciler) Listing(ctx context.Context) (*Snapshot, error) {
	if snap := r.current.Load(); snap != nil {
		return snap, snap.Err()
	}
	return r.Load(ctx)
}

// Current は反映済みのスナップショットを返す。未読み込みの場合はnilを返す。
func (r *Reconciler) Current() *Snapshot {
	return r.current.Load()
}

// Search は反映済みの一覧をqueryで絞り込む。ストアへの問い合わせは行わない。
func (r *Reconciler) Search(query string) []model.DirectoryEntry {
	return r.current.Load().Search(query)
}

// Delete は指定ユーザーを削除し、成功した場合は一覧を読み込み直す。
// 失敗した場合は分類したエラーを通知して返し、反映済みの一覧は変更しない。
func (r *Reconciler) Delete(ctx context.Context, userID string) (*Snapshot, error) {
	if r.sessions.Current() == nil {
		apiErr := model.NewNotAuthenticatedError()
		notify.FromAPIError(r.notifier, apiErr)
		return nil, apiErr
	}

	if err := r.deleter.Delete(ctx, userID); err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			apiErr = r.classify(collectionUsers, err)
		}
		slog.Error("failed to delete user",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		notify.FromAPIError(r.notifier, apiErr)
		r.metrics.RecordDirectoryDelete(metrics.ResultFailure)
		return nil, apiErr
	}

	r.metrics.RecordDirectoryDelete(metrics.ResultSuccess)
	if r.notifier != nil {
		r.notifier.Notify(notify.LevelSuccess, "ユーザーを削除しました。", "")
	}

	snap, _ := r.Load(ctx)
	return snap, nil
}

// Invalidate は反映済みの一覧を破棄する。実行中の読み込みの結果も反映しない。
func (r *Reconciler) Invalidate() {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	r.floor = r.seq.Load()
	r.current.Store(nil)
}

// SessionChanged はセッションが別のものに変わった場合（サインアウトを含む）に一覧を破棄する。
// 同じセッションの有効期限延長では破棄しない。
func (r *Reconciler) SessionChanged(s *model.Session) {
	id := ""
	if s != nil {
		id = s.ID
	}

	r.applyMu.Lock()
	changed := id != r.sessionID
	r.sessionID = id
	r.applyMu.Unlock()

	if changed {
		r.Invalidate()
	}
}

// apply はsnapを反映する。反映済みの結果の方が新しい場合は反映せずfalseを返す。
// 戻り値は反映後の最新スナップショット。
func (r *Reconciler) apply(snap *Snapshot) (*Snapshot, bool) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	if snap.token <= r.floor {
		return r.current.Load(), false
	}
	if cur := r.current.Load(); cur != nil && cur.token > snap.token {
		return cur, false
	}
	r.current.Store(snap)
	r.metrics.SetDirectoryEntries(len(snap.Entries))
	return snap, true
}

// build は読み込みの各段階を実行してスナップショットを作る。
func (r *Reconciler) build(ctx context.Context) (*Snapshot, string) {
	// 1. セッションの確認
	if r.sessions.Current() == nil {
		return &Snapshot{
			Entries: []model.DirectoryEntry{},
			Fault:   model.NewNotAuthenticatedError(),
		}, metrics.OutcomeNotAuthenticated
	}

	// 2. ユーザーを作成日時の降順で取得
	users, err := r.users.ListByCreatedDesc(ctx)
	if err != nil {
		apiErr := r.classify(collectionUsers, err)
		notify.FromAPIError(r.notifier, apiErr)
		return &Snapshot{
			Entries: []model.DirectoryEntry{},
			Fault:   apiErr,
		}, metrics.OutcomeFault
	}

	// 3. 管理者自身を除外
	visible := make([]*model.User, 0, len(users))
	for _, u := range users {
		if model.IsAdminEmail(u.Email, r.config.AdminEmail) {
			continue
		}
		visible = append(visible, u)
	}

	// 4. 対象がいなければ終了
	if len(visible) == 0 {
		return &Snapshot{
			Entries: []model.DirectoryEntry{},
			Notice:  EmptyNotice,
		}, metrics.OutcomeEmpty
	}

	ids := make([]string, len(visible))
	for i, u := range visible {
		ids[i] = u.ID
	}

	// 5. 住所を取得。失敗してもユーザー自身の電話番号で続行する
	addresses, err := r.addresses.ListByUserIDs(ctx, ids)
	if err != nil {
		r.classify(collectionAddresses, err)
		addresses = nil
	}

	// 6. ユーザーごとに電話番号を解決
	grouped := groupByUser(addresses)

	// 7. 取得順にエントリを生成
	entries := make([]model.DirectoryEntry, 0, len(visible))
	for _, u := range visible {
		firstName := security.PlainText(u.FirstName)
		lastName := security.PlainText(u.LastName)
		entries = append(entries, model.DirectoryEntry{
			ID:          u.ID,
			Email:       u.Email,
			FirstName:   firstName,
			LastName:    lastName,
			DisplayName: model.DisplayName(firstName, lastName),
			Phone:       resolvePhone(u, grouped[u.ID]),
			CreatedAt:   u.CreatedAt,
		})
	}

	return &Snapshot{Entries: entries}, metrics.OutcomeOK
}

// classify はストアのエラーを分類してログ・メトリクスに記録し、利用者向けのエラーを返す。
func (r *Reconciler) classify(collection string, err error) *model.APIError {
	// 下位層で分類済みの場合はそのテーブル名を使う
	fault := repository.ClassifyError(collection, err)
	slog.Error("directory store fault",
		slog.String("collection", fault.Collection),
		slog.String("fault_kind", string(fault.Kind)),
		slog.String("error", err.Error()),
	)
	r.metrics.RecordStoreFault(fault.Collection, fault.Kind)
	return fault.APIError()
}
