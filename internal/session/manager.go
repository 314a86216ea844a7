package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/storeadmin/internal/metrics"
	"github.com/hitoshi/storeadmin/internal/model"
	"github.com/hitoshi/storeadmin/internal/notify"
)

// State はManagerの初期化状態を表す。
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

// String はログ・JSON出力用の状態名を返す。
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Manager はプロセス内で唯一の管理者セッションを保持し、ログイン・ログアウトを仲介する。
// storeがnilの場合はSession Store未設定として動作する。
type Manager struct {
	store    Store
	notifier notify.Notifier
	metrics  metrics.MetricsCollector
	now      func() time.Time

	mu        sync.RWMutex
	state     State
	current   *model.Session
	observers map[int]func(*model.Session)
	nextObsID int
	dispose   func()
	closed    bool
	closeOnce sync.Once
}

// NewManager はManagerを生成する。
func NewManager(store Store, notifier notify.Notifier, mc metrics.MetricsCollector) *Manager {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Manager{
		store:     store,
		notifier:  notifier,
		metrics:   mc,
		now:       time.Now,
		observers: make(map[int]func(*model.Session)),
	}
}

// Configured はSession Storeが設定されているかを返す。
func (m *Manager) Configured() bool {
	return m.store != nil
}

// Initialize は既存セッションを復元し、セッション変更通知を購読する。
// Session Storeが未設定・到達不能の場合はエラーとせず、未ログイン状態で準備完了とする。
// 2回目以降の呼び出しは何もしない。
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return
	}
	m.state = StateInitializing
	m.mu.Unlock()

	if m.store == nil {
		slog.Info("session store not configured, starting signed out")
		m.markReady(nil)
		return
	}

	restored, err := m.store.CurrentSession(ctx)
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		slog.Warn("session store unavailable, starting signed out", slog.String("error", err.Error()))
		restored = nil
	case err != nil:
		slog.Error("failed to restore session", slog.String("error", err.Error()))
		restored = nil
	}
	if restored != nil && restored.Expired(m.now()) {
		restored = nil
	}

	dispose, err := m.store.OnSessionChange(m.handleEvent)
	if err != nil {
		slog.Error("failed to subscribe to session changes", slog.String("error", err.Error()))
	} else {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			dispose()
		} else {
			m.dispose = dispose
			m.mu.Unlock()
		}
	}

	if restored != nil {
		slog.Info("session restored", slog.String("session_id", restored.ID))
	}
	m.markReady(restored)
}

// Login はSession Storeでサインインし、発行されたセッションを採用する。
// 失敗した場合は通知を表示し、利用者向けの*model.APIErrorを返す。
// 管理者かどうかの判定はAccess Guardが行う。
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if m.store == nil {
		apiErr := model.NewSessionStoreNotConfiguredError()
		notify.FromAPIError(m.notifier, apiErr)
		m.metrics.RecordLogin(metrics.ResultNotConfigured)
		return apiErr
	}

	sess, err := m.store.SignIn(ctx, email, password)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			slog.Error("sign in failed", slog.String("error", err.Error()))
			apiErr = model.NewLoginFailedError(err.Error())
		}
		notify.FromAPIError(m.notifier, apiErr)
		m.metrics.RecordLogin(metrics.ResultFailure)
		return apiErr
	}

	m.replace(func(*model.Session) *model.Session { return sess })
	m.metrics.RecordLogin(metrics.ResultSuccess)
	return nil
}

// Logout はセッションを破棄する。
// Session Storeのエラーはログに記録するのみで、ローカルのセッションは必ず破棄する。
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()

	if m.store != nil && cur != nil {
		if err := m.store.SignOut(ctx, cur.ID); err != nil {
			slog.Error("failed to sign out from session store",
				slog.String("session_id", cur.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	m.replace(func(*model.Session) *model.Session { return nil })
}

// Refresh は現在のセッションの有効期限を延長する。
// Session Storeがセッションを失効済みと判定した場合はローカルのセッションも破棄する。
func (m *Manager) Refresh(ctx context.Context) error {
	if m.store == nil {
		return model.NewSessionStoreNotConfiguredError()
	}

	cur := m.Current()
	if cur == nil {
		return model.NewNotAuthenticatedError()
	}

	sess, err := m.store.Refresh(ctx, cur.ID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeNotAuthenticated {
			m.clearIf(cur.ID)
		}
		return err
	}

	m.replace(func(*model.Session) *model.Session { return sess })
	return nil
}

// State は現在の初期化状態を返す。
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Current は現在のセッションを返す。未ログインの場合はnilを返す。
// 期限切れのセッションは破棄してnilを返す。
func (m *Manager) Current() *model.Session {
	_, sess := m.Snapshot()
	return sess
}

// Snapshot は初期化状態と現在のセッションを同じロックの中で読み取る。
// アクセス判定のように両方を組み合わせる場合はState/Currentを個別に呼ばずにこちらを使う。
func (m *Manager) Snapshot() (State, *model.Session) {
	m.mu.RLock()
	state, sess := m.state, m.current
	m.mu.RUnlock()

	if sess != nil && sess.Expired(m.now()) {
		m.clearIf(sess.ID)
		return state, nil
	}
	return state, sess
}

// Subscribe はセッションの有無が変わるたびに呼ばれるコールバックを登録し、解除関数を返す。
// コールバックはロックの外で呼ばれる。
func (m *Manager) Subscribe(fn func(*model.Session)) func() {
	m.mu.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Close はセッション変更通知の購読を解除する。複数回呼んでも解除は1回のみ行う。
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		dispose := m.dispose
		m.dispose = nil
		m.mu.Unlock()

		if dispose != nil {
			dispose()
		}
	})
}

// handleEvent はSession Storeからの変更通知をローカルの状態に反映する。
func (m *Manager) handleEvent(event model.SessionEvent) {
	switch event.Kind {
	case model.SessionSignedIn, model.SessionRefreshed:
		if event.Session == nil || event.Session.Expired(m.now()) {
			return
		}
		m.replace(func(*model.Session) *model.Session { return event.Session })
	case model.SessionSignedOut:
		m.replace(func(cur *model.Session) *model.Session {
			if cur != nil && (event.SessionID == "" || event.SessionID == cur.ID) {
				return nil
			}
			return cur
		})
	default:
		slog.Warn("unknown session event", slog.String("kind", string(event.Kind)))
	}
}

// markReady は準備完了状態への遷移と復元したセッションの反映を1つのロック内で行う。
// 初期化中のログインで既にセッションがあれば、それより新しい場合に限りrestoredを採用する。
func (m *Manager) markReady(restored *model.Session) {
	m.mu.Lock()
	m.state = StateReady
	cur, observers, changed := m.swapLocked(func(cur *model.Session) *model.Session {
		if restored == nil {
			return cur
		}
		if cur == nil || restored.CreatedAt.After(cur.CreatedAt) {
			return restored
		}
		return cur
	})
	m.mu.Unlock()

	if changed {
		m.publish(cur, observers)
	}
}

// clearIf は現在のセッションのIDがidと一致する場合のみ破棄する。
func (m *Manager) clearIf(id string) {
	m.replace(func(cur *model.Session) *model.Session {
		if cur != nil && cur.ID == id {
			return nil
		}
		return cur
	})
}

// replace は現在のセッションをnext(cur)の結果で置き換え、変化があれば購読者に通知する。
func (m *Manager) replace(next func(cur *model.Session) *model.Session) {
	m.mu.Lock()
	cur, observers, changed := m.swapLocked(next)
	m.mu.Unlock()

	if changed {
		m.publish(cur, observers)
	}
}

// swapLocked はm.muを保持した状態で呼ぶ。通知すべき購読者の一覧を返す。
func (m *Manager) swapLocked(next func(cur *model.Session) *model.Session) (*model.Session, []func(*model.Session), bool) {
	prev := m.current
	m.current = next(prev)
	if prev == m.current {
		return m.current, nil, false
	}
	observers := make([]func(*model.Session), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	return m.current, observers, true
}

// publish はロックの外で変化後のセッションを購読者とメトリクスに伝える。
func (m *Manager) publish(cur *model.Session, observers []func(*model.Session)) {
	m.metrics.SetSessionActive(cur != nil)
	for _, fn := range observers {
		fn(cur)
	}
}
