package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/storeadmin/internal/model"
	"github.com/hitoshi/storeadmin/internal/session"
)

// AccessDecision は管理画面へのアクセス可否の判定結果。
type AccessDecision int

const (
	// AccessLoading はセッションの復元中であることを示す。判定を保留する。
	AccessLoading AccessDecision = iota
	// AccessRedirect はログイン画面へ誘導することを示す。
	AccessRedirect
	// AccessAdmit は管理画面の表示を許可することを示す。
	AccessAdmit
)

// String は判定結果の名前を返す。
func (d AccessDecision) String() string {
	switch d {
	case AccessLoading:
		return "loading"
	case AccessRedirect:
		return "redirect"
	case AccessAdmit:
		return "admit"
	default:
		return "unknown"
	}
}

// EvaluateAccess はセッションの状態から管理画面へのアクセス可否を判定する。
// 復元中は常にAccessLoadingを返し、ログイン画面への誘導は行わない。
// セッションが存在し、リクエストのトークンが一致し、メールアドレスが管理者と一致する場合のみ許可する。
func EvaluateAccess(state session.State, s *model.Session, requestToken, adminEmail string) AccessDecision {
	if state != session.StateReady {
		return AccessLoading
	}
	if s == nil {
		return AccessRedirect
	}
	if requestToken == "" || requestToken != s.ID {
		return AccessRedirect
	}
	if !model.IsAdminEmail(s.Email, adminEmail) {
		return AccessRedirect
	}
	return AccessAdmit
}

// SessionView はアクセス判定に必要なセッション状態の参照インターフェース。
// session.Managerが実装する。状態とセッションは一度の呼び出しで揃えて受け取る。
type SessionView interface {
	Snapshot() (session.State, *model.Session)
}

// AdminGuardConfig は管理者ガードの設定。
type AdminGuardConfig struct {
	AdminEmail string
	LoginPath  string        // 未ログイン時の誘導先
	RetryAfter time.Duration // 復元中のRetry-After
}

// NewAdminGuard はリクエストごとにアクセス可否を判定するミドルウェアを返す。
// 判定結果はキャッシュしない。許可したリクエストには管理者のメールアドレスをコンテキストに注入する。
func NewAdminGuard(view SessionView, config AdminGuardConfig) func(next http.Handler) http.Handler {
	if config.LoginPath == "" {
		config.LoginPath = "/admin/login"
	}
	if config.RetryAfter <= 0 {
		config.RetryAfter = time.Second
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, current := view.Snapshot()
			decision := EvaluateAccess(state, current, session.TokenFromRequest(r), config.AdminEmail)

			switch decision {
			case AccessLoading:
				writeLoadingResponse(w, config.RetryAfter)
			case AccessRedirect:
				slog.Debug("admin access redirected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				target := config.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
			case AccessAdmit:
				recordOperator(r.Context(), current.Email)
				ctx := ContextWithOperator(r.Context(), current.Email)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// writeLoadingResponse は復元中を示す503レスポンスを書き込む。
func writeLoadingResponse(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]string{
		"state": "initializing",
	})
}
