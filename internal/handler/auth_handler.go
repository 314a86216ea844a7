// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/storeadmin/internal/model"
	"github.com/hitoshi/storeadmin/internal/session"
)

// defaultNextPath はログイン後の既定の遷移先。
const defaultNextPath = "/admin"

// SessionController は認証ハンドラーが必要とするセッション操作のインターフェース。
// session.Managerが実装する。
type SessionController interface {
	Configured() bool
	Snapshot() (session.State, *model.Session)
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
	Refresh(ctx context.Context) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	AdminEmail string
	Cookie     session.CookieConfig
}

// AuthHandler は管理者のログイン・ログアウト関連のHTTPハンドラー。
type AuthHandler struct {
	sessions SessionController
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(sessions SessionController, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		config:   config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

// sessionResponse はセッション状態のレスポンス。
type sessionResponse struct {
	State         string     `json:"state"`
	Configured    bool       `json:"configured"`
	Authenticated bool       `json:"authenticated"`
	Admin         bool       `json:"admin"`
	Email         string     `json:"email,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Next          string     `json:"next,omitempty"`
}

// LoginPage はログイン画面の表示に必要なセッション状態を返す。
// 既に管理者としてログイン済みの場合はnextで遷移先を示す。
// GET /admin/login?next=...
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	resp := h.describe(r)
	if resp.Admin {
		resp.Next = safeNext(r.URL.Query().Get("next"))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Login はメールアドレスとパスワードでサインインし、セッションCookieを設定する。
// 管理者かどうかはここでは判定せず、管理画面へのアクセス時に判定する。
// POST /admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeLoginRequest(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストの形式が正しくありません。",
			Category: "validation",
			Action:   "メールアドレスとパスワードを入力してください。",
		})
		return
	}

	if err := h.sessions.Login(r.Context(), req.Email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	state, current := h.sessions.Snapshot()
	if current == nil {
		// ログイン直後に別のサインアウトが反映された
		handleServiceError(w, model.NewNotAuthenticatedError())
		return
	}
	session.SetCookie(w, h.config.Cookie, current.ID)

	slog.Info("operator signed in",
		slog.String("session_id", current.ID),
		slog.Bool("admin", model.IsAdminEmail(current.Email, h.config.AdminEmail)),
	)

	resp := h.view(state, current)
	resp.Next = safeNext(req.Next)
	writeJSON(w, http.StatusOK, resp)
}

// Logout はセッションを破棄してCookieを削除する。ログアウトは常に成功する。
// POST /admin/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	session.ClearCookie(w, h.config.Cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Session は現在のセッション状態を返す。
// リクエストのCookieが現在のセッションと一致しない場合は未ログインとして扱う。
// GET /admin/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.describe(r))
}

// Refresh はセッションの有効期限を延長し、Cookieを更新する。
// POST /admin/api/session/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Refresh(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	state, current := h.sessions.Snapshot()
	if current == nil {
		handleServiceError(w, model.NewNotAuthenticatedError())
		return
	}
	session.SetCookie(w, h.config.Cookie, current.ID)
	writeJSON(w, http.StatusOK, h.view(state, current))
}

// describe はリクエストから見たセッション状態を組み立てる。
func (h *AuthHandler) describe(r *http.Request) sessionResponse {
	state, current := h.sessions.Snapshot()
	if current != nil && session.TokenFromRequest(r) != current.ID {
		current = nil
	}
	return h.view(state, current)
}

func (h *AuthHandler) view(state session.State, current *model.Session) sessionResponse {
	resp := sessionResponse{
		State:      state.String(),
		Configured: h.sessions.Configured(),
	}
	if current != nil {
		expiresAt := current.ExpiresAt
		resp.Authenticated = true
		resp.Admin = model.IsAdminEmail(current.Email, h.config.AdminEmail)
		resp.Email = current.Email
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// decodeLoginRequest はJSONまたはフォーム形式のログインリクエストを読み取る。
func decodeLoginRequest(w http.ResponseWriter, r *http.Request, req *loginRequest) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(req)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	req.Email = r.PostForm.Get("email")
	req.Password = r.PostForm.Get("password")
	req.Next = r.PostForm.Get("next")
	return nil
}

// safeNext は遷移先を管理画面内の相対パスに限定する。
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return defaultNextPath
	}
	if strings.HasPrefix(next, "/admin/login") {
		return defaultNextPath
	}
	return next
}
