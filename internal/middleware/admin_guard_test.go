package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/storeadmin/internal/model"
	"github.com/hitoshi/storeadmin/internal/session"
)

// --- モック定義 ---

type fakeSessionView struct {
	mu      sync.Mutex
	state   session.State
	session *model.Session
}

func (f *fakeSessionView) Snapshot() (session.State, *model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.session
}

func (f *fakeSessionView) set(state session.State, s *model.Session) {
	f.mu.Lock()
	f.state = state
	f.session = s
	f.mu.Unlock()
}

var _ SessionView = (*fakeSessionView)(nil)
var _ SessionView = (*session.Manager)(nil)

func liveSession(id, email string) *model.Session {
	return &model.Session{
		ID:        id,
		UserID:    "user-1",
		Email:     email,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// --- EvaluateAccess のテスト ---

func TestEvaluateAccess(t *testing.T) {
	const admin = "owner@example.com"
	adminSession := liveSession("tok", admin)

	tests := []struct {
		name    string
		state   session.State
		session *model.Session
		token   string
		want    AccessDecision
	}{
		{"uninitialized is loading", session.StateUninitialized, nil, "", AccessLoading},
		{"initializing is loading even with session", session.StateInitializing, adminSession, "tok", AccessLoading},
		{"ready without session redirects", session.StateReady, nil, "tok", AccessRedirect},
		{"ready with admin session admits", session.StateReady, adminSession, "tok", AccessAdmit},
		{"admin email matched case-insensitively", session.StateReady, liveSession("tok", "Owner@Example.COM"), "tok", AccessAdmit},
		{"non-admin email redirects", session.StateReady, liveSession("tok", "staff@example.com"), "tok", AccessRedirect},
		{"missing request token redirects", session.StateReady, adminSession, "", AccessRedirect},
		{"mismatched request token redirects", session.StateReady, adminSession, "other", AccessRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateAccess(tt.state, tt.session, tt.token, admin); got != tt.want {
				t.Errorf("EvaluateAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateAccess_EmptyAdminEmail_NeverAdmits(t *testing.T) {
	s := liveSession("tok", "owner@example.com")
	if got := EvaluateAccess(session.StateReady, s, "tok", ""); got != AccessRedirect {
		t.Errorf("EvaluateAccess = %v, want %v", got, AccessRedirect)
	}
}

func TestAccessDecision_String(t *testing.T) {
	if AccessLoading.String() != "loading" || AccessRedirect.String() != "redirect" || AccessAdmit.String() != "admit" {
		t.Error("unexpected decision names")
	}
	if AccessDecision(99).String() != "unknown" {
		t.Error("unexpected name for undefined decision")
	}
}

// --- NewAdminGuard のテスト ---

func guardedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin/api/users?q=yamada", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
	return req
}

func TestAdminGuard_Admit_InjectsOperator(t *testing.T) {
	view := &fakeSessionView{state: session.StateReady, session: liveSession("tok", "owner@example.com")}
	guard := NewAdminGuard(view, AdminGuardConfig{AdminEmail: "owner@example.com"})

	var operator string
	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator, _ = OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, guardedRequest("tok"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if operator != "owner@example.com" {
		t.Errorf("operator = %q, want %q", operator, "owner@example.com")
	}
}

func TestAdminGuard_Loading_Returns503WithoutRedirect(t *testing.T) {
	view := &fakeSessionView{state: session.StateInitializing}
	guard := NewAdminGuard(view, AdminGuardConfig{AdminEmail: "owner@example.com", RetryAfter: 2 * time.Second})

	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called while initializing")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, guardedRequest("tok"))

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
	if resp.Header.Get("Location") != "" {
		t.Error("loading response must not redirect")
	}
	if got := resp.Header.Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want %q", got, "2")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["state"] != "initializing" {
		t.Errorf("state = %q, want %q", body["state"], "initializing")
	}
}

func TestAdminGuard_Redirect_PreservesRequestedURI(t *testing.T) {
	view := &fakeSessionView{state: session.StateReady}
	guard := NewAdminGuard(view, AdminGuardConfig{AdminEmail: "owner@example.com"})

	w := httptest.NewRecorder()
	guard(okHandler()).ServeHTTP(w, guardedRequest(""))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if loc.Path != "/admin/login" {
		t.Errorf("redirect path = %q, want %q", loc.Path, "/admin/login")
	}
	if next := loc.Query().Get("next"); next != "/admin/api/users?q=yamada" {
		t.Errorf("next = %q, want %q", next, "/admin/api/users?q=yamada")
	}
}

func TestAdminGuard_NonAdminSession_Redirects(t *testing.T) {
	view := &fakeSessionView{state: session.StateReady, session: liveSession("tok", "staff@example.com")}
	guard := NewAdminGuard(view, AdminGuardConfig{AdminEmail: "owner@example.com", LoginPath: "/signin"})

	w := httptest.NewRecorder()
	guard(okHandler()).ServeHTTP(w, guardedRequest("tok"))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); len(loc) < 7 || loc[:7] != "/signin" {
		t.Errorf("Location = %q, want /signin prefix", loc)
	}
}

// 判定はリクエストごとに行い、結果をキャッシュしない。
func TestAdminGuard_ReevaluatesOnEveryRequest(t *testing.T) {
	view := &fakeSessionView{state: session.StateInitializing}
	handler := NewAdminGuard(view, AdminGuardConfig{AdminEmail: "owner@example.com"})(okHandler())

	codes := make([]int, 0, 3)
	serve := func() {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, guardedRequest("tok"))
		codes = append(codes, w.Code)
	}

	serve()
	view.set(session.StateReady, liveSession("tok", "owner@example.com"))
	serve()
	view.set(session.StateReady, nil)
	serve()

	want := []int{http.StatusServiceUnavailable, http.StatusOK, http.StatusSeeOther}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i, codes[i], want[i])
		}
	}
}

// steppingSessionView は呼び出しのたびに次の状態へ進む。
// 1回の判定で状態とセッションを別々に読むと、復元前後の値が混ざることを再現する。
type steppingSessionView struct {
	mu    sync.Mutex
	steps []viewStep
	calls int
}

type viewStep struct {
	state   session.State
	session *model.Session
}

func (v *steppingSessionView) Snapshot() (session.State, *model.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.calls
	if i >= len(v.steps) {
		i = len(v.steps) - 1
	}
	v.calls++
	return v.steps[i].state, v.steps[i].session
}

// TestAdminGuard_RestoreInProgress_UsesOneConsistentRead は復元中のリクエストがログイン画面へ誘導されないことを検証する。
func TestAdminGuard_RestoreInProgress_UsesOneConsistentRead(t *testing.T) {
	restored := liveSession("tok", "owner@example.com")
	view := &steppingSessionView{steps: []viewStep{
		{session.StateInitializing, nil},
		{session.StateReady, restored},
	}}
	handler := NewAdminGuard(view, AdminGuardConfig{AdminEmail: "owner@example.com"})(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, guardedRequest("tok"))
	if first.Code != http.StatusServiceUnavailable {
		t.Errorf("first request: status = %d, want %d (loading)", first.Code, http.StatusServiceUnavailable)
	}
	if loc := first.Header().Get("Location"); loc != "" {
		t.Errorf("first request redirected to %q during restore", loc)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, guardedRequest("tok"))
	if second.Code != http.StatusOK {
		t.Errorf("second request: status = %d, want %d", second.Code, http.StatusOK)
	}

	if view.calls != 2 {
		t.Errorf("Snapshot calls = %d, want one per request", view.calls)
	}
}
