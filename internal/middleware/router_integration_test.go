package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storeadmin/internal/session"
)

// TestRouterIntegration_GuardedRoutes_WithMiddlewareChain は
// Guard -> CSRF のミドルウェアチェーンがchi.Routerで正しく動作することを検証する。
func TestRouterIntegration_GuardedRoutes_WithMiddlewareChain(t *testing.T) {
	view := &fakeSessionView{state: session.StateReady, session: liveSession("router-test-session", "owner@example.com")}
	csrfConfig := CSRFConfig{}

	r := chi.NewRouter()
	r.Get("/admin/csrf-token", NewCSRFTokenHandler(csrfConfig).ServeHTTP)
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(NewAdminGuard(view, AdminGuardConfig{AdminEmail: "owner@example.com"}))
		r.Use(NewCSRFMiddleware(csrfConfig))

		r.Get("/users", func(w http.ResponseWriter, r *http.Request) {
			operator, _ := OperatorFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"operator": operator})
		})
		r.Delete("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"deleted": chi.URLParam(r, "id")})
		})
	})

	serve := func(method, path string, withSession, withCSRF bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if withSession {
			req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "router-test-session"})
		}
		if withCSRF {
			req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "test-csrf-token"})
			req.Header.Set(csrfHeaderName, "test-csrf-token")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("GET with session", func(t *testing.T) {
		w := serve(http.MethodGet, "/admin/api/users", true, false)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["operator"] != "owner@example.com" {
			t.Errorf("operator = %q, want %q", body["operator"], "owner@example.com")
		}
	})

	t.Run("GET without session redirects", func(t *testing.T) {
		if w := serve(http.MethodGet, "/admin/api/users", false, false); w.Code != http.StatusSeeOther {
			t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
		}
	})

	t.Run("DELETE with session and csrf", func(t *testing.T) {
		w := serve(http.MethodDelete, "/admin/api/users/u-1", true, true)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["deleted"] != "u-1" {
			t.Errorf("deleted = %q, want %q", body["deleted"], "u-1")
		}
	})

	t.Run("DELETE without csrf", func(t *testing.T) {
		if w := serve(http.MethodDelete, "/admin/api/users/u-1", true, false); w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	// CSRFチェックの前に管理者ガードで誘導される
	t.Run("DELETE without session", func(t *testing.T) {
		if w := serve(http.MethodDelete, "/admin/api/users/u-1", false, true); w.Code != http.StatusSeeOther {
			t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
		}
	})

	t.Run("CSRF token endpoint needs no session", func(t *testing.T) {
		if w := serve(http.MethodGet, "/admin/csrf-token", false, false); w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}
