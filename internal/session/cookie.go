package session

import "net/http"

// CookieName は管理者セッションIDを保持するCookie名。
const CookieName = "admin_session"

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// SetCookie はセッションIDをHTTP Only Cookieとして設定する。
func SetCookie(w http.ResponseWriter, cfg CookieConfig, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie はセッションCookieを削除する。
func ClearCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest はリクエストのCookieからセッションIDを取得する。存在しない場合は空文字を返す。
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
