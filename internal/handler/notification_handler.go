package handler

import (
	"net/http"

	"github.com/hitoshi/storeadmin/internal/notify"
)

// NotificationSource は未読の通知を取り出すインターフェース。
// notify.Queueが実装する。
type NotificationSource interface {
	Drain() []notify.Notification
}

// NotificationHandler は管理者向け通知のHTTPハンドラー。
type NotificationHandler struct {
	source NotificationSource
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(source NotificationSource) *NotificationHandler {
	return &NotificationHandler{source: source}
}

// Drain は溜まっている通知を古い順に返し、キューから取り除く。
// GET /admin/api/notifications
func (h *NotificationHandler) Drain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": h.source.Drain(),
	})
}
