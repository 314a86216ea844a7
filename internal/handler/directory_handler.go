package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/storeadmin/internal/directory"
	"github.com/hitoshi/storeadmin/internal/middleware"
	"github.com/hitoshi/storeadmin/internal/model"
)

// DirectoryService はユーザー一覧ハンドラーが必要とするサービスインターフェース。
// directory.Reconcilerが実装する。
type DirectoryService interface {
	Listing(ctx context.Context) (*directory.Snapshot, error)
	Load(ctx context.Context) (*directory.Snapshot, error)
	Delete(ctx context.Context, userID string) (*directory.Snapshot, error)
}

// DirectoryHandler はユーザー一覧のHTTPハンドラー。
type DirectoryHandler struct {
	service DirectoryService
}

// NewDirectoryHandler はDirectoryHandlerを生成する。
func NewDirectoryHandler(service DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

// entryResponse はユーザー一覧の1行のレスポンス。
type entryResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DisplayName string    `json:"display_name"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
}

// listingResponse はユーザー一覧のレスポンス。
type listingResponse struct {
	Entries  []entryResponse               `json:"entries"`
	Total    int                           `json:"total"`
	Query    string                        `json:"query,omitempty"`
	Notice   string                        `json:"notice,omitempty"`
	Fault    *middleware.ErrorResponseBody `json:"fault,omitempty"`
	LoadedAt *time.Time                    `json:"loaded_at,omitempty"`
}

// ListUsers はユーザー一覧を返す。qで絞り込み、reloadが真の場合は読み込み直す。
// 一覧を表示できない障害がある場合は、その分類に応じたステータスでfaultを返す。
// GET /admin/api/users?q=&reload=
func (h *DirectoryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	reload, _ := strconv.ParseBool(r.URL.Query().Get("reload"))

	var snap *directory.Snapshot
	if reload {
		snap, _ = h.service.Load(r.Context())
	} else {
		snap, _ = h.service.Listing(r.Context())
	}

	writeListing(w, snap, query)
}

// DeleteUser はユーザーを削除し、読み込み直した一覧を返す。
// 誤操作防止のため、confirmに削除対象と同じIDを指定する必要がある。
// DELETE /admin/api/users/{id}?confirm={id}
func (h *DirectoryHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	parsed, err := uuid.Parse(userID)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidUserIDError(userID))
		return
	}
	userID = parsed.String()

	if confirm := r.URL.Query().Get("confirm"); confirm == "" || confirm != chi.URLParam(r, "id") {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewConfirmationRequiredError())
		return
	}

	operator, _ := middleware.OperatorFromContext(r.Context())
	snap, err := h.service.Delete(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("user deleted",
		slog.String("user_id", userID),
		slog.String("operator", operator),
	)
	writeListing(w, snap, "")
}

// writeListing はスナップショットをレスポンスとして書き込む。
func writeListing(w http.ResponseWriter, snap *directory.Snapshot, query string) {
	if snap == nil {
		middleware.WriteInternalServerError(w)
		return
	}

	entries := snap.Search(query)
	resp := listingResponse{
		Entries: make([]entryResponse, 0, len(entries)),
		Total:   len(snap.Entries),
		Query:   query,
		Notice:  snap.Notice,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, entryResponse{
			ID:          e.ID,
			Email:       e.Email,
			FirstName:   e.FirstName,
			LastName:    e.LastName,
			DisplayName: e.DisplayName,
			Phone:       e.Phone,
			CreatedAt:   e.CreatedAt,
		})
	}
	if !snap.LoadedAt.IsZero() {
		loadedAt := snap.LoadedAt
		resp.LoadedAt = &loadedAt
	}

	status := http.StatusOK
	if snap.Fault != nil {
		status = mapAPIErrorToHTTPStatus(snap.Fault)
		resp.Fault = middleware.ErrorBody(snap.Fault)
	}
	writeJSON(w, status, resp)
}
