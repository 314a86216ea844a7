package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storeadmin/internal/middleware"
	"github.com/hitoshi/storeadmin/internal/model"
)

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIErrorの場合はコードに応じたステータスで返し、それ以外は内部エラーとして扱う。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNotAuthenticated, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeLoginFailed:
		return http.StatusBadGateway
	case model.ErrCodeSessionStoreNotConfigured:
		return http.StatusServiceUnavailable
	case model.ErrCodeInvalidUserID, model.ErrCodeConfirmationRequired:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeProtectedIdentity:
		return http.StatusConflict
	case model.ErrCodeStorePermissionDenied:
		return http.StatusForbidden
	case model.ErrCodeStoreMissingRelation:
		return http.StatusServiceUnavailable
	case model.ErrCodeStoreUnknown:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
