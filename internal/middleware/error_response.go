package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/storeadmin/internal/model"
)

// ErrorResponseBody はエラーレスポンスおよび一覧のfaultの共通フォーマット。
// 管理画面はCategoryで表示を切り替え、Actionを対処方法として表示する。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action,omitempty"`
}

// ErrorBody はAPIErrorをレスポンス形式に変換する。apiErrがnilの場合はnilを返す。
func ErrorBody(apiErr *model.APIError) *ErrorResponseBody {
	if apiErr == nil {
		return nil
	}
	return &ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse はstatusCodeとともにエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorBody(apiErr))
}

// WriteInternalServerError は詳細を含まない500レスポンスを書き込む。
// 原因はログのみに記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
