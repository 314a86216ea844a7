package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/storeadmin/internal/model"
)

func TestWriteErrorResponse_StoreFault(t *testing.T) {
	fault := &model.StoreFault{Kind: model.FaultMissingRelation, Collection: "addresses"}

	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusServiceUnavailable, fault.APIError())

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeStoreMissingRelation || body.Category != "store" {
		t.Errorf("body = %+v", body)
	}
	if body.Message != "テーブル「addresses」が存在しません。" {
		t.Errorf("message = %q", body.Message)
	}
	if body.Action == "" {
		t.Error("a missing relation should tell the operator how to provision it")
	}
}

func TestWriteErrorResponse_OmitsEmptyAction(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusBadGateway, &model.APIError{
		Code:     model.ErrCodeStoreUnknown,
		Message:  "connection reset by peer",
		Category: "store",
	})

	var raw map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, field := range []string{"code", "message", "category"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field: %s", field)
		}
	}
	if _, ok := raw["action"]; ok {
		t.Error("empty action should be omitted")
	}
}

func TestErrorBody(t *testing.T) {
	if ErrorBody(nil) != nil {
		t.Error("ErrorBody(nil) should be nil")
	}

	body := ErrorBody(model.NewConfirmationRequiredError())
	if body == nil || body.Code != model.ErrCodeConfirmationRequired {
		t.Fatalf("body = %+v", body)
	}
	if body.Message == "" || body.Action == "" {
		t.Errorf("body should carry message and action: %+v", body)
	}
}

func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}
