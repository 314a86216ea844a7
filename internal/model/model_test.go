package model

import (
	"errors"
	"testing"
	"time"
)

func TestIsAdminEmail(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		adminEmail string
		want       bool
	}{
		{"完全一致", "owner@example.com", "owner@example.com", true},
		{"大文字小文字の違いは無視", "Owner@Example.COM", "owner@example.com", true},
		{"前後の空白は無視", " owner@example.com ", "owner@example.com", true},
		{"異なるアドレス", "staff@example.com", "owner@example.com", false},
		{"空のメールアドレス", "", "owner@example.com", false},
		{"管理者アドレス未設定", "owner@example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAdminEmail(tt.email, tt.adminEmail); got != tt.want {
				t.Errorf("IsAdminEmail(%q, %q) = %v, want %v", tt.email, tt.adminEmail, got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Hanako", "Yamada", "Hanako Yamada"},
		{"Hanako", "", "Hanako"},
		{"", "Yamada", "Yamada"},
		{"  ", "", UnspecifiedName},
		{"", "", UnspecifiedName},
	}

	for _, tt := range tests {
		if got := DisplayName(tt.first, tt.last); got != tt.want {
			t.Errorf("DisplayName(%q, %q) = %q, want %q", tt.first, tt.last, got, tt.want)
		}
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Error("session expiring in the future should not be expired")
	}
	if !(&Session{ExpiresAt: now}).Expired(now) {
		t.Error("session expiring exactly now should be expired")
	}
}

func TestStoreFault_APIError_MapsEachKind(t *testing.T) {
	tests := []struct {
		kind     FaultKind
		wantCode string
	}{
		{FaultMissingRelation, ErrCodeStoreMissingRelation},
		{FaultPermissionDenied, ErrCodeStorePermissionDenied},
		{FaultUnknown, ErrCodeStoreUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			fault := &StoreFault{Kind: tt.kind, Collection: "users", Detail: "boom"}
			apiErr := fault.APIError()
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if apiErr.Category != "store" {
				t.Errorf("Category = %q, want %q", apiErr.Category, "store")
			}
			if apiErr.Action == "" {
				t.Error("Action should not be empty")
			}
		})
	}
}

func TestStoreFault_UnknownEchoesStoreText(t *testing.T) {
	fault := &StoreFault{Kind: FaultUnknown, Collection: "users", Detail: "connection reset by peer"}
	if got := fault.APIError().Message; got != "connection reset by peer" {
		t.Errorf("Message = %q, want store text", got)
	}
}

func TestStoreFault_UnwrapsOriginalError(t *testing.T) {
	cause := errors.New("pq: relation \"users\" does not exist")
	fault := &StoreFault{Kind: FaultMissingRelation, Collection: "users", Err: cause}
	if !errors.Is(fault, cause) {
		t.Error("errors.Is should reach the original error")
	}
}
