package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// generateSessionID は暗号的に安全なセッションIDを生成する（256bit）。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
