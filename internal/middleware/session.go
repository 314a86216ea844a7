// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// operatorContextKey はリクエストコンテキストにログイン中の管理者のメールアドレスを格納するためのキー。
var operatorContextKey = contextKey("operator_email")

// OperatorFromContext はリクエストコンテキストから管理者のメールアドレスを取得する。
// 管理者ガードを通過したリクエストでのみ有効。
func OperatorFromContext(ctx context.Context) (string, error) {
	email, ok := ctx.Value(operatorContextKey).(string)
	if !ok || email == "" {
		return "", fmt.Errorf("operator not found in context")
	}
	return email, nil
}

// ContextWithOperator はコンテキストに管理者のメールアドレスを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithOperator(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, operatorContextKey, email)
}
