// Package security はストアから読み込んだ値を管理画面に表示する前の無害化を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy は全てのタグと属性を取り除くポリシー。
// bluemonday.PolicyはSanitize呼び出しに対してスレッドセーフ。
var strictPolicy = bluemonday.StrictPolicy()

// PlainText は利用者が入力した文字列からHTMLタグを取り除き、プレーンテキストとして返す。
// 前後の空白は除去する。
// bluemondayがエスケープした文字参照は元に戻すため、「&」などの記号はそのまま残る。
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}
