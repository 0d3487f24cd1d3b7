// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はキャプション・コメントなどのユーザー入力テキストを
// サニタイズし、XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// キャプションとコメントはプレーンテキストとして扱うため、
// bluemondayのStrictPolicyで全HTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
// 投稿キャプションとコメント本文の保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力テキストから全HTMLタグを除去し、前後の空白を取り除いて返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(input string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全タグ・全属性を除去し、テキストノードのみを残す。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストから全HTMLタグを除去し、前後の空白を取り除いて返す。
func (s *textSanitizer) Sanitize(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}
