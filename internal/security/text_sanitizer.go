// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力する自由記述テキスト（氏名、チーム名、車両メモ等）から
// HTMLタグを取り除き、プレーンテキストとして保存できる形に整える。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は自由記述テキストのサニタイズ機能のインターフェース。
type TextSanitizerService interface {
	// Sanitize はすべてのHTML要素を取り除いたプレーンテキストを返す。
	// 前後の空白は除去する。空文字列の入力には空文字列を返す。
	Sanitize(raw string) string
}

// TextSanitizer はbluemondayのStrictPolicyによるTextSanitizerServiceの実装。
// ポリシーは生成後に変更しないため、複数のゴルーチンから同時に使用できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

var _ TextSanitizerService = (*TextSanitizer)(nil) // compile-time interface check

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去し、エスケープされた文字を元に戻す。
// 保存値はプレーンテキストであり、表示時のエスケープは描画側の責務とする。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// SanitizePtr はnil許容の文字列をサニタイズする。結果が空になった場合はnilを返す。
func (s *TextSanitizer) SanitizePtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	out := s.Sanitize(*raw)
	if out == "" {
		return nil
	}
	return &out
}
