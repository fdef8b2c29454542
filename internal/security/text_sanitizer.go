package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は外部から受け取った表示用テキストからマークアップを取り除く。
// バックエンドAPIが返すユーザー名などをそのままUIに渡さないために使う。
type TextSanitizer interface {
	Sanitize(s string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去する TextSanitizer を生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、エスケープされた文字を元に戻して前後の空白を取り除く。
// 出力はプレーンテキストで、HTMLとして埋め込む側がエスケープする。
func (s *textSanitizer) Sanitize(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}
