package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は上流APIの自由記述テキストを表示用のプレーンテキストに変換する。
// 打ち上げの詳細とロケット説明はHTMLとして解釈してはならないため、
// bluemondayのStrictPolicyで全タグを除去する。
// bluemondayのポリシーはスレッドセーフで、並行する集約処理から共有できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Text はタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
// StrictPolicyがエスケープした文字実体参照は元の文字に戻す。
// 同一入力に対して常に同一出力を返す。
func (s *TextSanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// ImageURL はミッションパッチ画像のURLを検証する。
// 絶対URLかつhttpsスキームの場合のみそのまま返し、それ以外は空文字を返す。
func (s *TextSanitizer) ImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return ""
	}
	return raw
}
