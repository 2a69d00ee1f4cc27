// Package security はクライアント側のセキュリティ機能を提供する。
//
// ContentSanitizer はコミュニティ投稿・コメントのHTMLコンテンツをサニタイズし、
// 表示側をXSSから保護する。bluemondayの許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。サーバーのサニタイズを信頼せず、
// デコード境界で必ず適用する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はHTMLコンテンツのサニタイズを行う。
// ポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, blockquote, strong, em, a, img
//   - scriptやiframe、on*イベント属性は許可リストに含めないことで除去される
//   - imgのsrc属性はhttpsスキームのみ許可
//   - aタグには target="_blank" と rel="noopener noreferrer" を強制付与
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("https")
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")

	return &ContentSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
// 空文字列には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}
