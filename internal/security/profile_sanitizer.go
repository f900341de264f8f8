// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer はIdPから受け取ったプロフィール情報（表示名、画像URL）を
// 保存前に無害化する。表示名はbluemondayのStrictPolicyで全てのHTMLを除去し、
// 画像URLは絶対http(s) URLのみを許可する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxNameLength は表示名として保存する最大文字数（rune数）。
const maxNameLength = 100

// maxSanitizePasses はエンティティの多重エンコードを剥がす最大回数。
const maxSanitizePasses = 5

// ProfileSanitizerService はプロフィール情報のサニタイズ機能のインターフェースを定義する。
type ProfileSanitizerService interface {
	// SanitizeName は表示名からHTMLを除去したプレーンテキストを返す。
	SanitizeName(name string) string
	// SanitizePictureURL は画像URLを検証し、安全でない場合は空文字列を返す。
	SanitizePictureURL(raw string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeName は表示名からHTMLタグを除去する。
// StrictPolicyはエンティティをエスケープして返すため、保存用にプレーンテキストへ戻す。
// 戻した結果にエンコード済みのタグが現れうるため、出力が変化しなくなるまで繰り返す。
// 収束しない入力は空文字列になる。
func (s *profileSanitizer) SanitizeName(name string) string {
	current := name
	for i := 0; i < maxSanitizePasses; i++ {
		next := s.sanitizeOnce(current)
		if next == current {
			return next
		}
		current = next
	}
	if s.sanitizeOnce(current) == current {
		return current
	}
	return ""
}

func (s *profileSanitizer) sanitizeOnce(name string) string {
	cleaned := html.UnescapeString(s.policy.Sanitize(name))
	cleaned = strings.TrimSpace(cleaned)

	if r := []rune(cleaned); len(r) > maxNameLength {
		cleaned = string(r[:maxNameLength])
	}
	return cleaned
}

// SanitizePictureURL はhttpまたはhttpsスキームの絶対URLのみを返す。
// javascript:、data:、相対URL、ホストなしのURLは空文字列になる。
func (s *profileSanitizer) SanitizePictureURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// compile-time interface check
var _ ProfileSanitizerService = (*profileSanitizer)(nil)
