package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUpstreamProvider = "UPSTREAM_PROVIDER_ERROR"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeInvalidState     = "INVALID_STATE"
	ErrCodeMissingCode      = "MISSING_CODE"
	ErrCodeCSRFInvalid      = "CSRF_INVALID"
)

// EmailNotVerifiedMessage はメールアドレス未検証ユーザーのログインを拒否する際の固定メッセージ。
const EmailNotVerifiedMessage = "User email not available or not verified by Google."

// NewUpstreamProviderError はIdP（ディスカバリ、トークン交換、ユーザー情報取得）との通信失敗エラーを生成する。
func NewUpstreamProviderError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamProvider,
		Message:  "認証プロバイダーとの通信に失敗しました。",
		Category: "upstream",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewInvalidStateError はOAuth stateパラメータの検証失敗エラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "invalid state parameter",
		Category: "auth",
		Action:   "ログインをやり直してください。",
	}
}

// NewMissingCodeError は認可コード未指定エラーを生成する。
func NewMissingCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCode,
		Message:  "missing authorization code",
		Category: "auth",
		Action:   "ログインをやり直してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
