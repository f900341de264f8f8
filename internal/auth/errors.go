package auth

import "errors"

// IdPとの通信失敗を表すエラー。ハンドラーは errors.Is で判定し502を返す。
var (
	ErrDiscovery     = errors.New("provider discovery failed")
	ErrTokenExchange = errors.New("token exchange failed")
	ErrIdentityFetch = errors.New("identity fetch failed")
)

// ErrEmailNotVerified はメールアドレスが取得できない、または未検証の場合のエラー。
var ErrEmailNotVerified = errors.New("email not available or not verified")

// ErrMissingCode は認可コードが空の場合のエラー。
var ErrMissingCode = errors.New("missing authorization code")

// IsUpstreamError はIdPとの通信失敗に起因するエラーかどうかを返す。
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrDiscovery) ||
		errors.Is(err, ErrTokenExchange) ||
		errors.Is(err, ErrIdentityFetch)
}
