// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todaylaw/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにセッションクレームを格納するためのキー。
var claimsContextKey = contextKey("session_claims")

// statusMissing はセッションCookieが無いリクエストのメトリクスラベル。
const statusMissing = "missing"

// SessionCheckRecorder はトークン検証結果を記録するインターフェース。
type SessionCheckRecorder interface {
	RecordSessionCheck(status string)
}

// SessionConfig はセッションミドルウェアの設定。
type SessionConfig struct {
	CookieName string
	Verifier   session.Verifier
	Recorder   SessionCheckRecorder
	// OnFailure はトークンが無い・期限切れ・不正な場合に呼ばれる。
	OnFailure http.Handler
}

// NewSessionMiddleware はCookieのセッショントークンを検証するミドルウェアを返す。
// 有効なトークンのクレームをリクエストコンテキストに注入する。
// 期限切れと署名不正はログとメトリクスでは区別するが、応答はどちらもOnFailureに委ねる。
func NewSessionMiddleware(config SessionConfig) func(next http.Handler) http.Handler {
	onFailure := config.OnFailure
	if onFailure == nil {
		onFailure = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}

	record := func(status string) {
		if config.Recorder != nil {
			config.Recorder.RecordSessionCheck(status)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからトークンを取得
			cookie, err := r.Cookie(config.CookieName)
			if err != nil || cookie.Value == "" {
				record(statusMissing)
				onFailure.ServeHTTP(w, r)
				return
			}

			// 2. 署名と有効期限を検証
			result := config.Verifier.Verify(cookie.Value)
			record(result.Status.String())

			switch result.Status {
			case session.StatusValid:
			case session.StatusExpired:
				slog.Info("session token expired",
					slog.String("path", r.URL.Path),
				)
				onFailure.ServeHTTP(w, r)
				return
			default:
				attrs := []any{slog.String("path", r.URL.Path)}
				if result.Err != nil {
					attrs = append(attrs, slog.String("error", result.Err.Error()))
				}
				slog.Warn("invalid session token", attrs...)
				onFailure.ServeHTTP(w, r)
				return
			}

			// 3. クレームをコンテキストに注入
			setLogUserID(r.Context(), result.Claims.UserID)
			ctx := ContextWithClaims(r.Context(), result.Claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext はリクエストコンテキストからセッションクレームを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*session.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*session.Claims)
	if !ok || claims == nil || claims.UserID == "" {
		return nil, fmt.Errorf("session claims not found in context")
	}
	return claims, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーID（subject id）を取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, err := ClaimsFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return claims.UserID, nil
}

// ContextWithClaims はコンテキストにセッションクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
