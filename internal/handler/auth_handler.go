// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/todaylaw/internal/auth"
	"github.com/hitoshi/todaylaw/internal/metrics"
	"github.com/hitoshi/todaylaw/internal/middleware"
	"github.com/hitoshi/todaylaw/internal/model"
)

const (
	oauthStateCookie   = "oauth_state"
	oauthStateMaxAge   = 600
	callbackPath       = "/oauth/google/callback"
	loginSuccessResult = "success"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(ctx context.Context, state, redirectURL string) (string, error)
	HandleCallback(ctx context.Context, code, redirectURL string) (*auth.IssuedSession, error)
}

// ProfileFinder はログイン確認時にプロフィールを引くためのインターフェース。
// 該当ユーザーが存在しない場合は (nil, nil) を返す。
type ProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	HomeURL string
	// RedirectURL が空の場合はリクエストからコールバックURLを組み立てる。
	RedirectURL  string
	CookieName   string
	CookieDomain string
	CookieSecure bool
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	profiles ProfileFinder
	metrics  metrics.MetricsCollector
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewAuthHandler(service AuthServiceInterface, profiles ProfileFinder, collector metrics.MetricsCollector, config AuthHandlerConfig) *AuthHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if config.HomeURL == "" {
		config.HomeURL = "/"
	}
	return &AuthHandler{
		service:  service,
		profiles: profiles,
		metrics:  collector,
		config:   config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /oauth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.GetLoginURL(r.Context(), state, h.callbackURL(r))
	if err != nil {
		slog.Error("failed to build login url", slog.String("error", err.Error()))
		if auth.IsUpstreamError(err) {
			middleware.WriteBadGatewayError(w)
			return
		}
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLoginStarted()
	http.Redirect(w, r, loginURL, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// GET /oauth/google/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	h.clearCookie(w, oauthStateCookie)

	queryState := r.URL.Query().Get("state")
	if err != nil || stateCookie.Value == "" || queryState == "" ||
		subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(queryState)) != 1 {
		slog.Warn("oauth state mismatch", slog.Bool("cookie_present", err == nil))
		h.metrics.RecordLoginCallback(metrics.OutcomeInvalidState)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStateError())
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.metrics.RecordLoginCallback(metrics.OutcomeMissingCode)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingCodeError())
		return
	}

	issued, err := h.service.HandleCallback(r.Context(), code, h.callbackURL(r))
	if err != nil {
		h.writeCallbackError(w, err)
		return
	}

	h.setSessionCookie(w, issued.Token, issued.ExpiresAt)
	if issued.Created {
		h.metrics.RecordUserCreated()
	}
	h.metrics.RecordLoginCallback(metrics.OutcomeSuccess)
	http.Redirect(w, r, h.config.HomeURL, http.StatusFound)
}

// writeCallbackError はコールバック失敗の種別に応じてレスポンスを返す。
func (h *AuthHandler) writeCallbackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailNotVerified):
		h.metrics.RecordLoginCallback(metrics.OutcomeEmailNotVerified)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, model.EmailNotVerifiedMessage)
	case errors.Is(err, auth.ErrMissingCode):
		h.metrics.RecordLoginCallback(metrics.OutcomeMissingCode)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingCodeError())
	case auth.IsUpstreamError(err):
		slog.Error("oauth provider request failed", slog.String("error", err.Error()))
		h.metrics.RecordLoginCallback(metrics.OutcomeUpstreamError)
		middleware.WriteBadGatewayError(w)
	default:
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.metrics.RecordLoginCallback(metrics.OutcomeInternalError)
		middleware.WriteInternalServerError(w)
	}
}

// loginCheckResponse はログイン確認のレスポンス。
type loginCheckResponse struct {
	Result       string `json:"result"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
}

// LoginCheck はセッショントークンの持ち主のプロフィールを返す。
// GET /login-check（セッションミドルウェア経由）
func (h *AuthHandler) LoginCheck(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		h.RedirectHome(w, r)
		return
	}

	profile, err := h.profiles.FindByUserID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load user profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if profile == nil {
		// 発行後にユーザーが削除されたトークン
		slog.Warn("session token refers to unknown user", slog.String("user_id", userID))
		h.clearCookie(w, h.config.CookieName)
		h.RedirectHome(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(loginCheckResponse{
		Result:       loginSuccessResult,
		Name:         profile.Name,
		ProfileImage: profile.ProfileImage,
	})
}

// Logout はセッションCookieを削除してホームへリダイレクトする。
// トークン自体は失効させない。
// POST /oauth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, h.config.CookieName)
	h.RedirectHome(w, r)
}

// RedirectHome はホームURLへ302でリダイレクトする。
// セッション検証失敗時のハンドラーとしても使う。
func (h *AuthHandler) RedirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.config.HomeURL, http.StatusFound)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		Expires:  expiresAt.UTC(),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// callbackURL はプロバイダーに渡すredirect_uriを返す。
func (h *AuthHandler) callbackURL(r *http.Request) string {
	if h.config.RedirectURL != "" {
		return h.config.RedirectURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host + callbackPath
}

var _ AuthServiceInterface = (*auth.Service)(nil)
