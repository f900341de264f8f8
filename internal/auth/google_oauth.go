package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ProviderGoogle はGoogleプロバイダーの識別子。
const ProviderGoogle = "google"

// プロバイダー呼び出しのレイテンシ計測ステップ名。
const (
	StepDiscovery = "discovery"
	StepToken     = "token"
	StepUserInfo  = "userinfo"
)

// LatencyObserver はIdP呼び出しのレイテンシを記録するインターフェース。
type LatencyObserver interface {
	RecordProviderLatency(step string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordProviderLatency(string, time.Duration) {}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
}

// GoogleOAuthProvider はGoogle OpenID Connectによる認証を提供する。
// エンドポイントは呼び出しごとにディスカバリで解決する。
type GoogleOAuthProvider struct {
	config     GoogleOAuthConfig
	discovery  Discovery
	httpClient *http.Client
	observer   LatencyObserver
}

// ProviderOption はGoogleOAuthProviderの設定を変更する。
type ProviderOption func(*GoogleOAuthProvider)

// WithLatencyObserver はIdP呼び出しのレイテンシ記録先を設定する。
func WithLatencyObserver(o LatencyObserver) ProviderOption {
	return func(p *GoogleOAuthProvider) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
// httpClientはトークン交換とユーザー情報取得に使用する。nilの場合はhttp.DefaultClient。
func NewGoogleOAuthProvider(config GoogleOAuthConfig, discovery Discovery, httpClient *http.Client, opts ...ProviderOption) *GoogleOAuthProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	p := &GoogleOAuthProvider{
		config:     config,
		discovery:  discovery,
		httpClient: httpClient,
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetLoginURL はGoogleの認可エンドポイントへのURLを生成する。
// スコープはopenid, email, profile。
func (p *GoogleOAuthProvider) GetLoginURL(ctx context.Context, state, redirectURL string) (string, error) {
	meta, err := p.discover(ctx)
	if err != nil {
		return "", err
	}
	return p.oauth2Config(meta, redirectURL).AuthCodeURL(state), nil
}

// googleUserInfoClaims はUserInfo応答のうちoidc.UserInfoが持たないクレーム。
type googleUserInfoClaims struct {
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
	Picture   string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// トークン交換はクライアントID/シークレットのBasic認証で行う。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code, redirectURL string) (*OAuthUserInfo, error) {
	meta, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	ctx = oidc.ClientContext(ctx, p.httpClient)

	// 1. 認可コードをアクセストークンに交換
	start := time.Now()
	token, err := p.oauth2Config(meta, redirectURL).Exchange(ctx, code)
	p.observer.RecordProviderLatency(StepToken, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}

	// 2. アクセストークンでユーザー情報を取得
	start = time.Now()
	info, err := meta.oidcProvider(ctx).UserInfo(ctx, oauth2.StaticTokenSource(token))
	p.observer.RecordProviderLatency(StepUserInfo, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdentityFetch, err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("%w: empty sub in user info response", ErrIdentityFetch)
	}

	var claims googleUserInfoClaims
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse user info claims: %w", ErrIdentityFetch, err)
	}

	name := claims.GivenName
	if name == "" {
		name = claims.Name
	}

	return &OAuthUserInfo{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          name,
		Picture:       claims.Picture,
		Provider:      ProviderGoogle,
	}, nil
}

func (p *GoogleOAuthProvider) discover(ctx context.Context) (*ProviderMetadata, error) {
	start := time.Now()
	meta, err := p.discovery.Discover(ctx)
	p.observer.RecordProviderLatency(StepDiscovery, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrDiscovery) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	return meta, nil
}

func (p *GoogleOAuthProvider) oauth2Config(meta *ProviderMetadata, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   meta.AuthorizationEndpoint,
			TokenURL:  meta.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
