package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ProviderMetadata はディスカバリドキュメントから得たエンドポイント情報。
type ProviderMetadata struct {
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserInfoEndpoint      string
}

// oidcProvider はメタデータからユーザー情報取得用のoidc.Providerを組み立てる。
func (m *ProviderMetadata) oidcProvider(ctx context.Context) *oidc.Provider {
	cfg := &oidc.ProviderConfig{
		IssuerURL:   m.Issuer,
		AuthURL:     m.AuthorizationEndpoint,
		TokenURL:    m.TokenEndpoint,
		UserInfoURL: m.UserInfoEndpoint,
	}
	return cfg.NewProvider(ctx)
}

// Discovery はOpenID Providerのメタデータを取得するインターフェース。
type Discovery interface {
	// Discover はディスカバリドキュメントを取得する。呼び出しごとに通信する。
	Discover(ctx context.Context) (*ProviderMetadata, error)
}

// OIDCDiscovery は go-oidc を使用した Discovery の実装。
// 結果はキャッシュしない。
type OIDCDiscovery struct {
	issuerURL  string
	httpClient *http.Client
}

// NewOIDCDiscovery はOIDCDiscoveryを生成する。
// httpClientがnilの場合はhttp.DefaultClientを使用する。
func NewOIDCDiscovery(issuerURL string, httpClient *http.Client) *OIDCDiscovery {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OIDCDiscovery{
		issuerURL:  issuerURL,
		httpClient: httpClient,
	}
}

// Discover は <issuer>/.well-known/openid-configuration を取得して解析する。
// 失敗時は ErrDiscovery をラップしたエラーを返す。
func (d *OIDCDiscovery) Discover(ctx context.Context) (*ProviderMetadata, error) {
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, d.httpClient), d.issuerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	endpoint := provider.Endpoint()
	meta := &ProviderMetadata{
		Issuer:                d.issuerURL,
		AuthorizationEndpoint: endpoint.AuthURL,
		TokenEndpoint:         endpoint.TokenURL,
		UserInfoEndpoint:      provider.UserInfoEndpoint(),
	}

	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" || meta.UserInfoEndpoint == "" {
		return nil, fmt.Errorf("%w: discovery document is missing required endpoints", ErrDiscovery)
	}
	return meta, nil
}

// compile-time interface check
var _ Discovery = (*OIDCDiscovery)(nil)
