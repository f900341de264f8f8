package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/todaylaw/internal/auth"
	"github.com/hitoshi/todaylaw/internal/repository"
	"github.com/hitoshi/todaylaw/internal/security"
	"github.com/hitoshi/todaylaw/internal/session"
)

// stubProvider は固定のユーザー情報を返すOAuthProvider。
type stubProvider struct {
	info *auth.OAuthUserInfo
}

func (p *stubProvider) GetLoginURL(_ context.Context, state, _ string) (string, error) {
	return "https://idp.example/auth?state=" + state, nil
}

func (p *stubProvider) ExchangeCode(context.Context, string, string) (*auth.OAuthUserInfo, error) {
	return p.info, nil
}

var (
	_ auth.OAuthProvider        = (*stubProvider)(nil)
	_ repository.UserRepository = (*memoryProfiles)(nil)
)

// TestAuthHandler_Callback_NameClaimMatchesStoredProfile はgiven_nameが
// セッションCookieのnameクレームと保存されたプロフィールの両方に反映されることを検証する。
func TestAuthHandler_Callback_NameClaimMatchesStoredProfile(t *testing.T) {
	tests := []struct {
		name      string
		givenName string
		want      string
	}{
		{"plain given_name", "Ava", "Ava"},
		{"markup in given_name", "<b>Ava</b>", "Ava"},
		{"encoded markup in given_name", "&lt;img src=x onerror=alert(1)&gt;Ava", "Ava"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{info: &auth.OAuthUserInfo{
				Subject:       "sub-123",
				Email:         "a@b.com",
				EmailVerified: true,
				Name:          tt.givenName,
				Picture:       "http://img/1.png",
				Provider:      auth.ProviderGoogle,
			}}
			profiles := newMemoryProfiles()
			manager := session.NewManager(testJWTSecret, time.Hour)
			svc := auth.NewService(provider, profiles, manager, security.NewProfileSanitizer())
			h := NewAuthHandler(svc, profiles, nil, testAuthConfig())

			w := httptest.NewRecorder()
			h.Callback(w, callbackRequest("s", "s", "code"))

			resp := w.Result()
			if resp.StatusCode != http.StatusFound {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
			}
			c := findCookie(resp, "todaylaw_token")
			if c == nil {
				t.Fatal("expected session cookie")
			}

			res := manager.Verify(c.Value)
			if res.Status != session.StatusValid {
				t.Fatalf("cookie token status = %v, want valid (err=%v)", res.Status, res.Err)
			}
			if res.Claims.UserID != "sub-123" {
				t.Errorf("user_id claim = %q, want %q", res.Claims.UserID, "sub-123")
			}
			if res.Claims.Name != tt.want {
				t.Errorf("name claim = %q, want %q", res.Claims.Name, tt.want)
			}

			p, err := profiles.FindByUserID(context.Background(), "sub-123")
			if err != nil || p == nil {
				t.Fatalf("stored profile = %v, err = %v", p, err)
			}
			if p.Name != tt.want {
				t.Errorf("stored name = %q, want %q", p.Name, tt.want)
			}
			if p.Name != res.Claims.Name {
				t.Errorf("stored name %q differs from claim %q", p.Name, res.Claims.Name)
			}
		})
	}
}
