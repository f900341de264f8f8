// Package auth はGoogle OpenID Connectによるログインフローを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/todaylaw/internal/model"
	"github.com/hitoshi/todaylaw/internal/repository"
	"github.com/hitoshi/todaylaw/internal/security"
	"github.com/hitoshi/todaylaw/internal/session"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Provider      string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL は認可エンドポイントへのURLを生成する。
	GetLoginURL(ctx context.Context, state, redirectURL string) (string, error)
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code, redirectURL string) (*OAuthUserInfo, error)
}

// IssuedSession はログイン成功時に発行されたセッション。
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	Name      string
	// Created は今回のログインでプロフィールが新規作成された場合にtrue。
	Created bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth     OAuthProvider
	userRepo  repository.UserRepository
	issuer    session.Issuer
	sanitizer security.ProfileSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	issuer session.Issuer,
	sanitizer security.ProfileSanitizerService,
) *Service {
	return &Service{
		oauth:     oauth,
		userRepo:  userRepo,
		issuer:    issuer,
		sanitizer: sanitizer,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(ctx context.Context, state, redirectURL string) (string, error) {
	return s.oauth.GetLoginURL(ctx, state, redirectURL)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録のsubject idの場合はデフォルト値でプロフィールを作成する。
// 登録済みの場合、既存プロフィールは変更しない。
func (s *Service) HandleCallback(ctx context.Context, code, redirectURL string) (*IssuedSession, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code, redirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. メールアドレス検証済みのユーザーのみ受け付ける
	if userInfo.Email == "" || !userInfo.EmailVerified {
		slog.Warn("login rejected: email not verified",
			slog.String("user_id", userInfo.Subject),
			slog.String("provider", userInfo.Provider),
		)
		return nil, ErrEmailNotVerified
	}

	name := s.sanitizer.SanitizeName(userInfo.Name)
	profile := model.NewUserProfile(
		userInfo.Subject,
		userInfo.Email,
		name,
		s.sanitizer.SanitizePictureURL(userInfo.Picture),
	)

	// 3. 未登録の場合のみプロフィールを作成
	created, err := s.userRepo.InsertIfAbsent(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user profile: %w", err)
	}
	if created {
		slog.Info("new user created",
			slog.String("user_id", profile.UserID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		slog.Info("existing user logged in",
			slog.String("user_id", profile.UserID),
			slog.String("provider", userInfo.Provider),
		)
	}

	// 4. セッショントークンを発行
	token, expiresAt, err := s.issuer.Issue(profile.UserID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	return &IssuedSession{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    profile.UserID,
		Name:      name,
		Created:   created,
	}, nil
}

// GenerateState はOAuth stateパラメータ用の暗号的に安全なランダム文字列を生成する。
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
