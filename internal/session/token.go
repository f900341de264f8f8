// Package session はステートレスな署名付きセッショントークンの発行と検証を提供する。
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL はセッショントークンの既定の有効期間。
const DefaultTTL = 24 * time.Hour

// Claims はセッショントークンのペイロード。
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Status はトークン検証結果の種別。
type Status int

const (
	// StatusInvalid は署名不正・形式不正・トークンなしを表す。
	StatusInvalid Status = iota
	// StatusExpired は署名は正しいが有効期限を過ぎたトークンを表す。
	StatusExpired
	// StatusValid は有効なトークンを表す。
	StatusValid
)

// String はメトリクスラベルやログに使う文字列表現を返す。
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Result はトークン検証の結果。ClaimsはStatusValidの場合のみ設定される。
type Result struct {
	Status Status
	Claims *Claims
	// Err は検証失敗の原因。ログ用でクライアントには返さない。
	Err error
}

// Issuer はセッショントークンを発行するインターフェース。
type Issuer interface {
	Issue(userID, name string) (token string, expiresAt time.Time, err error)
}

// Verifier はセッショントークンを検証するインターフェース。
type Verifier interface {
	Verify(token string) Result
}

// Manager はHS256で署名したJWTによるセッショントークンを扱う。
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option はManagerの設定を変更する。
type Option func(*Manager)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager はManagerを生成する。ttlが0以下の場合はDefaultTTLを使用する。
func NewManager(secret string, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL はトークンの有効期間を返す。
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue はuser_idと表示名を含むトークンを発行し、トークン文字列と有効期限を返す。
func (m *Manager) Issue(userID, name string) (string, time.Time, error) {
	now := m.now()
	expiresAt := jwt.NewNumericDate(now.Add(m.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: expiresAt,
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// Verify はトークンの署名と有効期限を検証する。
// 期限切れと署名不正は別のStatusとして返す。
func (m *Manager) Verify(tokenString string) Result {
	if tokenString == "" {
		return Result{Status: StatusInvalid, Err: errors.New("empty token")}
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Result{Status: StatusExpired, Err: err}
		}
		return Result{Status: StatusInvalid, Err: err}
	}
	if !parsed.Valid {
		return Result{Status: StatusInvalid, Err: errors.New("token is not valid")}
	}
	if claims.UserID == "" {
		return Result{Status: StatusInvalid, Err: errors.New("token has no user_id")}
	}

	return Result{Status: StatusValid, Claims: claims}
}

// compile-time interface check
var (
	_ Issuer   = (*Manager)(nil)
	_ Verifier = (*Manager)(nil)
)
