package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"omnitip-relay/internal/config"
	"omnitip-relay/pkg/errors"
)

const (
	issuer     = "omnitip-relay"
	adminRole  = "admin"
	defaultTTL = 12 * time.Hour
)

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth 运营者鉴权，密码换取 HS256 令牌
// 未设置密码时登录与鉴权全部拒绝
type AdminAuth struct {
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAdminAuth 未配置签名密钥时生成随机密钥，重启后旧令牌失效
func NewAdminAuth(cfg *config.AdminConfig) (*AdminAuth, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
	}

	ttl := time.Duration(cfg.TokenTTL) * time.Minute
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &AdminAuth{
		password: cfg.Password,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (a *AdminAuth) Enabled() bool {
	return a.password != ""
}

// Login 校验密码并签发令牌
func (a *AdminAuth) Login(password string) (string, time.Time, error) {
	if !a.passwordMatches(password) {
		return "", time.Time{}, errors.New(errors.ErrUnauthorized, "invalid admin credentials", nil)
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   adminRole,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign admin token: %w", err)
	}
	return token, expiresAt, nil
}

// Authorize 接受已签发的令牌，也接受管理员密码本身
func (a *AdminAuth) Authorize(token string) error {
	if !a.Enabled() || token == "" {
		return errors.New(errors.ErrUnauthorized, "unauthorized", nil)
	}
	if a.passwordMatches(token) {
		return nil
	}

	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid || claims.Role != adminRole {
		return errors.New(errors.ErrUnauthorized, "unauthorized", err)
	}
	return nil
}

func (a *AdminAuth) passwordMatches(candidate string) bool {
	if !a.Enabled() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.password)) == 1
}
