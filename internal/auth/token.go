package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークン検証失敗を表す。
// 署名不一致・形式不正・期限切れのいずれでも同一のエラーを返し、
// 呼び出し側には失敗理由を区別させない。
var ErrInvalidToken = errors.New("invalid or expired token")

// DefaultTokenTTL はアクセストークンの標準有効期間（30日）。
const DefaultTokenTTL = 30 * 24 * time.Hour

// TokenClaims はアクセストークンに埋め込む認証済みユーザーの情報を表す。
type TokenClaims struct {
	Subject  string // ユーザーID
	Username string
}

// TokenService はHMAC-SHA256署名付きアクセストークンの発行と検証を行う。
// サーバー側に状態を持たず、発行済みトークンは有効期限まで失効しない。
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue はクレームと有効期間からアクセストークンを発行する。
// 標準有効期間を使う場合はDefaultTokenTTLを渡す。0以下のttlも
// そのまま有効期限に反映されるため、発行直後から期限切れのトークンになる。
func (s *TokenService) Issue(subject, username string, ttl time.Duration) (string, error) {
	now := s.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      subject,
		"username": username,
		"exp":      now.Add(ttl).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// いかなる失敗もErrInvalidTokenに集約する。
func (s *TokenService) Verify(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) {
			// アルゴリズム混同攻撃を防ぐためHMAC以外の署名方式を拒否する
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)

	return &TokenClaims{
		Subject:  subject,
		Username: username,
	}, nil
}
