// Package auth はユーザー登録・ログインとトークンベースの認証認可を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/stockfolio/internal/model"
	"github.com/hitoshi/stockfolio/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenTTL time.Duration // アクセストークンの有効期間
}

// Service は認証に関するビジネスロジックを提供する。
// トークンはサーバー側に保存せず、有効期限のみで失効する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenService
	hasher   *PasswordHasher
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	tokens *TokenService,
	hasher *PasswordHasher,
	config ServiceConfig,
) *Service {
	if config.TokenTTL <= 0 {
		config.TokenTTL = DefaultTokenTTL
	}
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
		config:   config,
	}
}

// AuthResult は登録・ログイン成功時の結果を表す。
type AuthResult struct {
	AccessToken string
	User        *model.User
}

// Register は新規ユーザーを登録し、アクセストークンを発行する。
// ユーザー名・メールアドレスの重複は永続化前に検査する。
// 入力の形式（文字数・メール構文）はハンドラー側で検証済みであることを前提とする。
func (s *Service) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	// 1. ユーザー名の重複確認
	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, model.NewUsernameTakenError()
	}

	// 2. メールアドレスの重複確認
	existing, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	// 3. パスワードをハッシュ化して保存
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// 4. アクセストークンを発行
	token, err := s.tokens.Issue(user.ID, user.Username, s.config.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{AccessToken: token, User: user}, nil
}

// Login は認証情報を検証し、アクセストークンを発行する。
// ユーザー名が存在しない場合とパスワード不一致の場合で同一のエラーを返し、
// ユーザー名の存在有無を外部に漏らさない。
func (s *Service) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID, user.Username, s.config.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return &AuthResult{AccessToken: token, User: user}, nil
}

// Authenticate はベアラートークンを認証済みユーザーに解決する。
//
// 拒否理由（トークン無効・subjectクレーム欠落・ユーザー不明）は
// ログにのみ記録し、外部には全て同一のUNAUTHORIZEDエラーとして返す。
// ストア障害は認証失敗と区別し、システムエラーとしてそのまま伝播させる。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		slog.Warn("authentication rejected",
			slog.String("reason", "invalid_or_expired_token"),
		)
		return nil, model.NewUnauthorizedError()
	}

	if claims.Subject == "" {
		slog.Warn("authentication rejected",
			slog.String("reason", "malformed_token"),
		)
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Warn("authentication rejected",
			slog.String("reason", "identity_not_found"),
			slog.String("user_id", claims.Subject),
		)
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}
