// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"unicode/utf8"

	"github.com/hitoshi/stockfolio/internal/auth"
	"github.com/hitoshi/stockfolio/internal/middleware"
	"github.com/hitoshi/stockfolio/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを登録し、アクセストークンを発行する。
	Register(ctx context.Context, username, email, password string) (*auth.AuthResult, error)
	// Login は認証情報を検証し、アクセストークンを発行する。
	Login(ctx context.Context, username, password string) (*auth.AuthResult, error)
}

// AuthMetrics は認証イベントのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。nilの場合は記録しない。
type AuthMetrics interface {
	RecordRegistration()
	RecordLogin()
}

// AuthHandler はユーザー登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics AuthMetrics
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilを許容する。
func NewAuthHandler(service AuthServiceInterface, metrics AuthMetrics) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// tokenResponse は登録・ログイン成功時のAPIレスポンス。
type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

// Register は新規ユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if reason, ok := validateRegistration(req); !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(reason))
		return
	}

	result, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRegistration()
	}

	writeJSON(w, http.StatusCreated, toTokenResponse(result))
}

// Login は既存ユーザーをログインさせる。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if req.Username == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("ユーザー名とパスワードは必須です"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLogin()
	}

	writeJSON(w, http.StatusOK, toTokenResponse(result))
}

// Me は現在の認証済みユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

// toTokenResponse はauth.AuthResultからAPIレスポンスに変換する。
func toTokenResponse(result *auth.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
		User: userResponse{
			ID:       result.User.ID,
			Username: result.User.Username,
			Email:    result.User.Email,
		},
	}
}

// validateRegistration は登録リクエストの形式を検証する。
// ユーザー名3〜50文字、メールアドレス構文、パスワード6文字以上。
func validateRegistration(req registerRequest) (string, bool) {
	nameLen := utf8.RuneCountInString(req.Username)
	if nameLen < 3 || nameLen > 50 {
		return "ユーザー名は3〜50文字で指定してください", false
	}
	if !isValidEmail(req.Email) {
		return "メールアドレスの形式が正しくありません", false
	}
	if utf8.RuneCountInString(req.Password) < 6 {
		return "パスワードは6文字以上で指定してください", false
	}
	return "", true
}

// isValidEmail はメールアドレスの構文を検証する。
// 表示名付きの形式（"Name <a@b>"）はAPI入力として受け付けない。
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
