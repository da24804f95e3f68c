package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/hitoshi/stockfolio/internal/auth"
	"github.com/hitoshi/stockfolio/internal/model"
	"github.com/hitoshi/stockfolio/internal/portfolio"
	"github.com/hitoshi/stockfolio/internal/pricing"
	"github.com/hitoshi/stockfolio/internal/security"
)

// --- インメモリリポジトリ ---

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*model.User)}
}

func (r *memoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, nil
}

func (r *memoryUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

type memoryHoldingRepo struct {
	mu       sync.Mutex
	holdings map[string]*model.Holding
}

func newMemoryHoldingRepo() *memoryHoldingRepo {
	return &memoryHoldingRepo{holdings: make(map[string]*model.Holding)}
}

func (r *memoryHoldingRepo) Create(ctx context.Context, holding *model.Holding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *holding
	r.holdings[holding.ID] = &copied
	return nil
}

func (r *memoryHoldingRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.holdings[id]; ok && h.UserID == userID {
		copied := *h
		return &copied, nil
	}
	return nil, nil
}

func (r *memoryHoldingRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.Holding
	for _, h := range r.holdings {
		if h.UserID == userID {
			copied := *h
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memoryHoldingRepo) Update(ctx context.Context, holding *model.Holding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *holding
	r.holdings[holding.ID] = &copied
	return nil
}

func (r *memoryHoldingRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.holdings[id]; ok && h.UserID == userID {
		delete(r.holdings, id)
		return true, nil
	}
	return false, nil
}

// --- テストサーバー構築 ---

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	userRepo := newMemoryUserRepo()
	holdingRepo := newMemoryHoldingRepo()

	hasher := auth.NewPasswordHasher(4) // テスト高速化のため最小コスト
	tokens := auth.NewTokenService("test-secret")
	authService := auth.NewService(userRepo, tokens, hasher, auth.ServiceConfig{})

	oracle := pricing.NewOracle()
	portfolioService := portfolio.NewService(holdingRepo, oracle)

	return NewRouter(&RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: "http://localhost:3000",
		Logger:            slog.Default(),
		AuthService:       authService,
		PortfolioService:  portfolioService,
		NameSanitizer:     security.NewNameSanitizer(),
	})
}

func doJSON(t *testing.T, server http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode body: %v (body=%s)", err, w.Body.String())
	}
	return result
}

// --- 統合テスト ---

// TestIntegration_PortfolioLifecycle は登録からポートフォリオ操作、削除までの
// 一連の流れをルーター経由で検証する。
func TestIntegration_PortfolioLifecycle(t *testing.T) {
	server := newTestServer(t)

	// 1. ユーザー登録
	w := doJSON(t, server, http.MethodPost, "/api/auth/register", "",
		`{"username":"alice","email":"alice@example.com","password":"secret123"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
	}
	registered := decodeBody[tokenResponse](t, w)
	if registered.AccessToken == "" {
		t.Fatal("access_token is empty")
	}
	token := registered.AccessToken

	// 2. 銘柄追加: AAPL 10株 @150
	w = doJSON(t, server, http.MethodPost, "/api/portfolio/stocks", token,
		`{"stock_name":"AAPL","quantity":10,"buy_price":150}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
	}
	added := decodeBody[stockResponse](t, w)
	if added.TotalInvested != 1500 {
		t.Errorf("total_invested = %v, want 1500", added.TotalInvested)
	}
	// 追加直後の現在価格は購入価格と同一
	if added.CurrentPrice != 150 {
		t.Errorf("current_price = %v, want 150", added.CurrentPrice)
	}
	if added.CurrentValue != 1500 {
		t.Errorf("current_value = %v, want 1500", added.CurrentValue)
	}
	if added.UserID != registered.User.ID {
		t.Errorf("user_id = %q, want %q", added.UserID, registered.User.ID)
	}

	// 3. 数量を25に更新
	w = doJSON(t, server, http.MethodPut, "/api/portfolio/stocks/"+added.ID, token,
		`{"quantity":25}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	updated := decodeBody[stockResponse](t, w)
	if updated.TotalInvested != 3750 {
		t.Errorf("total_invested = %v, want 3750", updated.TotalInvested)
	}
	// 更新後の再評価ではシミュレーション価格（購入価格の±5%以内）が使われる
	if updated.CurrentPrice < 142.5 || updated.CurrentPrice > 157.5 {
		t.Errorf("current_price = %v, want in [142.5, 157.5]", updated.CurrentPrice)
	}

	// 4. サマリー取得
	w = doJSON(t, server, http.MethodGet, "/api/portfolio/summary", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d, want %d", w.Code, http.StatusOK)
	}
	summary := decodeBody[summaryResponse](t, w)
	if summary.TotalStocks != 1 {
		t.Errorf("total_stocks = %d, want 1", summary.TotalStocks)
	}
	if summary.TotalInvested != 3750 {
		t.Errorf("total_invested = %v, want 3750", summary.TotalInvested)
	}

	// 5. 削除
	w = doJSON(t, server, http.MethodDelete, "/api/portfolio/stocks/"+added.ID, token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusOK)
	}

	// 6. 削除後の取得は404
	w = doJSON(t, server, http.MethodGet, "/api/portfolio/stocks/"+added.ID, token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestIntegration_OwnershipIsolation は他ユーザーの保有銘柄に
// 一切アクセスできないことを検証する。
func TestIntegration_OwnershipIsolation(t *testing.T) {
	server := newTestServer(t)

	register := func(name string) string {
		body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"secret123"}`, name, name)
		w := doJSON(t, server, http.MethodPost, "/api/auth/register", "", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("register %s status = %d (body=%s)", name, w.Code, w.Body.String())
		}
		return decodeBody[tokenResponse](t, w).AccessToken
	}

	aliceToken := register("alice")
	bobToken := register("bobby")

	// aliceが銘柄を追加
	w := doJSON(t, server, http.MethodPost, "/api/portfolio/stocks", aliceToken,
		`{"stock_name":"MSFT","quantity":5,"buy_price":300}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d (body=%s)", w.Code, w.Body.String())
	}
	stock := decodeBody[stockResponse](t, w)

	// bobからは存在しない扱いになる
	for _, tc := range []struct {
		method string
		body   string
	}{
		{http.MethodGet, ""},
		{http.MethodPut, `{"quantity":1}`},
		{http.MethodDelete, ""},
	} {
		w := doJSON(t, server, tc.method, "/api/portfolio/stocks/"+stock.ID, bobToken, tc.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s as other user: status = %d, want %d", tc.method, w.Code, http.StatusNotFound)
		}
	}

	// bobの一覧にはaliceの銘柄が現れない
	w = doJSON(t, server, http.MethodGet, "/api/portfolio/stocks", bobToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	bobStocks := decodeBody[[]stockResponse](t, w)
	if len(bobStocks) != 0 {
		t.Errorf("len(bob stocks) = %d, want 0", len(bobStocks))
	}

	// aliceの銘柄は無傷で残っている
	w = doJSON(t, server, http.MethodGet, "/api/portfolio/stocks/"+stock.ID, aliceToken, "")
	if w.Code != http.StatusOK {
		t.Errorf("get as owner: status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestIntegration_AuthRequired は認証なしのアクセスが拒否されることを検証する。
func TestIntegration_AuthRequired(t *testing.T) {
	server := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/portfolio/stocks"},
		{http.MethodPost, "/api/portfolio/stocks"},
		{http.MethodGet, "/api/portfolio/summary"},
	}

	for _, tc := range paths {
		w := doJSON(t, server, tc.method, tc.path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, w.Code, http.StatusUnauthorized)
		}
	}

	// 不正なトークンも拒否される
	w := doJSON(t, server, http.MethodGet, "/api/portfolio/stocks", "garbage-token", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestIntegration_Health はヘルスチェックが認証なしで応答することを検証する。
func TestIntegration_Health(t *testing.T) {
	server := newTestServer(t)

	w := doJSON(t, server, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody[map[string]string](t, w)
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want %q", body["status"], "healthy")
	}
}

// TestIntegration_DuplicateRegistration は重複登録が400になることを検証する。
func TestIntegration_DuplicateRegistration(t *testing.T) {
	server := newTestServer(t)

	body := `{"username":"alice","email":"alice@example.com","password":"secret123"}`
	w := doJSON(t, server, http.MethodPost, "/api/auth/register", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", w.Code)
	}

	// 同一ユーザー名
	w = doJSON(t, server, http.MethodPost, "/api/auth/register", "",
		`{"username":"alice","email":"other@example.com","password":"secret123"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("dup username status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeUsernameTaken {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeUsernameTaken)
	}

	// 同一メールアドレス
	w = doJSON(t, server, http.MethodPost, "/api/auth/register", "",
		`{"username":"alice2","email":"alice@example.com","password":"secret123"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("dup email status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	resp = parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeEmailTaken {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeEmailTaken)
	}

	// 登録済みユーザーでログインできる
	w = doJSON(t, server, http.MethodPost, "/api/auth/login", "",
		`{"username":"alice","password":"secret123"}`)
	if w.Code != http.StatusOK {
		t.Errorf("login status = %d, want %d", w.Code, http.StatusOK)
	}
}
