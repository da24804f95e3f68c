package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/stockfolio/internal/middleware"
	"github.com/hitoshi/stockfolio/internal/model"
	"github.com/hitoshi/stockfolio/internal/portfolio"
	"github.com/hitoshi/stockfolio/internal/security"
)

// PortfolioServiceInterface はポートフォリオハンドラーが必要とするサービスインターフェース。
type PortfolioServiceInterface interface {
	Add(ctx context.Context, userID, stockName string, quantity, buyPrice float64) (*portfolio.HoldingValuation, error)
	List(ctx context.Context, userID string) ([]portfolio.HoldingValuation, error)
	Get(ctx context.Context, userID, holdingID string) (*portfolio.HoldingValuation, error)
	Update(ctx context.Context, userID, holdingID string, update model.HoldingUpdate) (*portfolio.HoldingValuation, error)
	Delete(ctx context.Context, userID, holdingID string) error
	GetSummary(ctx context.Context, userID string) (*portfolio.Summary, error)
}

// PortfolioHandler は保有銘柄CRUDとサマリーのHTTPハンドラー。
type PortfolioHandler struct {
	service   PortfolioServiceInterface
	sanitizer security.NameSanitizerService
}

// NewPortfolioHandler はPortfolioHandlerを生成する。
func NewPortfolioHandler(service PortfolioServiceInterface, sanitizer security.NameSanitizerService) *PortfolioHandler {
	return &PortfolioHandler{
		service:   service,
		sanitizer: sanitizer,
	}
}

// addStockRequest は銘柄追加リクエストのボディ。
type addStockRequest struct {
	StockName string  `json:"stock_name"`
	Quantity  float64 `json:"quantity"`
	BuyPrice  float64 `json:"buy_price"`
}

// updateStockRequest は銘柄更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateStockRequest struct {
	StockName *string  `json:"stock_name"`
	Quantity  *float64 `json:"quantity"`
	BuyPrice  *float64 `json:"buy_price"`
}

// stockResponse は保有銘柄1件のAPIレスポンス。評価系フィールドは
// 保存値ではなくリクエスト時点の算出値を返す。
type stockResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	StockName     string  `json:"stock_name"`
	Quantity      float64 `json:"quantity"`
	BuyPrice      float64 `json:"buy_price"`
	CurrentPrice  float64 `json:"current_price"`
	TotalInvested float64 `json:"total_invested"`
	CurrentValue  float64 `json:"current_value"`
	ProfitLoss    float64 `json:"profit_loss"`
	ProfitLossPct float64 `json:"profit_loss_percentage"`
}

// summaryResponse はポートフォリオ集計のAPIレスポンス。
type summaryResponse struct {
	TotalStocks        int             `json:"total_stocks"`
	TotalInvested      float64         `json:"total_invested"`
	TotalCurrentValue  float64         `json:"total_current_value"`
	TotalProfitLoss    float64         `json:"total_profit_loss"`
	TotalProfitLossPct float64         `json:"total_profit_loss_percentage"`
	Stocks             []stockResponse `json:"stocks"`
}

// Add は保有銘柄を追加する。
// POST /api/portfolio/stocks
func (h *PortfolioHandler) Add(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req addStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	stockName := h.sanitizer.Sanitize(req.StockName)
	if reason, ok := validateStockFields(stockName, req.Quantity, req.BuyPrice); !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(reason))
		return
	}

	valuation, err := h.service.Add(r.Context(), user.ID, stockName, req.Quantity, req.BuyPrice)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStockResponse(valuation))
}

// List は全保有銘柄を評価付きで返す。
// GET /api/portfolio/stocks
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	valuations, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStockResponses(valuations))
}

// Get は保有銘柄1件を評価付きで返す。
// GET /api/portfolio/stocks/{stockID}
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	stockID := chi.URLParam(r, "stockID")
	valuation, err := h.service.Get(r.Context(), user.ID, stockID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStockResponse(valuation))
}

// Update は保有銘柄を部分更新する。
// PUT /api/portfolio/stocks/{stockID}
func (h *PortfolioHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	update := model.HoldingUpdate{
		Quantity: req.Quantity,
		BuyPrice: req.BuyPrice,
	}
	if req.StockName != nil {
		sanitized := h.sanitizer.Sanitize(*req.StockName)
		if reason, ok := validateStockName(sanitized); !ok {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(reason))
			return
		}
		update.StockName = &sanitized
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("数量は0より大きい値を指定してください"))
		return
	}
	if req.BuyPrice != nil && *req.BuyPrice <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("購入価格は0より大きい値を指定してください"))
		return
	}

	stockID := chi.URLParam(r, "stockID")
	valuation, err := h.service.Update(r.Context(), user.ID, stockID, update)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStockResponse(valuation))
}

// Delete は保有銘柄を削除する。
// DELETE /api/portfolio/stocks/{stockID}
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	stockID := chi.URLParam(r, "stockID")
	if err := h.service.Delete(r.Context(), user.ID, stockID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "銘柄を削除しました",
	})
}

// Summary はポートフォリオ全体の集計を返す。
// GET /api/portfolio/summary
func (h *PortfolioHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	summary, err := h.service.GetSummary(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		TotalStocks:        summary.TotalStocks,
		TotalInvested:      summary.TotalInvested,
		TotalCurrentValue:  summary.TotalCurrentValue,
		TotalProfitLoss:    summary.TotalProfitLoss,
		TotalProfitLossPct: summary.TotalProfitLossPct,
		Stocks:             toStockResponses(summary.Holdings),
	})
}

// toStockResponse はHoldingValuationからAPIレスポンスに変換する。
func toStockResponse(v *portfolio.HoldingValuation) stockResponse {
	return stockResponse{
		ID:            v.Holding.ID,
		UserID:        v.Holding.UserID,
		StockName:     v.Holding.StockName,
		Quantity:      v.Holding.Quantity,
		BuyPrice:      v.Holding.BuyPrice,
		CurrentPrice:  v.CurrentPrice,
		TotalInvested: v.Metrics.TotalInvested,
		CurrentValue:  v.Metrics.CurrentValue,
		ProfitLoss:    v.Metrics.ProfitLoss,
		ProfitLossPct: v.Metrics.ProfitLossPct,
	}
}

func toStockResponses(valuations []portfolio.HoldingValuation) []stockResponse {
	responses := make([]stockResponse, 0, len(valuations))
	for i := range valuations {
		responses = append(responses, toStockResponse(&valuations[i]))
	}
	return responses
}

// validateStockName はサニタイズ後の銘柄名を検証する。
func validateStockName(stockName string) (string, bool) {
	nameLen := utf8.RuneCountInString(stockName)
	if nameLen < 1 || nameLen > 100 {
		return "銘柄名は1〜100文字で指定してください", false
	}
	return "", true
}

// validateStockFields は銘柄追加リクエストの全フィールドを検証する。
func validateStockFields(stockName string, quantity, buyPrice float64) (string, bool) {
	if reason, ok := validateStockName(stockName); !ok {
		return reason, false
	}
	if quantity <= 0 {
		return "数量は0より大きい値を指定してください", false
	}
	if buyPrice <= 0 {
		return "購入価格は0より大きい値を指定してください", false
	}
	return "", true
}
