// Package portfolio は保有銘柄管理のドメインロジックを提供する。
package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/stockfolio/internal/model"
	"github.com/hitoshi/stockfolio/internal/pricing"
	"github.com/hitoshi/stockfolio/internal/repository"
)

// PriceSimulator は現在価格の取得インターフェース。
// pricing.Oracleの部分集合として定義する。
type PriceSimulator interface {
	SimulatePrice(stockName string, buyPrice float64) float64
}

// HoldingValuation は保有銘柄と評価指標を結合したビュー。
// 評価指標は永続化されず、読み取りのたびに再計算される。
type HoldingValuation struct {
	Holding      *model.Holding
	CurrentPrice float64
	Metrics      pricing.Metrics
}

// Summary はポートフォリオ全体の集計を表す。
type Summary struct {
	TotalStocks        int
	TotalInvested      float64
	TotalCurrentValue  float64
	TotalProfitLoss    float64
	TotalProfitLossPct float64
	Holdings           []HoldingValuation
}

// Service は保有銘柄管理のサービス層。
// 全操作は認証済みユーザーIDで絞り込まれ、他ユーザーの保有には到達できない。
type Service struct {
	holdingRepo repository.HoldingRepository
	oracle      PriceSimulator
}

// NewService はServiceを生成する。
func NewService(holdingRepo repository.HoldingRepository, oracle PriceSimulator) *Service {
	return &Service{
		holdingRepo: holdingRepo,
		oracle:      oracle,
	}
}

// Add は保有銘柄を追加する。
// 追加直後の現在価格は購入価格と同一として評価する。
// 入力の形式はハンドラー側で検証済みであることを前提とする。
func (s *Service) Add(ctx context.Context, userID, stockName string, quantity, buyPrice float64) (*HoldingValuation, error) {
	now := time.Now()
	holding := &model.Holding{
		ID:        uuid.New().String(),
		UserID:    userID,
		StockName: stockName,
		Quantity:  quantity,
		BuyPrice:  buyPrice,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.holdingRepo.Create(ctx, holding); err != nil {
		return nil, fmt.Errorf("failed to create holding: %w", err)
	}

	slog.Info("holding added",
		slog.String("user_id", userID),
		slog.String("holding_id", holding.ID),
		slog.String("stock_name", stockName),
	)

	return &HoldingValuation{
		Holding:      holding,
		CurrentPrice: buyPrice,
		Metrics:      pricing.ComputeMetrics(quantity, buyPrice, buyPrice),
	}, nil
}

// List はユーザーの保有銘柄一覧を評価指標付きで返す。
func (s *Service) List(ctx context.Context, userID string) ([]HoldingValuation, error) {
	holdings, err := s.holdingRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	valuations := make([]HoldingValuation, 0, len(holdings))
	for _, h := range holdings {
		valuations = append(valuations, s.valuate(h))
	}

	return valuations, nil
}

// Get は指定IDの保有銘柄を評価指標付きで返す。
// 他ユーザーの保有と存在しないIDは区別せず、いずれもSTOCK_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, userID, holdingID string) (*HoldingValuation, error) {
	holding, err := s.holdingRepo.FindByIDAndUser(ctx, holdingID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find holding: %w", err)
	}
	if holding == nil {
		return nil, model.NewStockNotFoundError(holdingID)
	}

	v := s.valuate(holding)
	return &v, nil
}

// Update は保有銘柄を部分更新する。
// updateのnilフィールドは変更されない。所有者の検証はFindByIDAndUserで行う。
func (s *Service) Update(ctx context.Context, userID, holdingID string, update model.HoldingUpdate) (*HoldingValuation, error) {
	holding, err := s.holdingRepo.FindByIDAndUser(ctx, holdingID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find holding: %w", err)
	}
	if holding == nil {
		return nil, model.NewStockNotFoundError(holdingID)
	}

	if update.StockName != nil {
		holding.StockName = *update.StockName
	}
	if update.Quantity != nil {
		holding.Quantity = *update.Quantity
	}
	if update.BuyPrice != nil {
		holding.BuyPrice = *update.BuyPrice
	}
	holding.UpdatedAt = time.Now()

	if err := s.holdingRepo.Update(ctx, holding); err != nil {
		return nil, fmt.Errorf("failed to update holding: %w", err)
	}

	slog.Info("holding updated",
		slog.String("user_id", userID),
		slog.String("holding_id", holdingID),
	)

	v := s.valuate(holding)
	return &v, nil
}

// Delete は保有銘柄を削除する。
// 他ユーザーの保有と存在しないIDは区別せず、いずれもSTOCK_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, userID, holdingID string) error {
	deleted, err := s.holdingRepo.DeleteByIDAndUser(ctx, holdingID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	if !deleted {
		return model.NewStockNotFoundError(holdingID)
	}

	slog.Info("holding deleted",
		slog.String("user_id", userID),
		slog.String("holding_id", holdingID),
	)

	return nil
}

// GetSummary はポートフォリオ全体の集計を返す。
// 合計損益率は合計投資額が0の場合に0とする。
func (s *Service) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	valuations, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	var totalInvested, totalCurrentValue float64
	for _, v := range valuations {
		totalInvested += v.Metrics.TotalInvested
		totalCurrentValue += v.Metrics.CurrentValue
	}

	totalProfitLoss := totalCurrentValue - totalInvested
	totalProfitLossPct := 0.0
	if totalInvested > 0 {
		totalProfitLossPct = totalProfitLoss / totalInvested * 100
	}

	return &Summary{
		TotalStocks:        len(valuations),
		TotalInvested:      pricing.Round2(totalInvested),
		TotalCurrentValue:  pricing.Round2(totalCurrentValue),
		TotalProfitLoss:    pricing.Round2(totalProfitLoss),
		TotalProfitLossPct: pricing.Round2(totalProfitLossPct),
		Holdings:           valuations,
	}, nil
}

// valuate は保有銘柄の現在価格をシミュレートし、評価指標を計算する。
func (s *Service) valuate(holding *model.Holding) HoldingValuation {
	currentPrice := s.oracle.SimulatePrice(holding.StockName, holding.BuyPrice)
	return HoldingValuation{
		Holding:      holding,
		CurrentPrice: currentPrice,
		Metrics:      pricing.ComputeMetrics(holding.Quantity, holding.BuyPrice, currentPrice),
	}
}
