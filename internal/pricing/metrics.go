package pricing

import "github.com/shopspring/decimal"

// Metrics は保有銘柄から導出される評価指標を表す。
// 永続化せず、読み取りのたびに保有数量・購入価格・現在価格から再計算する。
type Metrics struct {
	TotalInvested float64
	CurrentValue  float64
	ProfitLoss    float64
	ProfitLossPct float64
}

// ComputeMetrics は数量・購入価格・現在価格から評価指標を計算する。
// 入力は呼び出し側で検証済みであることを前提とし、エラーを返さない。
// totalInvestedが0の場合、損益率はゼロ除算を避けて0とする。
func ComputeMetrics(quantity, buyPrice, currentPrice float64) Metrics {
	totalInvested := quantity * buyPrice
	currentValue := quantity * currentPrice
	profitLoss := currentValue - totalInvested

	profitLossPct := 0.0
	if totalInvested > 0 {
		profitLossPct = profitLoss / totalInvested * 100
	}

	return Metrics{
		TotalInvested: Round2(totalInvested),
		CurrentValue:  Round2(currentValue),
		ProfitLoss:    Round2(profitLoss),
		ProfitLossPct: Round2(profitLossPct),
	}
}

// Round2 は小数第2位への丸めを行う。
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
