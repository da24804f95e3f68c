// Package model はドメインモデルを定義する。
package model

import "time"

// Holding はポートフォリオの1銘柄分の保有を表す。
// UserIDは所有者への参照であり、全ての取得・更新はUserID一致で絞り込まれる。
type Holding struct {
	ID        string
	UserID    string
	StockName string
	Quantity  float64
	BuyPrice  float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HoldingUpdate は保有銘柄の部分更新を表す。
// nilのフィールドは変更せず、既存の値を維持する。
type HoldingUpdate struct {
	StockName *string
	Quantity  *float64
	BuyPrice  *float64
}
