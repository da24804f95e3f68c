package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/stockfolio/internal/model"
)

// PostgresHoldingRepo はPostgreSQLを使用した保有銘柄リポジトリ。
type PostgresHoldingRepo struct {
	db *sql.DB
}

// NewPostgresHoldingRepo はPostgresHoldingRepoを生成する。
func NewPostgresHoldingRepo(db *sql.DB) *PostgresHoldingRepo {
	return &PostgresHoldingRepo{db: db}
}

// Create は保有銘柄を作成する。
func (r *PostgresHoldingRepo) Create(ctx context.Context, holding *model.Holding) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO holdings (id, user_id, stock_name, quantity, buy_price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		holding.ID, holding.UserID, holding.StockName,
		holding.Quantity, holding.BuyPrice, holding.CreatedAt, holding.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert holding: %w", err)
	}
	return nil
}

// FindByIDAndUser は指定IDかつ指定ユーザー所有の保有銘柄を取得する。
// 所有者が一致しない場合も見つからない場合と同様にnilを返す。
func (r *PostgresHoldingRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.Holding, error) {
	holding := &model.Holding{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, stock_name, quantity, buy_price, created_at, updated_at
		 FROM holdings WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&holding.ID, &holding.UserID, &holding.StockName,
		&holding.Quantity, &holding.BuyPrice, &holding.CreatedAt, &holding.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find holding: %w", err)
	}

	return holding, nil
}

// ListByUserID はユーザーの保有銘柄一覧を作成日時昇順で返す。
func (r *PostgresHoldingRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Holding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, stock_name, quantity, buy_price, created_at, updated_at
		 FROM holdings WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*model.Holding
	for rows.Next() {
		holding := &model.Holding{}
		if err := rows.Scan(&holding.ID, &holding.UserID, &holding.StockName,
			&holding.Quantity, &holding.BuyPrice, &holding.CreatedAt, &holding.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, holding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}

	return holdings, nil
}

// Update は保有銘柄を上書き更新する。
// user_idも条件に含め、所有者以外の更新を防ぐ。
func (r *PostgresHoldingRepo) Update(ctx context.Context, holding *model.Holding) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE holdings SET stock_name = $1, quantity = $2, buy_price = $3, updated_at = $4
		 WHERE id = $5 AND user_id = $6`,
		holding.StockName, holding.Quantity, holding.BuyPrice, holding.UpdatedAt,
		holding.ID, holding.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("holding not found: %s", holding.ID)
	}
	return nil
}

// DeleteByIDAndUser は指定IDかつ指定ユーザー所有の保有銘柄を削除する。
func (r *PostgresHoldingRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM holdings WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete holding: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ HoldingRepository = (*PostgresHoldingRepo)(nil)
