// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/stockfolio/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// HoldingRepository は保有銘柄データの永続化インターフェース。
// 全ての取得・更新・削除はuserIDで絞り込まれ、他ユーザーの保有は
// 存在しないレコードと区別できない。
type HoldingRepository interface {
	// Create は保有銘柄を作成する。
	Create(ctx context.Context, holding *model.Holding) error

	// FindByIDAndUser は指定IDかつ指定ユーザー所有の保有銘柄を取得する。
	// 見つからない場合（所有者不一致を含む）はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Holding, error)

	// ListByUserID はユーザーの保有銘柄一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Holding, error)

	// Update は保有銘柄を上書き更新する。
	Update(ctx context.Context, holding *model.Holding) error

	// DeleteByIDAndUser は指定IDかつ指定ユーザー所有の保有銘柄を削除する。
	// 削除した場合はtrueを、該当レコードがない場合はfalseを返す。
	DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error)
}
