// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/todaylaw/internal/model"
)

// UserRepository はユーザープロフィールの永続化インターフェース。
// プロフィールはプロバイダーのsubject id（user_id）をキーとする。
type UserRepository interface {
	// FindByUserID はuser_idでプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)

	// InsertIfAbsent はuser_idが未登録の場合のみプロフィールを作成する。
	// 既存のプロフィールは変更しない。新規作成した場合はcreated=trueを返す。
	InsertIfAbsent(ctx context.Context, profile *model.UserProfile) (created bool, err error)
}
