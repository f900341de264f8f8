package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/todaylaw/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const selectUserColumns = `id, user_id, username, name, profile_image,
	like_laws, hate_laws, bookmarks, comments, recently_view,
	receive_mail, bio, created_at`

// FindByUserID はuser_idでプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+selectUserColumns+` FROM users WHERE user_id = $1`,
		userID,
	).Scan(
		&p.ID, &p.UserID, &p.Username, &p.Name, &p.ProfileImage,
		pq.Array(&p.LikeLaws), pq.Array(&p.HateLaws), pq.Array(&p.Bookmarks),
		pq.Array(&p.Comments), pq.Array(&p.RecentlyView),
		&p.ReceiveMail, &p.Bio, &p.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by user_id: %w", err)
	}

	return p, nil
}

// InsertIfAbsent はuser_idが未登録の場合のみプロフィールを作成する。
// 同一user_idの同時初回ログインはユニーク制約とON CONFLICTで1件に収束する。
// IDとCreatedAtが未設定の場合はここで採番する。
func (r *PostgresUserRepo) InsertIfAbsent(ctx context.Context, p *model.UserProfile) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, user_id, username, name, profile_image,
			like_laws, hate_laws, bookmarks, comments, recently_view,
			receive_mail, bio, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (user_id) DO NOTHING`,
		p.ID, p.UserID, p.Username, p.Name, p.ProfileImage,
		pq.Array(nonNil(p.LikeLaws)), pq.Array(nonNil(p.HateLaws)), pq.Array(nonNil(p.Bookmarks)),
		pq.Array(nonNil(p.Comments)), pq.Array(nonNil(p.RecentlyView)),
		p.ReceiveMail, p.Bio, p.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// nonNil はnilスライスを空スライスに置き換える。
// pq.Arrayはnilスライスを NULL として送るため、NOT NULL列に備える。
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
