package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/minigram/internal/model"
)

// PostgresFollowRepo はPostgreSQLを使用したフォローリポジトリ。
// (follower_id, followed_id) の複合主キーで重複フォローをデータベースレベルでも防止する。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Exists はfollowerIDがfollowedIDをフォロー済みかを返す。
func (r *PostgresFollowRepo) Exists(ctx context.Context, followerID, followedID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followed_id = $2)`,
		followerID, followedID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create はフォロー関係を作成する。
func (r *PostgresFollowRepo) Create(ctx context.Context, followerID, followedID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followed_id, created_at) VALUES ($1, $2, $3)`,
		followerID, followedID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はフォロー関係を削除する。
func (r *PostgresFollowRepo) Delete(ctx context.Context, followerID, followedID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2`,
		followerID, followedID,
	)
	if err != nil {
		return fmt.Errorf("フォローの削除に失敗しました: %w", err)
	}
	return nil
}

// CountFollowers は指定ユーザーのフォロワー数を返す。
func (r *PostgresFollowRepo) CountFollowers(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE followed_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("フォロワー数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountFollowing は指定ユーザーのフォロー数を返す。
func (r *PostgresFollowRepo) CountFollowing(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("フォロー数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListFollowers は指定ユーザーをフォローしているユーザーの一覧を返す。
func (r *PostgresFollowRepo) ListFollowers(ctx context.Context, userID string) ([]model.User, error) {
	return r.listRelated(ctx,
		`SELECT u.id, u.username, u.email, u.profile_pic_url, u.created_at
		 FROM follows f
		 JOIN users u ON u.id = f.follower_id
		 WHERE f.followed_id = $1
		 ORDER BY f.created_at DESC`, userID)
}

// ListFollowing は指定ユーザーがフォローしているユーザーの一覧を返す。
func (r *PostgresFollowRepo) ListFollowing(ctx context.Context, userID string) ([]model.User, error) {
	return r.listRelated(ctx,
		`SELECT u.id, u.username, u.email, u.profile_pic_url, u.created_at
		 FROM follows f
		 JOIN users u ON u.id = f.followed_id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at DESC`, userID)
}

// listRelated はフォロー関係でJOINしたユーザー一覧を読み取る。
// password_hashは返さない。
func (r *PostgresFollowRepo) listRelated(ctx context.Context, query, userID string) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー関係の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Email,
			&user.ProfilePicURL, &user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー関係の走査に失敗しました: %w", err)
	}

	return users, nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
