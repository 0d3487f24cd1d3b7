package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/minigram/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
// 取得系クエリはusersテーブルとJOINして投稿者情報を非正規化し、
// likes・commentsのサブクエリで可変フィールドを組み立てる。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// postSelect は閲覧者視点の投稿を組み立てるSELECT句。
// $1は閲覧者ID（未認証時はNULL）。viewerがNULLの場合、is_likedは常にfalseになる。
const postSelect = `
	SELECT p.id, p.user_id, u.username, u.profile_pic_url,
	       p.image_url, p.caption, p.created_at,
	       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS like_count,
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
	       EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = $1::uuid) AS is_liked
	FROM posts p
	JOIN users u ON u.id = p.user_id`

// scanPost は1行分の投稿を読み取る。
func scanPost(scanner interface{ Scan(dest ...any) error }) (*model.Post, error) {
	post := &model.Post{}
	err := scanner.Scan(
		&post.ID, &post.UserID, &post.Username, &post.ProfilePicURL,
		&post.ImageURL, &post.Caption, &post.CreatedAt,
		&post.LikeCount, &post.CommentCount, &post.IsLiked,
	)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// FindByID は指定IDの投稿を閲覧者視点の状態付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id, viewerID string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $2`, nullString(viewerID), id)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return post, nil
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, image_url, caption, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.UserID, post.ImageURL, post.Caption, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの投稿を削除する。関連するlikes・commentsはCASCADE削除される。
func (r *PostgresPostRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUser は指定ユーザーの投稿一覧をcreated_at降順で取得する。
// オフセットページネーション（1始まりのページ番号）を使用し、総件数もあわせて返す。
func (r *PostgresPostRepo) ListByUser(
	ctx context.Context,
	userID, viewerID string,
	page, limit int,
) ([]model.Post, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("投稿件数の取得に失敗しました: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx,
		postSelect+` WHERE p.user_id = $2
		 ORDER BY p.created_at DESC
		 LIMIT $3 OFFSET $4`,
		nullString(viewerID), userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	posts, err := collectPosts(rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListFeed は閲覧者がフォローしているユーザーと閲覧者自身の投稿を
// created_at降順で取得する。総件数もあわせて返す。
func (r *PostgresPostRepo) ListFeed(
	ctx context.Context,
	viewerID string,
	page, limit int,
) ([]model.Post, int, error) {
	// フィード対象: フォロー中のユーザー + 自分自身
	const feedFilter = ` WHERE p.user_id IN (
		SELECT followed_id FROM follows WHERE follower_id = $2::uuid
		UNION
		SELECT $2::uuid
	)`

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts p WHERE p.user_id IN (
			SELECT followed_id FROM follows WHERE follower_id = $1::uuid
			UNION
			SELECT $1::uuid
		)`, viewerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("フィード件数の取得に失敗しました: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx,
		postSelect+feedFilter+`
		 ORDER BY p.created_at DESC
		 LIMIT $3 OFFSET $4`,
		nullString(viewerID), viewerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	posts, err := collectPosts(rows)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// collectPosts はクエリ結果の全行を読み取る。
func collectPosts(rows *sql.Rows) ([]model.Post, error) {
	var posts []model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
