// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/minigram/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByLogin はユーザー名またはメールアドレスでユーザーを検索する。
	// ログイン時の識別子解決に使用する。見つからない場合はnilを返す。
	FindByLogin(ctx context.Context, login string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfilePic はユーザーのプロフィール画像URLを更新する。
	UpdateProfilePic(ctx context.Context, id, profilePicURL string) error
}

// PostRepository は投稿データの永続化インターフェース。
// 取得系は閲覧者ID（viewerID）を受け取り、like_count・comment_count・is_likedを
// 非正規化した状態で返す。viewerIDが空文字列の場合、is_likedは常にfalseになる。
type PostRepository interface {
	// FindByID は指定IDの投稿を閲覧者視点の状態付きで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, viewerID string) (*model.Post, error)

	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// DeleteByID は指定IDの投稿を削除する。
	// 関連するlikes・commentsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// ListByUser は指定ユーザーの投稿一覧をcreated_at降順で取得する。
	// オフセットページネーション（1始まりのページ番号）を使用し、総件数もあわせて返す。
	ListByUser(ctx context.Context, userID, viewerID string, page, limit int) ([]model.Post, int, error)

	// ListFeed は閲覧者がフォローしているユーザーと閲覧者自身の投稿を
	// created_at降順で取得する。総件数もあわせて返す。
	ListFeed(ctx context.Context, viewerID string, page, limit int) ([]model.Post, int, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// ListByPost は投稿のコメント一覧をcreated_at昇順で取得する。
	ListByPost(ctx context.Context, postID string) ([]model.Comment, error)

	// DeleteByID は指定IDのコメントを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// LikeRepository はいいね（ユーザーと投稿の多対多関係）の永続化インターフェース。
type LikeRepository interface {
	// Exists はユーザーが投稿をいいね済みかを返す。
	Exists(ctx context.Context, userID, postID string) (bool, error)

	// Create はいいねを作成する。
	Create(ctx context.Context, userID, postID string) error

	// Delete はいいねを削除する。
	Delete(ctx context.Context, userID, postID string) error

	// CountByPost は投稿のいいね数を返す。
	CountByPost(ctx context.Context, postID string) (int, error)
}

// FollowRepository はフォロー（ユーザー間の多対多関係）の永続化インターフェース。
type FollowRepository interface {
	// Exists はfollowerIDがfollowedIDをフォロー済みかを返す。
	Exists(ctx context.Context, followerID, followedID string) (bool, error)

	// Create はフォロー関係を作成する。
	Create(ctx context.Context, followerID, followedID string) error

	// Delete はフォロー関係を削除する。
	Delete(ctx context.Context, followerID, followedID string) error

	// CountFollowers は指定ユーザーのフォロワー数を返す。
	CountFollowers(ctx context.Context, userID string) (int, error)

	// CountFollowing は指定ユーザーのフォロー数を返す。
	CountFollowing(ctx context.Context, userID string) (int, error)

	// ListFollowers は指定ユーザーをフォローしているユーザーの一覧を返す。
	ListFollowers(ctx context.Context, userID string) ([]model.User, error)

	// ListFollowing は指定ユーザーがフォローしているユーザーの一覧を返す。
	ListFollowing(ctx context.Context, userID string) ([]model.User, error)
}
