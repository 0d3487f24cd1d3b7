package model

import "time"

// Post は投稿を表す。
// Username・ProfilePicURLは表示用に投稿者情報を非正規化したフィールド。
// LikeCount・IsLiked・CommentCountは閲覧者視点で計算される可変フィールドで、
// それ以外（ID、投稿者、画像、キャプション、作成日時）は作成後に変更されない。
type Post struct {
	ID            string
	UserID        string
	Username      string
	ProfilePicURL string
	ImageURL      string
	Caption       string
	LikeCount     int
	IsLiked       bool
	CommentCount  int
	CreatedAt     time.Time
}

// PostPatch は投稿の可変フィールドの部分更新を表す。
// nilフィールドは変更しない。クライアント側エンティティキャッシュの
// Patch操作で使用する。
type PostPatch struct {
	LikeCount    *int
	IsLiked      *bool
	CommentCount *int
}

// PostPage は投稿一覧の1ページ分を表す。
// HasNextはサーバーが計算した「次ページの有無」であり、
// クライアントは件数からの推測ではなくこの値のみを信頼する。
type PostPage struct {
	Posts   []Post
	Page    int
	Limit   int
	Total   int
	HasNext bool
}

// Comment は投稿へのコメントを表す。
type Comment struct {
	ID            string
	PostID        string
	UserID        string
	Username      string
	ProfilePicURL string
	Text          string
	CreatedAt     time.Time
}
