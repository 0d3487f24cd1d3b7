// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultProfilePicURL はprofile_pic_url未指定時のプレースホルダー画像。
const DefaultProfilePicURL = "https://via.placeholder.com/150"

// User は登録済みユーザーを表す。
// PasswordHashはサーバー側専用であり、APIレスポンスには含めない。
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	ProfilePicURL string
	CreatedAt     time.Time
}

// Profile はユーザープロフィール表示用のモデル。
// フォロワー数・フォロー数と、閲覧者から見たフォロー状態を含む。
type Profile struct {
	User
	FollowersCount int
	FollowingCount int
	IsFollowing    bool
	IsOwnProfile   bool
}
