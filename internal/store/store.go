package store

import (
	"context"

	"github.com/hitoshi/minigram/internal/client"
	"github.com/hitoshi/minigram/internal/model"
)

// Store はクライアント側状態同期コアのコンポジションルート。
// エンティティキャッシュ・リストコーディネーター・セッションストア・
// 楽観的ミューテーション層を1か所で構成し、依存として注入する。
// 状態の生存期間と所有権はこの型が明示的に管理する:
// プロセス開始時は空で初期化され、ログアウト時に明示的に破棄される。
type Store struct {
	Cache     *EntityCache
	Lists     *ListCoordinator
	Session   *SessionStore
	Mutations *Mutator

	client *client.Client
	limit  int
}

// New はStoreを生成し、全コンポーネントをワイヤリングする。
// limitはページネーションのページサイズ。
// いずれかのAPI呼び出しが401を返した場合、呼び出し元コンポーネントとは
// 独立にセッションが破棄される（プロセス全体のフック）。
func New(c *client.Client, storage CredentialStorage, limit int) *Store {
	cache := NewEntityCache()
	lists := NewListCoordinator()
	session := NewSessionStore(c, storage)
	mutations := NewMutator(cache, lists, session, c)

	s := &Store{
		Cache:     cache,
		Lists:     lists,
		Session:   session,
		Mutations: mutations,
		client:    c,
		limit:     limit,
	}

	c.SetOnUnauthorized(s.teardown)
	return s
}

// FeedPager はグローバルフィード用のPagerを生成する。
func (s *Store) FeedPager() *Pager {
	return NewPager(FeedList, s.limit, func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		return s.client.GetFeed(ctx, page, limit)
	}, s.Cache, s.Lists)
}

// UserPostsPager は指定ユーザーの投稿リスト用のPagerを生成する。
func (s *Store) UserPostsPager(userID string) *Pager {
	return NewPager(UserPostsList(userID), s.limit, func(ctx context.Context, page, limit int) (*model.PostPage, error) {
		return s.client.GetUserPosts(ctx, userID, page, limit)
	}, s.Cache, s.Lists)
}

// Logout はセッションを終了し、すべての共有状態を破棄する。
func (s *Store) Logout() error {
	err := s.Session.Logout()
	s.Cache.Clear()
	s.Lists.Clear()
	return err
}

// teardown は401応答によるプロセス全体のセッション破棄。
func (s *Store) teardown() {
	s.Session.Teardown()
	s.Cache.Clear()
	s.Lists.Clear()
}
