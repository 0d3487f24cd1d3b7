package store

import (
	"context"
	"sync"

	"github.com/hitoshi/minigram/internal/model"
)

// PageFetcher は1ページ分の投稿を取得する関数。
type PageFetcher func(ctx context.Context, page, limit int) (*model.PostPage, error)

// Pager はページ境界のフェッチを発行し、結果をリストコーディネーターにマージする
// ページネーションドライバー。ページ番号は1始まり。
//
// 「次ページあり」はサーバー応答のhas_nextのみを信頼し、
// 取得件数から推測することはない。
// 初回ロード中と追加ロード中は別々のフラグで区別される
// （UIが初期ロードと増分ロードを描き分けられるようにするため）。
type Pager struct {
	list  string
	limit int
	fetch PageFetcher
	cache *EntityCache
	lists *ListCoordinator

	mu          sync.Mutex
	page        int
	hasNext     bool
	loading     bool
	loadingMore bool
}

// NewPager はPagerを生成する。listはマージ先のリスト名。
func NewPager(list string, limit int, fetch PageFetcher, cache *EntityCache, lists *ListCoordinator) *Pager {
	return &Pager{
		list:  list,
		limit: limit,
		fetch: fetch,
		cache: cache,
		lists: lists,
	}
}

// LoadFirst は1ページ目を取得し、リストを取得結果で完全に置き換える。
// 取得中に再度呼ばれた場合は何もしない。
func (p *Pager) LoadFirst(ctx context.Context) error {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	p.mu.Unlock()

	result, err := p.fetch(ctx, 1, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false

	if err != nil {
		return err
	}

	p.cache.PutMany(result.Posts)
	p.lists.Replace(p.list, postIDs(result.Posts))
	p.page = 1
	p.hasNext = result.HasNext
	return nil
}

// LoadMore は次ページを取得し、リストの末尾に追記する。
// フェッチが既に進行中の場合、または次ページが無い場合は何もしない
// （繰り返し呼ばれてもフェッチを発行しない）。
func (p *Pager) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.loading || p.loadingMore || !p.hasNext {
		p.mu.Unlock()
		return nil
	}
	p.loadingMore = true
	next := p.page + 1
	p.mu.Unlock()

	result, err := p.fetch(ctx, next, p.limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadingMore = false

	if err != nil {
		return err
	}

	p.cache.PutMany(result.Posts)
	p.lists.Append(p.list, postIDs(result.Posts))
	p.page = next
	p.hasNext = result.HasNext
	return nil
}

// Page は最後に取得したページ番号を返す。未取得の場合は0。
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// HasNext はサーバーが報告した次ページの有無を返す。
func (p *Pager) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasNext
}

// Loading は初回ロードが進行中かどうかを返す。
func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// LoadingMore は追加ロードが進行中かどうかを返す。
func (p *Pager) LoadingMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingMore
}

// postIDs は投稿スライスからIDスライスを取り出す。
func postIDs(posts []model.Post) []string {
	ids := make([]string, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	return ids
}
