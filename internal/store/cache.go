// Package store はクライアント側の状態同期コアを提供する。
// 正規化されたエンティティキャッシュ、IDリストのコーディネーター、
// セッションストア、楽観的ミューテーション層、ページネーションドライバーで構成される。
// すべての状態はプロセス全体（セッション生存期間）の共有可変状態であり、
// コンポジションルート（Store）経由で明示的に注入される。
package store

import (
	"sync"

	"github.com/hitoshi/minigram/internal/model"
)

// EntityCache は投稿エンティティの正規化されたインメモリキャッシュ。
// IDごとに最大1エンティティを保持し、エンティティデータの唯一の真実源となる。
// リストはIDの参照のみを保持するため、1つのエンティティへの変更は
// それを参照するすべての画面（フィード、プロフィール、詳細）に即座に反映される。
type EntityCache struct {
	mu       sync.RWMutex
	entities map[string]model.Post
	onChange func(id string)
}

// NewEntityCache は空のEntityCacheを生成する。
func NewEntityCache() *EntityCache {
	return &EntityCache{
		entities: make(map[string]model.Post),
	}
}

// SetOnChange はエンティティ変更時に呼び出されるコールバックを設定する。
// 描画層が再描画のトリガーとして使用する。コールバックはロック外で呼び出される。
func (c *EntityCache) SetOnChange(fn func(id string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Get はIDでエンティティを取得する。副作用はない。
func (c *EntityCache) Get(id string) (model.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	post, ok := c.entities[id]
	return post, ok
}

// Put はエンティティを挿入または全置換する。
func (c *EntityCache) Put(post model.Post) {
	c.mu.Lock()
	c.entities[post.ID] = post
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(post.ID)
	}
}

// PutMany は複数エンティティを一括で挿入または全置換する。
// バッチに含まれないエンティティは保持される。
func (c *EntityCache) PutMany(posts []model.Post) {
	c.mu.Lock()
	for _, post := range posts {
		c.entities[post.ID] = post
	}
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		for _, post := range posts {
			fn(post.ID)
		}
	}
}

// Patch は既存エンティティの可変フィールドを部分更新する。
// nilフィールドは変更せず、無関係なフィールドを落とすことはない。
// IDが存在しない場合は何もしない（新規エントリを作成してはならない）。
// 更新を適用した場合はtrueを返す。
func (c *EntityCache) Patch(id string, patch model.PostPatch) bool {
	c.mu.Lock()
	post, ok := c.entities[id]
	if !ok {
		c.mu.Unlock()
		return false
	}

	if patch.LikeCount != nil {
		post.LikeCount = *patch.LikeCount
	}
	if patch.IsLiked != nil {
		post.IsLiked = *patch.IsLiked
	}
	if patch.CommentCount != nil {
		post.CommentCount = *patch.CommentCount
	}
	c.entities[id] = post
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(id)
	}
	return true
}

// Remove はエンティティをキャッシュから削除する。
func (c *EntityCache) Remove(id string) {
	c.mu.Lock()
	delete(c.entities, id)
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(id)
	}
}

// Len は保持中のエンティティ数を返す。
func (c *EntityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// Clear はすべてのエンティティを破棄する。ログアウト時の破棄処理で使用する。
func (c *EntityCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = make(map[string]model.Post)
}
