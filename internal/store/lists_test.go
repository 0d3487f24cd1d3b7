package store

import (
	"reflect"
	"testing"

	"github.com/hitoshi/minigram/internal/model"
)

func TestListCoordinator_Replace_DiscardsPriorContent(t *testing.T) {
	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"a", "b", "c"})

	// 新旧に重複があっても既存内容は完全に破棄される
	lists.Replace(FeedList, []string{"b", "d"})

	got := lists.IDs(FeedList)
	want := []string{"b", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestListCoordinator_Append_DeduplicatesKeepingFirstPosition(t *testing.T) {
	lists := NewListCoordinator()

	lists.Append(FeedList, []string{"a", "b"})
	lists.Append(FeedList, []string{"b", "c"})

	got := lists.IDs(FeedList)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v (duplicate must not move or re-insert)", got, want)
	}
}

func TestListCoordinator_Append_IsIdempotentOnMembership(t *testing.T) {
	lists := NewListCoordinator()
	lists.Append(FeedList, []string{"a", "b"})

	lists.Append(FeedList, []string{"a", "b"})
	lists.Append(FeedList, []string{"a", "b"})

	got := lists.IDs(FeedList)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestListCoordinator_Prepend_PlacesAtHead(t *testing.T) {
	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"a", "b"})

	lists.Prepend(FeedList, "new")

	got := lists.IDs(FeedList)
	want := []string{"new", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestListCoordinator_Prepend_ExistingMember_NoOp(t *testing.T) {
	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"a", "b"})

	lists.Prepend(FeedList, "b")

	got := lists.IDs(FeedList)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestListCoordinator_UserListsAreIndependentFromFeed(t *testing.T) {
	lists := NewListCoordinator()

	lists.Replace(FeedList, []string{"a", "b"})
	lists.Replace(UserPostsList("u1"), []string{"b", "c"})

	if !reflect.DeepEqual(lists.IDs(FeedList), []string{"a", "b"}) {
		t.Errorf("feed = %v", lists.IDs(FeedList))
	}
	if !reflect.DeepEqual(lists.IDs(UserPostsList("u1")), []string{"b", "c"}) {
		t.Errorf("user list = %v", lists.IDs(UserPostsList("u1")))
	}
}

func TestListCoordinator_Remove_RemovesFromEveryList(t *testing.T) {
	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"a", "b", "c"})
	lists.Replace(UserPostsList("u1"), []string{"b", "d"})

	positions := lists.Remove("b")

	if !reflect.DeepEqual(lists.IDs(FeedList), []string{"a", "c"}) {
		t.Errorf("feed = %v, want [a c]", lists.IDs(FeedList))
	}
	if !reflect.DeepEqual(lists.IDs(UserPostsList("u1")), []string{"d"}) {
		t.Errorf("user list = %v, want [d]", lists.IDs(UserPostsList("u1")))
	}
	if positions[FeedList] != 1 || positions[UserPostsList("u1")] != 0 {
		t.Errorf("positions = %v", positions)
	}
}

func TestListCoordinator_Restore_ReinsertsAtRecordedPositions(t *testing.T) {
	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"a", "b", "c"})
	lists.Replace(UserPostsList("u1"), []string{"b", "d"})

	positions := lists.Remove("b")
	lists.Restore("b", positions)

	if !reflect.DeepEqual(lists.IDs(FeedList), []string{"a", "b", "c"}) {
		t.Errorf("feed = %v, want [a b c]", lists.IDs(FeedList))
	}
	if !reflect.DeepEqual(lists.IDs(UserPostsList("u1")), []string{"b", "d"}) {
		t.Errorf("user list = %v, want [b d]", lists.IDs(UserPostsList("u1")))
	}
}

func TestListCoordinator_Resolve_FiltersDanglingReferences(t *testing.T) {
	cache := NewEntityCache()
	cache.Put(model.Post{ID: "a", Caption: "first"})
	cache.Put(model.Post{ID: "c", Caption: "third"})

	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"a", "dangling", "c"})

	posts := lists.Resolve(FeedList, cache)

	if len(posts) != 2 {
		t.Fatalf("resolved %d posts, want 2", len(posts))
	}
	if posts[0].ID != "a" || posts[1].ID != "c" {
		t.Errorf("resolved order = [%s %s], want [a c]", posts[0].ID, posts[1].ID)
	}
}

func TestListCoordinator_Clear_DiscardsAllLists(t *testing.T) {
	lists := NewListCoordinator()
	lists.Replace(FeedList, []string{"a"})
	lists.Replace(UserPostsList("u1"), []string{"b"})

	lists.Clear()

	if len(lists.IDs(FeedList)) != 0 || len(lists.IDs(UserPostsList("u1"))) != 0 {
		t.Error("expected all lists empty after clear")
	}
}
