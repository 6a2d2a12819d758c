package assistant

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"taskmaster/app/core/orchestrator/db"
	"taskmaster/app/core/orchestrator/task"
	"taskmaster/app/core/orchestrator/user"
)

func newTestStores(t *testing.T) (*task.Store, *user.Store) {
	t.Helper()
	database, err := db.NewSQLiteDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("init sqlite failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return task.NewStore(database), user.NewStore(database)
}

func TestLocateExplicitReference(t *testing.T) {
	tasks, _ := newTestStores(t)
	ctx := context.Background()
	locator := NewLocator(tasks, 5)

	first, err := tasks.Create(ctx, 1, task.Draft{Title: "Fix login bug"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := tasks.Create(ctx, 1, task.Draft{Title: "Write release notes"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	found, ok, err := locator.Locate(ctx, fmt.Sprintf("edit #%d please", second.ID), 1)
	if err != nil || !ok || found.ID != second.ID {
		t.Fatalf("expected #%d, got %+v (%v, %v)", second.ID, found, ok, err)
	}

	found, ok, err = locator.Locate(ctx, fmt.Sprintf("edit task %d please", first.ID), 1)
	if err != nil || !ok || found.ID != first.ID {
		t.Fatalf("expected task %d, got %+v (%v, %v)", first.ID, found, ok, err)
	}
}

// An explicit reference that resolves to nothing must not fall through to
// keyword search.
func TestLocateExplicitReferenceShortCircuits(t *testing.T) {
	tasks, _ := newTestStores(t)
	ctx := context.Background()
	locator := NewLocator(tasks, 5)

	if _, err := tasks.Create(ctx, 1, task.Draft{Title: "Fix login bug"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, ok, err := locator.Locate(ctx, "edit task 999 about the login bug", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("dangling explicit reference must not resolve via keywords")
	}
}

func TestLocateExplicitReferenceIsOwnerScoped(t *testing.T) {
	tasks, _ := newTestStores(t)
	ctx := context.Background()
	locator := NewLocator(tasks, 5)

	created, err := tasks.Create(ctx, 1, task.Draft{Title: "Fix login bug"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, ok, err := locator.Locate(ctx, fmt.Sprintf("delete #%d", created.ID), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("another owner's task must not resolve")
	}
}

func TestLocateKeywordSearchPrefersNewest(t *testing.T) {
	tasks, _ := newTestStores(t)
	ctx := context.Background()
	locator := NewLocator(tasks, 5)

	if _, err := tasks.Create(ctx, 1, task.Draft{Title: "Deploy staging"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	newest, err := tasks.Create(ctx, 1, task.Draft{Title: "Deploy production"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	found, ok, err := locator.Locate(ctx, "update the deploy task", 1)
	if err != nil || !ok {
		t.Fatalf("expected a match, got %v, %v", ok, err)
	}
	if found.ID != newest.ID {
		t.Fatalf("expected newest match %d, got %d", newest.ID, found.ID)
	}
}

func TestLocateNoSignal(t *testing.T) {
	tasks, _ := newTestStores(t)
	locator := NewLocator(tasks, 5)

	_, ok, err := locator.Locate(context.Background(), "do it", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("message without reference or keywords must not resolve")
	}
}
