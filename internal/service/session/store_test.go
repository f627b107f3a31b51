package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/antsa-au/haystack-service/internal/model/chat"
	session "github.com/antsa-au/haystack-service/internal/service/session"
)

func newMemoryStore() *session.Store {
	return session.NewStore(nil, 4*time.Hour)
}

func TestCreateAndGet(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "web_assistant", map[string]any{"page_url": "/dashboard"}, "profile_1")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.PersonaType != "web_assistant" {
		t.Fatalf("unexpected persona type: got %s", got.PersonaType)
	}
	if got.ProfileID != "profile_1" {
		t.Fatalf("unexpected profile id: got %s", got.ProfileID)
	}
	if got.Context["page_url"] != "/dashboard" {
		t.Fatalf("context not preserved: %v", got.Context)
	}
}

func TestCreateRequiresPersona(t *testing.T) {
	store := newMemoryStore()
	if _, err := store.Create(context.Background(), "", nil, ""); !errors.Is(err, session.ErrPersonaRequired) {
		t.Fatalf("expected ErrPersonaRequired, got %v", err)
	}
}

func TestCreateWithIDKeepsIdentifier(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	created, err := store.CreateWithID(ctx, "recovered-id", "jaimee_therapist", nil, "")
	if err != nil {
		t.Fatalf("CreateWithID err: %v", err)
	}
	if created.ID != "recovered-id" {
		t.Fatalf("identifier not preserved: got %s", created.ID)
	}
}

func TestAppendMessageAndHistory(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "web_assistant", nil, "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	if _, err := store.AppendMessage(ctx, created.ID, chat.RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}
	if _, err := store.AppendMessage(ctx, created.ID, chat.RoleAssistant, "hi there"); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != chat.RoleUser || got.Messages[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", got.Messages)
	}
	if got.Messages[0].ID == "" {
		t.Fatal("message id not assigned")
	}
	if !got.LastActivity.After(created.LastActivity) && !got.LastActivity.Equal(created.LastActivity) {
		t.Fatalf("activity clock went backwards: %v -> %v", created.LastActivity, got.LastActivity)
	}
}

func TestAppendMessageUnknownSession(t *testing.T) {
	store := newMemoryStore()
	if _, err := store.AppendMessage(context.Background(), "missing", chat.RoleUser, "x"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAppendMessageConcurrentWriters(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "web_assistant", nil, "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	const writers = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AppendMessage(ctx, created.ID, chat.RoleUser, "hello"); err != nil {
				t.Errorf("AppendMessage err: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if len(got.Messages) != writers {
		t.Fatalf("expected %d messages after concurrent appends, got %d", writers, len(got.Messages))
	}
}

func TestUpdateContextMerges(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	created, _ := store.Create(ctx, "web_assistant", map[string]any{"a": "1"}, "")
	if err := store.UpdateContext(ctx, created.ID, map[string]any{"b": "2"}); err != nil {
		t.Fatalf("UpdateContext err: %v", err)
	}

	got, _ := store.Get(ctx, created.ID)
	if got.Context["a"] != "1" || got.Context["b"] != "2" {
		t.Fatalf("context merge failed: %v", got.Context)
	}
}

func TestSetAuthKeepsExistingProfileWhenEmpty(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	created, _ := store.Create(ctx, "web_assistant", nil, "profile_1")
	if err := store.SetAuth(ctx, created.ID, "token-abc", ""); err != nil {
		t.Fatalf("SetAuth err: %v", err)
	}

	got, _ := store.Get(ctx, created.ID)
	if got.AuthToken != "token-abc" {
		t.Fatalf("token not stored: %s", got.AuthToken)
	}
	if got.ProfileID != "profile_1" {
		t.Fatalf("profile should be preserved, got %s", got.ProfileID)
	}
}

func TestDeleteSession(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	created, _ := store.Create(ctx, "web_assistant", nil, "")
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("double delete should report missing, got %v", err)
	}
}

func TestDeleteWithUnreachableRedisUsesMemory(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	store := session.NewStore(client, time.Hour)
	ctx := context.Background()

	created, err := store.CreateWithID(ctx, "mirror-only", "web_assistant", nil, "")
	if err != nil {
		t.Fatalf("CreateWithID err: %v", err)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete of mirrored session err: %v", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestActiveCount(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	if got := store.ActiveCount(ctx); got != 0 {
		t.Fatalf("expected 0 active sessions, got %d", got)
	}
	store.Create(ctx, "web_assistant", nil, "")
	store.Create(ctx, "jaimee_therapist", nil, "")
	if got := store.ActiveCount(ctx); got != 2 {
		t.Fatalf("expected 2 active sessions, got %d", got)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	created, _ := store.Create(ctx, "web_assistant", nil, "")
	store.AppendMessage(ctx, created.ID, chat.RoleUser, "original")

	first, _ := store.Get(ctx, created.ID)
	first.Messages[0].Content = "mutated"
	first.Context["injected"] = true

	second, _ := store.Get(ctx, created.ID)
	if second.Messages[0].Content != "original" {
		t.Fatal("store state mutated through returned copy")
	}
	if _, ok := second.Context["injected"]; ok {
		t.Fatal("context mutated through returned copy")
	}
}
