package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"achievements/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO users") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[0] != "user-1" || args[1] != "name" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	if err := store.Create(ctx, execer, "user-1", "name", "email@example.com", "hash"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreGetByEmail(t *testing.T) {
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "password_hash") || args[0] != "alice@example.com" {
				t.Fatalf("unexpected query: %s %#v", query, args)
			}
			*dest.(*models.User) = models.User{ID: "user-1", PasswordHash: "hash"}
			return nil
		},
	})
	user, err := store.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" || user.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %#v", user)
	}
}

func TestUserStoreGetByID(t *testing.T) {
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if strings.Contains(query, "password_hash") {
				t.Fatalf("profile query must not select the hash: %s", query)
			}
			*dest.(*models.User) = models.User{ID: "user-1", Username: "alice"}
			return nil
		},
	})
	user, err := store.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected user: %#v", user)
	}
}
