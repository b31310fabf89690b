package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"haybase/internal/auth"
	"haybase/internal/core"
	"haybase/internal/storage/memory"
)

func seedUser(t *testing.T, store *memory.Store, name, password string) core.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := core.User{ID: uuid.NewString(), Name: name, PasswordHash: hash}
	store.AddUser(u)
	return u
}

func TestLoginAndResolve(t *testing.T) {
	store := memory.NewStore()
	user := seedUser(t, store, "alex", "hunter2")
	sessions := auth.NewSessions(store, time.Hour)
	defer sessions.Close()

	token, got, err := sessions.Login(context.Background(), "alex", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("logged in as %q, want %q", got.ID, user.ID)
	}
	if token == "" {
		t.Fatal("empty session token")
	}

	userID, err := sessions.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if userID != user.ID {
		t.Errorf("resolved user %q, want %q", userID, user.ID)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "alex", "hunter2")
	sessions := auth.NewSessions(store, time.Hour)
	defer sessions.Close()

	_, _, wrongPass := sessions.Login(context.Background(), "alex", "wrong")
	_, _, noUser := sessions.Login(context.Background(), "nobody", "hunter2")

	if core.KindOf(wrongPass) != core.KindUnauthenticated {
		t.Errorf("wrong password kind = %v, want Unauthenticated", core.KindOf(wrongPass))
	}
	if core.KindOf(noUser) != core.KindUnauthenticated {
		t.Errorf("unknown user kind = %v, want Unauthenticated", core.KindOf(noUser))
	}
	if wrongPass.Error() != noUser.Error() {
		t.Errorf("failure messages differ: %q vs %q", wrongPass, noUser)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "alex", "hunter2")
	sessions := auth.NewSessions(store, time.Hour)
	defer sessions.Close()

	token, _, err := sessions.Login(context.Background(), "alex", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	sessions.Logout(token)

	if _, err := sessions.Resolve(token); core.KindOf(err) != core.KindUnauthenticated {
		t.Errorf("resolve after logout = %v, want Unauthenticated", err)
	}
	// Logging out twice is harmless.
	sessions.Logout(token)
}

func TestExpiredTokenRejected(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "alex", "hunter2")
	sessions := auth.NewSessions(store, time.Millisecond)
	defer sessions.Close()

	token, _, err := sessions.Login(context.Background(), "alex", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := sessions.Resolve(token); core.KindOf(err) != core.KindUnauthenticated {
		t.Errorf("resolve of expired token = %v, want Unauthenticated", err)
	}
}
