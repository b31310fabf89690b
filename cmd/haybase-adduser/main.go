// haybase-adduser seeds a user into the SQLite database. The API has
// no registration endpoint; accounts are created out of band.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"haybase/internal/auth"
	"haybase/internal/cli"
	"haybase/internal/core"
	"haybase/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("haybase-adduser")
	cfg := cli.LoadAndValidateConfig(logger)

	name := flag.String("name", "", "login name for the new user")
	flag.Parse()
	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: haybase-adduser -name <login>")
		os.Exit(2)
	}

	password := os.Getenv("HAYBASE_PASSWORD")
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			logger.Error("Failed to read password", "error", err)
			os.Exit(1)
		}
		password = string(raw)
	}
	if password == "" {
		logger.Error("Password must not be empty")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	user := core.User{
		ID:           uuid.NewString(),
		Name:         *name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		logger.Error("Failed to create user", "error", err, "name", *name)
		os.Exit(1)
	}

	logger.Info("User created", "name", *name, "user_id", user.ID)
}
