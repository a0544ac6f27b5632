package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/config"
	"github.com/Veraticus/sift/internal/docstore"
	"github.com/Veraticus/sift/internal/service"
	"github.com/Veraticus/sift/internal/storage"
)

// initStorage opens the database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initDocumentStore builds the configured document store.
func initDocumentStore() (service.DocumentStore, error) {
	store, err := docstore.New(docstore.Config{
		Backend: viper.GetString("documents.backend"),
		Root:    viper.GetString("documents.root"),
		S3: docstore.S3Config{
			Bucket:    viper.GetString("documents.s3.bucket"),
			Prefix:    viper.GetString("documents.s3.prefix"),
			Region:    viper.GetString("documents.s3.region"),
			Endpoint:  viper.GetString("documents.s3.endpoint"),
			AccessKey: viper.GetString("documents.s3.access_key"),
			SecretKey: viper.GetString("documents.s3.secret_key"),
			PathStyle: viper.GetBool("documents.s3.path_style"),
			UseSSL:    viper.GetBool("documents.s3.use_ssl"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	return store, nil
}

// currentUser returns the user the command acts for.
func currentUser() (string, error) {
	userID := strings.TrimSpace(viper.GetString("user.id"))
	if userID == "" {
		return "", common.NewUserError("no user configured; pass --user or set user.id", common.ErrMissingConfig)
	}
	return userID, nil
}

func closeStorage(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}
