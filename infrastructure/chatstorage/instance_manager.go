package chatstorage

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AzielCF/az-wrap/core/config"
	"github.com/AzielCF/az-wrap/core/database"
	"github.com/sirupsen/logrus"
)

var (
	repoMu sync.RWMutex
	repos  = make(map[string]*GormRepository)
)

// GetOrInitRepository returns the message repository for one chat store. With SQLite
// every store gets its own file under the storages directory; with Postgres the name
// selects the database.
func GetOrInitRepository(name string) (*GormRepository, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("chat store name cannot be blank")
	}

	repoMu.RLock()
	repo, ok := repos[trimmed]
	repoMu.RUnlock()
	if ok {
		return repo, nil
	}

	repoMu.Lock()
	defer repoMu.Unlock()
	if repo, ok := repos[trimmed]; ok {
		return repo, nil
	}

	path := trimmed
	if database.IsSQLite(config.Global.Database) {
		path = filepath.Join(config.Global.Paths.Storages, fmt.Sprintf("chat-%s.db", trimmed))
	}
	db, err := database.Open(config.Global, path)
	if err != nil {
		return nil, err
	}

	repo = NewGormRepository(db)
	if err := repo.Migrate(); err != nil {
		logrus.Errorf("[CHATSTORAGE] failed to initialize schema for %s: %v", trimmed, err)
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	repos[trimmed] = repo
	logrus.Infof("[CHATSTORAGE] initialized chat store %s at %s", trimmed, path)
	return repo, nil
}

// CloseRepository closes and forgets the repository for name.
func CloseRepository(name string) error {
	trimmed := strings.TrimSpace(name)
	repoMu.Lock()
	repo, ok := repos[trimmed]
	delete(repos, trimmed)
	repoMu.Unlock()
	if !ok {
		return nil
	}

	sqlDB, err := repo.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close chat store %s: %w", trimmed, err)
	}
	logrus.Infof("[CHATSTORAGE] closed chat store %s", trimmed)
	return nil
}
