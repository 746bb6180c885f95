package repo

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"passbridge/config"
)

type Repo struct {
	db   *gocql.Session
	conf *config.PassbridgeConfModel
}

type RepoImply interface {
	DatabaseHealth(context.Context) error
}

func NewRepo(db *gocql.Session, conf *config.PassbridgeConfModel) RepoImply {
	return &Repo{db: db, conf: conf}
}

func (repo *Repo) DatabaseHealth(_ context.Context) error {
	var release string
	if err := repo.db.Query(`SELECT release_version FROM system.local`).Scan(&release); err != nil {
		return fmt.Errorf("db health check failed: %w", err)
	}

	return nil
}
