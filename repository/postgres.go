package repository

import (
	"github.com/lyzr/flowd/common/db"
	"github.com/lyzr/flowd/common/logger"
)

// Postgres implements Store on top of pgx
type Postgres struct {
	db  *db.DB
	log *logger.Logger
}

// NewPostgres creates a Postgres-backed store
func NewPostgres(db *db.DB, log *logger.Logger) *Postgres {
	return &Postgres{db: db, log: log}
}

var _ Store = (*Postgres)(nil)
