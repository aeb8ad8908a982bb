package nonces

import (
	"database/sql"

	"github.com/fastprodman/coingate/internal/repos/nonces"
)

var _ nonces.Nonces = (*noncesRepo)(nil)

type noncesRepo struct{ db *sql.DB }

func New(db *sql.DB) *noncesRepo {
	return &noncesRepo{db: db}
}
