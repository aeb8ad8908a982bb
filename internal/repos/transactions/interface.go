package transactions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/coingate/internal/domain"
)

var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrNotFound             = errors.New("transaction not found")
)

type Transactions interface {
	Insert(ctx context.Context, tx *sql.Tx, rec domain.TransactionRecord) error
	Delete(ctx context.Context, tx *sql.Tx, id string) error
	CountSince(ctx context.Context, tx *sql.Tx, identityID string, since time.Time) (int, error)
	ListByIdentity(ctx context.Context, identityID string, limit int) ([]domain.TransactionRecord, error)
}
