package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	CreateLoan(ctx context.Context, loan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	GetLoanByIDInTx(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	// ListCollections returns the ledger most recent first.
	ListCollections(ctx context.Context, loanID int64) ([]Collection, error)

	ListCollectionsInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]Collection, error)

	InsertCollection(ctx context.Context, tx pgx.Tx, c *Collection) (*Collection, error)

	UpdateLoanStatusInTx(ctx context.Context, tx pgx.Tx, loanID int64, status LoanStatus) error

	GetAllActiveLoanIDs(ctx context.Context) ([]int64, error)

	ListLoansForExport(ctx context.Context) ([]Loan, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)

	// BeginSnapshotTx opens a read-only repeatable-read transaction so a loan
	// and its ledger are read from one snapshot.
	BeginSnapshotTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
