package postgres

import (
	"context"
	"errors"
	"fmt"
	"lending-backoffice/internal/domain/loan"
	"lending-backoffice/internal/infrastructure/monitoring"
	"lending-backoffice/internal/pkg/apperrors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var _ loan.Repository = (*LoanRepository)(nil)

var errMsgFormat = "%w: %w"

const loanColumns = `id, tenant_id, customer_id, principal, daily_roi, tenure_days, disbursal_date, repayment_date, status, created_at, updated_at`

const collectionColumns = `id, loan_id, amount, collected_date, loan_status, created_at`

var snapshotTxOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) BeginSnapshotTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.BeginTx(ctx, snapshotTxOptions)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin snapshot transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	query := `
        INSERT INTO loans (tenant_id, customer_id, principal, daily_roi, tenure_days, disbursal_date, repayment_date, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING ` + loanColumns
	startTime := time.Now()

	created, err := scanLoan(r.db.QueryRow(ctx, query,
		l.TenantID, l.CustomerID, l.Principal, l.DailyROI, l.TenureDays,
		l.DisbursalDate, l.RepaymentDate, l.Status,
	))
	observe("CreateLoan", startTime, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "customer_id", l.CustomerID, "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID)
	return created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	startTime := time.Now()

	l, err := scanLoan(r.db.QueryRow(ctx, query, loanID))
	observe("GetLoanByID", startTime, err)

	return l, r.loanError(ctx, "get loan by ID", loanID, err)
}

func (r *LoanRepository) GetLoanByIDInTx(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	startTime := time.Now()

	l, err := scanLoan(tx.QueryRow(ctx, query, loanID))
	observe("GetLoanByIDInTx", startTime, err)

	return l, r.loanError(ctx, "get loan by ID", loanID, err)
}

func (r *LoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	startTime := time.Now()

	l, err := scanLoan(tx.QueryRow(ctx, query, loanID))
	observe("GetLoanForUpdate", startTime, err)

	return l, r.loanError(ctx, "lock loan", loanID, err)
}

func (r *LoanRepository) loanError(ctx context.Context, op string, loanID int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
		return apperrors.ErrNotFound
	}
	r.logger.ErrorContext(ctx, "Failed to "+op, "loan_id", loanID, "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}

func (r *LoanRepository) ListCollections(ctx context.Context, loanID int64) ([]loan.Collection, error) {
	return r.listCollections(ctx, r.db, loanID)
}

func (r *LoanRepository) ListCollectionsInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.Collection, error) {
	return r.listCollections(ctx, tx, loanID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *LoanRepository) listCollections(ctx context.Context, q querier, loanID int64) ([]loan.Collection, error) {
	query := `
        SELECT ` + collectionColumns + `
        FROM collections
        WHERE loan_id = $1
        ORDER BY collected_date DESC, id DESC`
	startTime := time.Now()

	rows, err := q.Query(ctx, query, loanID)
	if err != nil {
		observe("ListCollections", startTime, err)
		r.logger.ErrorContext(ctx, "Failed to query collections", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	collections := make([]loan.Collection, 0)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan collection row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		collections = append(collections, *c)
	}

	err = rows.Err()
	observe("ListCollections", startTime, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error iterating collection rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return collections, nil
}

func (r *LoanRepository) InsertCollection(ctx context.Context, tx pgx.Tx, c *loan.Collection) (*loan.Collection, error) {
	query := `
        INSERT INTO collections (loan_id, amount, collected_date, loan_status, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING ` + collectionColumns
	startTime := time.Now()

	inserted, err := scanCollection(tx.QueryRow(ctx, query, c.LoanID, c.Amount, c.CollectedDate, c.Status))
	observe("InsertCollection", startTime, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert collection", "loan_id", c.LoanID, "error", err)
		return nil, fmt.Errorf("%w: failed to insert collection: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Collection inserted", "loan_id", c.LoanID, "collection_id", inserted.ID)
	return inserted, nil
}

func (r *LoanRepository) UpdateLoanStatusInTx(ctx context.Context, tx pgx.Tx, loanID int64, status loan.LoanStatus) error {
	sql := `UPDATE loans SET status = $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := tx.Exec(ctx, sql, status, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan status", "loan_id", loanID, "status", status, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Loan status update affected zero rows", "loan_id", loanID, "status", status)
		return fmt.Errorf("%w: loan status update affected zero rows", apperrors.ErrDatabase)
	}
	r.logger.InfoContext(ctx, "Loan status updated in DB", "loan_id", loanID, "new_status", status)
	return nil
}

func (r *LoanRepository) GetAllActiveLoanIDs(ctx context.Context) ([]int64, error) {
	logCtx := r.logger.With(slog.String("operation", "GetAllActiveLoanIDs"))
	logCtx.DebugContext(ctx, "Attempting to get all active loan IDs")

	query := `SELECT id FROM loans WHERE status = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, loan.StatusActive)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to query active loan IDs", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query active loans: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loanIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			logCtx.ErrorContext(ctx, "Failed to scan active loan ID row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed scanning active loan ID: %w", apperrors.ErrDatabase, err)
		}
		loanIDs = append(loanIDs, id)
	}

	if err = rows.Err(); err != nil {
		logCtx.ErrorContext(ctx, "Error iterating active loan ID rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating active loan IDs: %w", apperrors.ErrDatabase, err)
	}

	logCtx.DebugContext(ctx, "Finished getting active loan IDs", slog.Int("count", len(loanIDs)))
	return loanIDs, nil
}

// ListLoansForExport reads every loan with its ledger in one repeatable-read
// snapshot so the export never mixes a loan with a later collection.
func (r *LoanRepository) ListLoansForExport(ctx context.Context) ([]loan.Loan, error) {
	tx, err := r.BeginSnapshotTx(ctx)
	if err != nil {
		return nil, err
	}
	defer r.RollbackTx(ctx, tx)

	rows, err := tx.Query(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY id`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans for export", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	loans := make([]loan.Loan, 0)
	index := make(map[int64]int)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		index[l.ID] = len(loans)
		loans = append(loans, *l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	rows, err = tx.Query(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY loan_id, collected_date DESC, id DESC`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query collections for export", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan collection row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		if i, ok := index[c.LoanID]; ok {
			loans[i].Collections = append(loans[i].Collections, *c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	if err := r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "Loaded loans for export", "count", len(loans))
	return loans, nil
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID, &l.TenantID, &l.CustomerID, &l.Principal, &l.DailyROI, &l.TenureDays,
		&l.DisbursalDate, &l.RepaymentDate, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanCollection(row pgx.Row) (*loan.Collection, error) {
	var c loan.Collection
	err := row.Scan(&c.ID, &c.LoanID, &c.Amount, &c.CollectedDate, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func observe(queryName string, startTime time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		status = "error"
	}
	monitoring.RecordDBQuery(queryName, status, time.Since(startTime))
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		}
		if pgErr.Code == "23503" {
			contextLogger.Warn("Database foreign key violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrValidation, pgErr.ConstraintName)
		}

		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
