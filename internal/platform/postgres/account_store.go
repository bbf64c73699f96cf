package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/vaultcore/internal/domain"
	"github.com/phrazzld/vaultcore/internal/platform/logger"
	"github.com/phrazzld/vaultcore/internal/store"
	"github.com/shopspring/decimal"
)

// MaxHistory caps ListTransactions when the caller passes no limit.
const MaxHistory = 1000

const accountColumns = `account_number, holder_name, date_of_birth, contact, account_type,
	balance, encrypted_pin, status, pan_number, id_number,
	created_at, last_transaction_at, transaction_count`

// PostgresAccountStore implements store.AccountStore on PostgreSQL. Transfer
// locks both rows with SELECT ... FOR UPDATE in account number order, so
// concurrent transfers over the same pair serialize without deadlocking.
type PostgresAccountStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.AccountStore = (*PostgresAccountStore)(nil)

// NewPostgresAccountStore creates the store. db is owned by the caller.
func NewPostgresAccountStore(db *sql.DB, logger *slog.Logger) *PostgresAccountStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccountStore{
		db:     db,
		logger: logger.With(slog.String("component", "account_store")),
	}
}

// Create implements store.AccountStore.
func (s *PostgresAccountStore) Create(ctx context.Context, a *domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (account_number) DO NOTHING`,
		a.Number, a.HolderName, a.DateOfBirth, a.Contact, string(a.Type),
		a.Balance, a.EncryptedPIN, string(a.Status), a.KYC.PANNumber, a.KYC.IDNumber,
		a.CreatedAt, a.LastTransactionAt, a.TransactionCount,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to insert account",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrAccountExists)
}

// Get implements store.AccountStore.
func (s *PostgresAccountStore) Get(ctx context.Context, number string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return a, nil
}

// SetStatus implements store.AccountStore.
func (s *PostgresAccountStore) SetStatus(ctx context.Context, number string, status domain.AccountStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET status = $2 WHERE account_number = $1`, number, string(status))
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(res, store.ErrAccountNotFound)
}

type lockedAccount struct {
	balance decimal.Decimal
	status  domain.AccountStatus
}

// Transfer implements store.AccountStore.
func (s *PostgresAccountStore) Transfer(ctx context.Context, t domain.Transfer) (domain.TransferResult, error) {
	if t.FromAccount == t.ToAccount {
		return domain.TransferResult{}, domain.NewValidationError("to_account", "must differ from from_account", nil)
	}
	if !t.Amount.IsPositive() {
		return domain.TransferResult{}, domain.NewValidationError("amount", "must be positive", nil)
	}

	var result domain.TransferResult
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	err := store.RunInTransaction(ctx, s.db, opts, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT account_number, balance, status FROM accounts
			WHERE account_number IN ($1, $2)
			ORDER BY account_number
			FOR UPDATE`, t.FromAccount, t.ToAccount)
		if err != nil {
			return MapError(err)
		}
		locked := make(map[string]lockedAccount, 2)
		for rows.Next() {
			var number, status string
			var balance decimal.Decimal
			if err := rows.Scan(&number, &balance, &status); err != nil {
				_ = rows.Close()
				return MapError(err)
			}
			locked[number] = lockedAccount{balance: balance, status: domain.AccountStatus(status)}
		}
		if err := rows.Close(); err != nil {
			return MapError(err)
		}
		if err := rows.Err(); err != nil {
			return MapError(err)
		}

		from, fromOK := locked[t.FromAccount]
		to, toOK := locked[t.ToAccount]
		if !fromOK || !toOK {
			return store.ErrAccountNotFound
		}
		if from.status != domain.StatusActive {
			return domain.ErrLocked
		}
		if to.status != domain.StatusActive {
			return domain.ErrDestinationInactive
		}
		if from.balance.LessThan(t.Amount) {
			return domain.ErrInsufficientFunds
		}

		at := t.At.UTC()
		if err := tx.QueryRowContext(ctx, `
			UPDATE accounts
			SET balance = balance - $2, last_transaction_at = $3, transaction_count = transaction_count + 1
			WHERE account_number = $1
			RETURNING balance`, t.FromAccount, t.Amount, at).Scan(&result.FromBalance); err != nil {
			return MapError(err)
		}
		if err := tx.QueryRowContext(ctx, `
			UPDATE accounts
			SET balance = balance + $2, last_transaction_at = $3, transaction_count = transaction_count + 1
			WHERE account_number = $1
			RETURNING balance`, t.ToAccount, t.Amount, at).Scan(&result.ToBalance); err != nil {
			return MapError(err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions
				(id, from_account, to_account, amount, description, reference_number, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			t.TransactionID, t.FromAccount, t.ToAccount, t.Amount, t.Description,
			t.ReferenceNumber, string(domain.TransactionSuccess), at,
		); err != nil {
			return MapError(err)
		}
		return nil
	})
	if err != nil {
		return domain.TransferResult{}, err
	}
	return result, nil
}

// ListTransactions implements store.AccountStore.
func (s *PostgresAccountStore) ListTransactions(ctx context.Context, number string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE account_number = $1`, number).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_account, to_account, amount, description, reference_number, status, created_at
		FROM transactions
		WHERE from_account = $1 OR to_account = $1
		ORDER BY created_at DESC
		LIMIT $2`, number, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var status string
		if err := rows.Scan(&tx.ID, &tx.FromAccount, &tx.ToAccount, &tx.Amount,
			&tx.Description, &tx.ReferenceNumber, &status, &tx.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		tx.Status = domain.TransactionStatus(status)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		a       domain.Account
		typ     string
		status  string
		lastTxn sql.NullTime
		created time.Time
	)
	err := row.Scan(
		&a.Number, &a.HolderName, &a.DateOfBirth, &a.Contact, &typ,
		&a.Balance, &a.EncryptedPIN, &status, &a.KYC.PANNumber, &a.KYC.IDNumber,
		&created, &lastTxn, &a.TransactionCount,
	)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)
	a.Status = domain.AccountStatus(status)
	a.CreatedAt = created.UTC()
	if lastTxn.Valid {
		t := lastTxn.Time.UTC()
		a.LastTransactionAt = &t
	}
	return &a, nil
}
