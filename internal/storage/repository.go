// Package storage provides the SQLite persistence layer. Decimal
// amounts are stored as TEXT to avoid float rounding; ids are uuid
// strings minted by the service layer.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"haybase/internal/core"
	"haybase/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for health checks.
func (r *SQLiteRepository) DB() *sql.DB { return r.db }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

func parseDec(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ─── Users ──────────────────────────────────────────────────────────

func (r *SQLiteRepository) scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return core.User{}, notFound(err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByName(ctx context.Context, name string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, created_at FROM users WHERE name = ?`, name))
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, created_at FROM users WHERE id = ?`, id))
}

// CreateUser is used by seeding and tests; the HTTP layer has no
// registration endpoint.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// ─── Account groups and types ───────────────────────────────────────

func (r *SQLiteRepository) CreateAccountGroup(ctx context.Context, g core.AccountGroup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_groups (id, user_id, name, code) VALUES (?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.Code)
	if err != nil {
		return fmt.Errorf("insert account group: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateAccountGroup(ctx context.Context, g core.AccountGroup) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE account_groups SET name = ?, code = ? WHERE id = ?`, g.Name, g.Code, g.ID)
	if err != nil {
		return fmt.Errorf("update account group: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAccountGroup(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM account_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account group: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanGroup(row *sql.Row) (core.AccountGroup, error) {
	var g core.AccountGroup
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Code); err != nil {
		return core.AccountGroup{}, notFound(err)
	}
	return g, nil
}

func (r *SQLiteRepository) AccountGroupByID(ctx context.Context, id string) (core.AccountGroup, error) {
	return r.scanGroup(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, code FROM account_groups WHERE id = ?`, id))
}

func (r *SQLiteRepository) AccountGroupByCode(ctx context.Context, userID, code string) (core.AccountGroup, error) {
	return r.scanGroup(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, code FROM account_groups WHERE user_id = ? AND code = ?`, userID, code))
}

func (r *SQLiteRepository) AccountGroupsByUser(ctx context.Context, userID string) ([]core.AccountGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, code FROM account_groups WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query account groups: %w", err)
	}
	defer rows.Close()

	var groups []core.AccountGroup
	for rows.Next() {
		var g core.AccountGroup
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.Code); err != nil {
			return nil, fmt.Errorf("scan account group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *SQLiteRepository) CountAccountsInGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE group_id = ?`, groupID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count accounts in group: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CreateAccountType(ctx context.Context, t core.AccountType) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_types (id, user_id, name, code) VALUES (?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Code)
	if err != nil {
		return fmt.Errorf("insert account type: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateAccountType(ctx context.Context, t core.AccountType) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE account_types SET name = ?, code = ? WHERE id = ?`, t.Name, t.Code, t.ID)
	if err != nil {
		return fmt.Errorf("update account type: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAccountType(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM account_types WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account type: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanType(row *sql.Row) (core.AccountType, error) {
	var t core.AccountType
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Code); err != nil {
		return core.AccountType{}, notFound(err)
	}
	return t, nil
}

func (r *SQLiteRepository) AccountTypeByID(ctx context.Context, id string) (core.AccountType, error) {
	return r.scanType(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, code FROM account_types WHERE id = ?`, id))
}

func (r *SQLiteRepository) AccountTypeByCode(ctx context.Context, userID, code string) (core.AccountType, error) {
	return r.scanType(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, code FROM account_types WHERE user_id = ? AND code = ?`, userID, code))
}

func (r *SQLiteRepository) AccountTypesByUser(ctx context.Context, userID string) ([]core.AccountType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, code FROM account_types WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query account types: %w", err)
	}
	defer rows.Close()

	var types []core.AccountType
	for rows.Next() {
		var t core.AccountType
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Code); err != nil {
			return nil, fmt.Errorf("scan account type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *SQLiteRepository) CountAccountsOfType(ctx context.Context, typeID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE type_id = ?`, typeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count accounts of type: %w", err)
	}
	return n, nil
}

// ─── Accounts ───────────────────────────────────────────────────────

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, type_id, group_id, name, initial_balance)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.TypeID, a.GroupID, a.Name, a.InitialBalance.String())
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type_id = ?, group_id = ?, initial_balance = ? WHERE id = ?`,
		a.Name, a.TypeID, a.GroupID, a.InitialBalance.String(), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AccountByID(ctx context.Context, id string) (core.Account, error) {
	var (
		a       core.Account
		initial string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, type_id, group_id, name, initial_balance FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.UserID, &a.TypeID, &a.GroupID, &a.Name, &initial)
	if err != nil {
		return core.Account{}, notFound(err)
	}
	if a.InitialBalance, err = parseDec(initial); err != nil {
		return core.Account{}, fmt.Errorf("parse initial balance: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) AccountsByUser(ctx context.Context, userID string) ([]core.ClassifiedAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.type_id, a.group_id, a.name, a.initial_balance,
		        g.id, g.user_id, g.name, g.code
		 FROM accounts a JOIN account_groups g ON g.id = a.group_id
		 WHERE a.user_id = ?
		 ORDER BY g.name, a.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.ClassifiedAccount
	for rows.Next() {
		var (
			ca      core.ClassifiedAccount
			initial string
		)
		if err := rows.Scan(
			&ca.ID, &ca.UserID, &ca.TypeID, &ca.GroupID, &ca.Name, &initial,
			&ca.Group.ID, &ca.Group.UserID, &ca.Group.Name, &ca.Group.Code,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if ca.InitialBalance, err = parseDec(initial); err != nil {
			return nil, fmt.Errorf("parse initial balance: %w", err)
		}
		accounts = append(accounts, ca)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) CountAccountUsage(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM transactions WHERE account_id = ?)
		      + (SELECT COUNT(*) FROM transfers WHERE from_account_id = ? OR to_account_id = ?)
		      + (SELECT COUNT(*) FROM reserves WHERE account_id = ?)`,
		accountID, accountID, accountID, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count account usage: %w", err)
	}
	return n, nil
}

// ─── Months ─────────────────────────────────────────────────────────

func (r *SQLiteRepository) CreateMonth(ctx context.Context, m core.Month) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO months (id, user_id, year, month, status) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Year, m.Month, string(m.Status))
	if err != nil {
		return fmt.Errorf("insert month: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scanMonth(row *sql.Row) (core.Month, error) {
	var m core.Month
	if err := row.Scan(&m.ID, &m.UserID, &m.Year, &m.Month, &m.Status); err != nil {
		return core.Month{}, notFound(err)
	}
	return m, nil
}

func (r *SQLiteRepository) MonthByID(ctx context.Context, id string) (core.Month, error) {
	return r.scanMonth(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, year, month, status FROM months WHERE id = ?`, id))
}

func (r *SQLiteRepository) MonthByPeriod(ctx context.Context, userID string, year, month int) (core.Month, error) {
	return r.scanMonth(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, year, month, status FROM months
		 WHERE user_id = ? AND year = ? AND month = ?`, userID, year, month))
}

func (r *SQLiteRepository) MonthsByUser(ctx context.Context, userID string) ([]core.Month, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, year, month, status FROM months
		 WHERE user_id = ? ORDER BY year, month`, userID)
	if err != nil {
		return nil, fmt.Errorf("query months: %w", err)
	}
	defer rows.Close()

	var months []core.Month
	for rows.Next() {
		var m core.Month
		if err := rows.Scan(&m.ID, &m.UserID, &m.Year, &m.Month, &m.Status); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// ─── Transactions ───────────────────────────────────────────────────

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, month_id, account_id, date, amount, type, status, category, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.MonthID, t.AccountID, t.Date, t.Amount.String(),
		string(t.Type), string(t.Status), t.Category, t.Notes)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET month_id = ?, account_id = ?, date = ?, amount = ?, type = ?, status = ?, category = ?, notes = ?
		 WHERE id = ?`,
		t.MonthID, t.AccountID, t.Date, t.Amount.String(),
		string(t.Type), string(t.Status), t.Category, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

const transactionCols = `id, user_id, month_id, account_id, date, amount, type, status, category, notes`

func scanTransaction(s interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t      core.Transaction
		amount string
	)
	err := s.Scan(&t.ID, &t.UserID, &t.MonthID, &t.AccountID, &t.Date,
		&amount, &t.Type, &t.Status, &t.Category, &t.Notes)
	if err != nil {
		return core.Transaction{}, notFound(err)
	}
	if t.Amount, err = parseDec(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) TransactionByID(ctx context.Context, id string) (core.Transaction, error) {
	return scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = ?`, id))
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) TransactionsByMonth(ctx context.Context, userID, monthID string) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionCols+` FROM transactions
		 WHERE user_id = ? AND month_id = ? ORDER BY date`, userID, monthID)
}

func (r *SQLiteRepository) TransactionsThrough(ctx context.Context, userID string, year, month int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT t.id, t.user_id, t.month_id, t.account_id, t.date, t.amount, t.type, t.status, t.category, t.notes
		 FROM transactions t JOIN months m ON m.id = t.month_id
		 WHERE t.user_id = ? AND t.status = 'BOOKED'
		   AND (m.year < ? OR (m.year = ? AND m.month <= ?))
		 ORDER BY m.year, m.month, t.date`, userID, year, year, month)
}

// ─── Transfers ──────────────────────────────────────────────────────

func (r *SQLiteRepository) CreateTransfer(ctx context.Context, t core.Transfer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transfers (id, user_id, month_id, from_account_id, to_account_id, date, amount, status, category, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.MonthID, t.FromAccountID, t.ToAccountID, t.Date,
		t.Amount.String(), string(t.Status), t.Category, t.Notes)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTransfer(ctx context.Context, t core.Transfer) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transfers
		 SET month_id = ?, from_account_id = ?, to_account_id = ?, date = ?, amount = ?, status = ?, category = ?, notes = ?
		 WHERE id = ?`,
		t.MonthID, t.FromAccountID, t.ToAccountID, t.Date,
		t.Amount.String(), string(t.Status), t.Category, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransfer(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transfers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	return nil
}

const transferCols = `id, user_id, month_id, from_account_id, to_account_id, date, amount, status, category, notes`

func scanTransfer(s interface{ Scan(...any) error }) (core.Transfer, error) {
	var (
		t      core.Transfer
		amount string
	)
	err := s.Scan(&t.ID, &t.UserID, &t.MonthID, &t.FromAccountID, &t.ToAccountID,
		&t.Date, &amount, &t.Status, &t.Category, &t.Notes)
	if err != nil {
		return core.Transfer{}, notFound(err)
	}
	if t.Amount, err = parseDec(amount); err != nil {
		return core.Transfer{}, fmt.Errorf("parse amount: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) TransferByID(ctx context.Context, id string) (core.Transfer, error) {
	return scanTransfer(r.db.QueryRowContext(ctx,
		`SELECT `+transferCols+` FROM transfers WHERE id = ?`, id))
}

func (r *SQLiteRepository) queryTransfers(ctx context.Context, query string, args ...any) ([]core.Transfer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (r *SQLiteRepository) TransfersByMonth(ctx context.Context, userID, monthID string) ([]core.Transfer, error) {
	return r.queryTransfers(ctx,
		`SELECT `+transferCols+` FROM transfers
		 WHERE user_id = ? AND month_id = ? ORDER BY date`, userID, monthID)
}

func (r *SQLiteRepository) TransfersThrough(ctx context.Context, userID string, year, month int) ([]core.Transfer, error) {
	return r.queryTransfers(ctx,
		`SELECT t.id, t.user_id, t.month_id, t.from_account_id, t.to_account_id, t.date, t.amount, t.status, t.category, t.notes
		 FROM transfers t JOIN months m ON m.id = t.month_id
		 WHERE t.user_id = ? AND t.status = 'BOOKED'
		   AND (m.year < ? OR (m.year = ? AND m.month <= ?))
		 ORDER BY m.year, m.month, t.date`, userID, year, year, month)
}

// ─── Reserves ───────────────────────────────────────────────────────

func (r *SQLiteRepository) CreateReserve(ctx context.Context, rv core.Reserve) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reserves (id, user_id, month_id, account_id, date, amount, status, category, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rv.ID, rv.UserID, rv.MonthID, rv.AccountID, rv.Date,
		rv.Amount.String(), string(rv.Status), rv.Category, rv.Notes)
	if err != nil {
		return fmt.Errorf("insert reserve: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateReserve(ctx context.Context, rv core.Reserve) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reserves
		 SET month_id = ?, account_id = ?, date = ?, amount = ?, status = ?, category = ?, notes = ?
		 WHERE id = ?`,
		rv.MonthID, rv.AccountID, rv.Date, rv.Amount.String(),
		string(rv.Status), rv.Category, rv.Notes, rv.ID)
	if err != nil {
		return fmt.Errorf("update reserve: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteReserve(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reserves WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reserve: %w", err)
	}
	return nil
}

const reserveCols = `id, user_id, month_id, account_id, date, amount, status, category, notes`

func scanReserve(s interface{ Scan(...any) error }) (core.Reserve, error) {
	var (
		rv     core.Reserve
		amount string
	)
	err := s.Scan(&rv.ID, &rv.UserID, &rv.MonthID, &rv.AccountID, &rv.Date,
		&amount, &rv.Status, &rv.Category, &rv.Notes)
	if err != nil {
		return core.Reserve{}, notFound(err)
	}
	if rv.Amount, err = parseDec(amount); err != nil {
		return core.Reserve{}, fmt.Errorf("parse amount: %w", err)
	}
	return rv, nil
}

func (r *SQLiteRepository) ReserveByID(ctx context.Context, id string) (core.Reserve, error) {
	return scanReserve(r.db.QueryRowContext(ctx,
		`SELECT `+reserveCols+` FROM reserves WHERE id = ?`, id))
}

func (r *SQLiteRepository) queryReserves(ctx context.Context, query string, args ...any) ([]core.Reserve, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reserves: %w", err)
	}
	defer rows.Close()

	var reserves []core.Reserve
	for rows.Next() {
		rv, err := scanReserve(rows)
		if err != nil {
			return nil, err
		}
		reserves = append(reserves, rv)
	}
	return reserves, rows.Err()
}

func (r *SQLiteRepository) ReservesByMonth(ctx context.Context, userID, monthID string) ([]core.Reserve, error) {
	return r.queryReserves(ctx,
		`SELECT `+reserveCols+` FROM reserves
		 WHERE user_id = ? AND month_id = ? ORDER BY date`, userID, monthID)
}

func (r *SQLiteRepository) ReservesThrough(ctx context.Context, userID string, year, month int) ([]core.Reserve, error) {
	return r.queryReserves(ctx,
		`SELECT t.id, t.user_id, t.month_id, t.account_id, t.date, t.amount, t.status, t.category, t.notes
		 FROM reserves t JOIN months m ON m.id = t.month_id
		 WHERE t.user_id = ? AND t.status = 'BOOKED'
		   AND (m.year < ? OR (m.year = ? AND m.month <= ?))
		 ORDER BY m.year, m.month, t.date`, userID, year, year, month)
}

func (r *SQLiteRepository) BookedReservesForAccount(ctx context.Context, accountID string) ([]core.Reserve, error) {
	return r.queryReserves(ctx,
		`SELECT `+reserveCols+` FROM reserves
		 WHERE account_id = ? AND status = 'BOOKED' ORDER BY date`, accountID)
}

func (r *SQLiteRepository) ReserveCategories(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM reserves WHERE user_id = ? ORDER BY category COLLATE NOCASE`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reserve categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan reserve category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ─── Plan and wealth snapshots ──────────────────────────────────────

func (r *SQLiteRepository) CreatePlanSnapshot(ctx context.Context, p core.PlanSnapshot) error {
	var cashflow any
	if p.PlannedCashflow != nil {
		cashflow = p.PlannedCashflow.String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plan_snapshots (id, user_id, year, month, planned_networth, planned_cashflow)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Year, p.Month, p.PlannedNetWorth.String(), cashflow)
	if err != nil {
		return fmt.Errorf("insert plan snapshot: %w", err)
	}
	return nil
}

func scanPlan(s interface{ Scan(...any) error }) (core.PlanSnapshot, error) {
	var (
		p        core.PlanSnapshot
		networth string
		cashflow sql.NullString
	)
	err := s.Scan(&p.ID, &p.UserID, &p.Year, &p.Month, &networth, &cashflow)
	if err != nil {
		return core.PlanSnapshot{}, notFound(err)
	}
	if p.PlannedNetWorth, err = parseDec(networth); err != nil {
		return core.PlanSnapshot{}, fmt.Errorf("parse planned net worth: %w", err)
	}
	if cashflow.Valid {
		d, err := parseDec(cashflow.String)
		if err != nil {
			return core.PlanSnapshot{}, fmt.Errorf("parse planned cashflow: %w", err)
		}
		p.PlannedCashflow = &d
	}
	return p, nil
}

func (r *SQLiteRepository) PlanSnapshotByPeriod(ctx context.Context, userID string, year, month int) (core.PlanSnapshot, error) {
	return scanPlan(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, year, month, planned_networth, planned_cashflow
		 FROM plan_snapshots WHERE user_id = ? AND year = ? AND month = ?`, userID, year, month))
}

func (r *SQLiteRepository) PlanSnapshotsByUser(ctx context.Context, userID string) ([]core.PlanSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, year, month, planned_networth, planned_cashflow
		 FROM plan_snapshots WHERE user_id = ? ORDER BY year, month`, userID)
	if err != nil {
		return nil, fmt.Errorf("query plan snapshots: %w", err)
	}
	defer rows.Close()

	var plans []core.PlanSnapshot
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanWealth(s interface{ Scan(...any) error }) (core.WealthSnapshot, error) {
	var (
		w                                                 core.WealthSnapshot
		liquid, invested, reserved, liabilities, networth string
	)
	err := s.Scan(&w.ID, &w.UserID, &w.Date, &liquid, &invested, &reserved, &liabilities, &networth)
	if err != nil {
		return core.WealthSnapshot{}, notFound(err)
	}
	if w.LiquidAssets, err = parseDec(liquid); err != nil {
		return core.WealthSnapshot{}, fmt.Errorf("parse liquid: %w", err)
	}
	if w.Investments, err = parseDec(invested); err != nil {
		return core.WealthSnapshot{}, fmt.Errorf("parse invested: %w", err)
	}
	if w.Reserves, err = parseDec(reserved); err != nil {
		return core.WealthSnapshot{}, fmt.Errorf("parse reserved: %w", err)
	}
	if w.Liabilities, err = parseDec(liabilities); err != nil {
		return core.WealthSnapshot{}, fmt.Errorf("parse liabilities: %w", err)
	}
	if w.TotalNetWorth, err = parseDec(networth); err != nil {
		return core.WealthSnapshot{}, fmt.Errorf("parse networth: %w", err)
	}
	return w, nil
}

func (r *SQLiteRepository) WealthSnapshotsByUser(ctx context.Context, userID string) ([]core.WealthSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, liquid, invested, reserved, liabilities, networth
		 FROM wealth_snapshots WHERE user_id = ? ORDER BY date`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wealth snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []core.WealthSnapshot
	for rows.Next() {
		w, err := scanWealth(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, w)
	}
	return snapshots, rows.Err()
}

func (r *SQLiteRepository) UpsertWealthSnapshot(ctx context.Context, snap core.WealthSnapshot) error {
	// One snapshot per calendar month. Date comparison happens in Go
	// because the stored timestamp format is driver-defined.
	existing, err := r.WealthSnapshotsByUser(ctx, snap.UserID)
	if err != nil {
		return err
	}
	var replaceID string
	for _, e := range existing {
		if sameCalendarMonth(e.Date, snap.Date) {
			replaceID = e.ID
			break
		}
	}
	if replaceID != "" {
		_, err := r.db.ExecContext(ctx,
			`UPDATE wealth_snapshots SET date = ?, liquid = ?, invested = ?, reserved = ?, liabilities = ?, networth = ? WHERE id = ?`,
			snap.Date, snap.LiquidAssets.String(), snap.Investments.String(),
			snap.Reserves.String(), snap.Liabilities.String(), snap.TotalNetWorth.String(), replaceID)
		if err != nil {
			return fmt.Errorf("update wealth snapshot: %w", err)
		}
		return nil
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO wealth_snapshots (id, user_id, date, liquid, invested, reserved, liabilities, networth)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.UserID, snap.Date, snap.LiquidAssets.String(),
		snap.Investments.String(), snap.Reserves.String(), snap.Liabilities.String(),
		snap.TotalNetWorth.String())
	if err != nil {
		return fmt.Errorf("insert wealth snapshot: %w", err)
	}
	return nil
}

func sameCalendarMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
