// Package ledger holds the mutation guards and report queries of the
// application. All operations take the caller's identity and enforce
// authentication, ownership and referential rules before touching the
// store; the store itself is a capability interface so tests and the
// memory backend can stand in for SQLite.
package ledger

import (
	"context"
	"errors"

	"haybase/internal/core"
)

// ErrNotFound is returned by stores when no row matches. The service
// translates it into Forbidden for owner-scoped lookups so a caller
// cannot distinguish a foreign row from a missing one.
var ErrNotFound = errors.New("row not found")

type UserStore interface {
	UserByName(ctx context.Context, name string) (core.User, error)
	UserByID(ctx context.Context, id string) (core.User, error)
}

type AccountStore interface {
	CreateAccount(ctx context.Context, a core.Account) error
	UpdateAccount(ctx context.Context, a core.Account) error
	DeleteAccount(ctx context.Context, id string) error
	AccountByID(ctx context.Context, id string) (core.Account, error)
	// AccountsByUser returns the user's accounts joined with their
	// groups, ordered by group name then account name.
	AccountsByUser(ctx context.Context, userID string) ([]core.ClassifiedAccount, error)
	// CountAccountUsage counts transactions, transfers and reserves
	// still referencing the account.
	CountAccountUsage(ctx context.Context, accountID string) (int, error)
}

type TaxonomyStore interface {
	CreateAccountType(ctx context.Context, t core.AccountType) error
	UpdateAccountType(ctx context.Context, t core.AccountType) error
	DeleteAccountType(ctx context.Context, id string) error
	AccountTypeByID(ctx context.Context, id string) (core.AccountType, error)
	AccountTypeByCode(ctx context.Context, userID, code string) (core.AccountType, error)
	AccountTypesByUser(ctx context.Context, userID string) ([]core.AccountType, error)
	CountAccountsOfType(ctx context.Context, typeID string) (int, error)

	CreateAccountGroup(ctx context.Context, g core.AccountGroup) error
	UpdateAccountGroup(ctx context.Context, g core.AccountGroup) error
	DeleteAccountGroup(ctx context.Context, id string) error
	AccountGroupByID(ctx context.Context, id string) (core.AccountGroup, error)
	AccountGroupByCode(ctx context.Context, userID, code string) (core.AccountGroup, error)
	AccountGroupsByUser(ctx context.Context, userID string) ([]core.AccountGroup, error)
	CountAccountsInGroup(ctx context.Context, groupID string) (int, error)
}

type MonthStore interface {
	CreateMonth(ctx context.Context, m core.Month) error
	MonthByID(ctx context.Context, id string) (core.Month, error)
	MonthByPeriod(ctx context.Context, userID string, year, month int) (core.Month, error)
	// MonthsByUser returns the user's months in chronological order.
	MonthsByUser(ctx context.Context, userID string) ([]core.Month, error)
}

type EntryStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	TransactionByID(ctx context.Context, id string) (core.Transaction, error)
	TransactionsByMonth(ctx context.Context, userID, monthID string) ([]core.Transaction, error)
	// TransactionsThrough returns booked transactions filed against any
	// month on or before (year, month), in chronological month order.
	TransactionsThrough(ctx context.Context, userID string, year, month int) ([]core.Transaction, error)

	CreateTransfer(ctx context.Context, t core.Transfer) error
	UpdateTransfer(ctx context.Context, t core.Transfer) error
	DeleteTransfer(ctx context.Context, id string) error
	TransferByID(ctx context.Context, id string) (core.Transfer, error)
	TransfersByMonth(ctx context.Context, userID, monthID string) ([]core.Transfer, error)
	TransfersThrough(ctx context.Context, userID string, year, month int) ([]core.Transfer, error)

	CreateReserve(ctx context.Context, r core.Reserve) error
	UpdateReserve(ctx context.Context, r core.Reserve) error
	DeleteReserve(ctx context.Context, id string) error
	ReserveByID(ctx context.Context, id string) (core.Reserve, error)
	ReservesByMonth(ctx context.Context, userID, monthID string) ([]core.Reserve, error)
	ReservesThrough(ctx context.Context, userID string, year, month int) ([]core.Reserve, error)
	// BookedReservesForAccount returns every booked reserve on the
	// account across all months, for the sufficiency check.
	BookedReservesForAccount(ctx context.Context, accountID string) ([]core.Reserve, error)
	ReserveCategories(ctx context.Context, userID string) ([]string, error)
}

type SnapshotStore interface {
	CreatePlanSnapshot(ctx context.Context, p core.PlanSnapshot) error
	PlanSnapshotByPeriod(ctx context.Context, userID string, year, month int) (core.PlanSnapshot, error)
	// PlanSnapshotsByUser returns plans in chronological order.
	PlanSnapshotsByUser(ctx context.Context, userID string) ([]core.PlanSnapshot, error)

	WealthSnapshotsByUser(ctx context.Context, userID string) ([]core.WealthSnapshot, error)
	// UpsertWealthSnapshot replaces the snapshot for the calendar month
	// of s.Date, or inserts it.
	UpsertWealthSnapshot(ctx context.Context, s core.WealthSnapshot) error
}

// Store is the full persistence capability the service depends on.
type Store interface {
	UserStore
	AccountStore
	TaxonomyStore
	MonthStore
	EntryStore
	SnapshotStore
}

// EventPublisher announces that a user's booked ledger changed. The
// snapshot worker listens on the other end. Publishing is best-effort;
// a failed publish never fails the mutation.
type EventPublisher interface {
	LedgerChanged(ctx context.Context, userID string) error
}
