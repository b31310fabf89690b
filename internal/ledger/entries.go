package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"haybase/internal/core"
)

// ─── Months ─────────────────────────────────────────────────────────

type MonthInput struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (s *Service) CreateMonth(ctx context.Context, callerID string, in MonthInput) (core.Month, error) {
	if callerID == "" {
		return core.Month{}, core.Unauthenticated()
	}
	m := core.Month{
		ID:     uuid.NewString(),
		UserID: callerID,
		Year:   in.Year,
		Month:  in.Month,
		Status: core.MonthOpen,
	}
	if err := m.Validate(); err != nil {
		return core.Month{}, core.ValidationErr(err)
	}
	if _, err := s.store.MonthByPeriod(ctx, callerID, in.Year, in.Month); err == nil {
		return core.Month{}, core.Validationf("month %d/%d already exists", in.Month, in.Year)
	} else if !errors.Is(err, ErrNotFound) {
		return core.Month{}, fmt.Errorf("check month: %w", err)
	}
	if err := s.store.CreateMonth(ctx, m); err != nil {
		return core.Month{}, fmt.Errorf("create month: %w", err)
	}
	s.mutated(ctx, callerID, "month", "create")
	return m, nil
}

func (s *Service) ListMonths(ctx context.Context, callerID string) ([]core.Month, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	return s.store.MonthsByUser(ctx, callerID)
}

// ownedMonth loads a month and verifies the caller owns it; used as a
// foreign-key check on create, so failure is a validation error.
func (s *Service) ownedMonth(ctx context.Context, callerID, monthID string) (core.Month, error) {
	m, err := s.store.MonthByID(ctx, monthID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.Month{}, core.Validationf("invalid month")
		}
		return core.Month{}, fmt.Errorf("load month: %w", err)
	}
	if m.UserID != callerID {
		return core.Month{}, core.Validationf("invalid month")
	}
	return m, nil
}

func (s *Service) ownedAccount(ctx context.Context, callerID, accountID string) (core.Account, error) {
	a, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.Account{}, core.Validationf("invalid account")
		}
		return core.Account{}, fmt.Errorf("load account: %w", err)
	}
	if a.UserID != callerID {
		return core.Account{}, core.Validationf("invalid account")
	}
	return a, nil
}

// ─── Transactions ───────────────────────────────────────────────────

type TransactionInput struct {
	MonthID   string           `json:"monthId"`
	AccountID string           `json:"accountId"`
	Date      time.Time        `json:"date"`
	Amount    decimal.Decimal  `json:"amount"` // signed; sign picks INCOME/EXPENSE
	Status    core.EntryStatus `json:"status"`
	Category  string           `json:"category"`
	Notes     string           `json:"notes"`
}

func (s *Service) CreateTransaction(ctx context.Context, callerID string, in TransactionInput) (core.Transaction, error) {
	if callerID == "" {
		return core.Transaction{}, core.Unauthenticated()
	}
	if _, err := s.ownedMonth(ctx, callerID, in.MonthID); err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.ownedAccount(ctx, callerID, in.AccountID); err != nil {
		return core.Transaction{}, err
	}
	typ, amount := core.DeriveTransaction(in.Amount)
	t := core.Transaction{
		ID:        uuid.NewString(),
		UserID:    callerID,
		MonthID:   in.MonthID,
		AccountID: in.AccountID,
		Date:      in.Date,
		Amount:    amount,
		Type:      typ,
		Status:    defaultStatus(in.Status),
		Category:  in.Category,
		Notes:     in.Notes,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, core.ValidationErr(err)
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"amount", t.Amount.String(),
		"transaction_type", string(t.Type),
		"component", "ledger")
	s.mutated(ctx, callerID, "transaction", "create")
	return t, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, callerID, id string, in TransactionInput) (core.Transaction, error) {
	if callerID == "" {
		return core.Transaction{}, core.Unauthenticated()
	}
	existing, err := s.store.TransactionByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return core.Transaction{}, err
	}
	if in.MonthID == "" {
		in.MonthID = existing.MonthID
	}
	if _, err := s.ownedMonth(ctx, callerID, in.MonthID); err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.ownedAccount(ctx, callerID, in.AccountID); err != nil {
		return core.Transaction{}, err
	}
	// The type is re-derived from the signed amount on every update.
	typ, amount := core.DeriveTransaction(in.Amount)
	existing.MonthID = in.MonthID
	existing.AccountID = in.AccountID
	existing.Date = in.Date
	existing.Amount = amount
	existing.Type = typ
	existing.Status = defaultStatus(in.Status)
	existing.Category = in.Category
	existing.Notes = in.Notes
	if err := existing.Validate(); err != nil {
		return core.Transaction{}, core.ValidationErr(err)
	}
	if err := s.store.UpdateTransaction(ctx, existing); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.mutated(ctx, callerID, "transaction", "update")
	return existing, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, callerID, id string) error {
	if callerID == "" {
		return core.Unauthenticated()
	}
	existing, err := s.store.TransactionByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.mutated(ctx, callerID, "transaction", "delete")
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, callerID, monthID string) ([]core.Transaction, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	if _, err := s.ownedMonth(ctx, callerID, monthID); err != nil {
		return nil, err
	}
	return s.store.TransactionsByMonth(ctx, callerID, monthID)
}

// ─── Transfers ──────────────────────────────────────────────────────

type TransferInput struct {
	MonthID       string           `json:"monthId"`
	FromAccountID string           `json:"fromAccountId"`
	ToAccountID   string           `json:"toAccountId"`
	Date          time.Time        `json:"date"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        core.EntryStatus `json:"status"`
	Category      string           `json:"category"`
	Notes         string           `json:"notes"`
}

func (s *Service) CreateTransfer(ctx context.Context, callerID string, in TransferInput) (core.Transfer, error) {
	if callerID == "" {
		return core.Transfer{}, core.Unauthenticated()
	}
	if in.FromAccountID == in.ToAccountID {
		return core.Transfer{}, core.Validationf("source and destination account must differ")
	}
	if _, err := s.ownedMonth(ctx, callerID, in.MonthID); err != nil {
		return core.Transfer{}, err
	}
	if _, err := s.ownedAccount(ctx, callerID, in.FromAccountID); err != nil {
		return core.Transfer{}, err
	}
	if _, err := s.ownedAccount(ctx, callerID, in.ToAccountID); err != nil {
		return core.Transfer{}, err
	}
	t := core.Transfer{
		ID:            uuid.NewString(),
		UserID:        callerID,
		MonthID:       in.MonthID,
		FromAccountID: in.FromAccountID,
		ToAccountID:   in.ToAccountID,
		Date:          in.Date,
		Amount:        in.Amount,
		Status:        defaultStatus(in.Status),
		Category:      defaultCategory(in.Category, "Transfer"),
		Notes:         in.Notes,
	}
	if err := t.Validate(); err != nil {
		return core.Transfer{}, core.ValidationErr(err)
	}
	if err := s.store.CreateTransfer(ctx, t); err != nil {
		return core.Transfer{}, fmt.Errorf("create transfer: %w", err)
	}
	s.mutated(ctx, callerID, "transfer", "create")
	return t, nil
}

func (s *Service) UpdateTransfer(ctx context.Context, callerID, id string, in TransferInput) (core.Transfer, error) {
	if callerID == "" {
		return core.Transfer{}, core.Unauthenticated()
	}
	existing, err := s.store.TransferByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return core.Transfer{}, err
	}
	if in.FromAccountID == in.ToAccountID {
		return core.Transfer{}, core.Validationf("source and destination account must differ")
	}
	if in.MonthID == "" {
		in.MonthID = existing.MonthID
	}
	if _, err := s.ownedMonth(ctx, callerID, in.MonthID); err != nil {
		return core.Transfer{}, err
	}
	if _, err := s.ownedAccount(ctx, callerID, in.FromAccountID); err != nil {
		return core.Transfer{}, err
	}
	if _, err := s.ownedAccount(ctx, callerID, in.ToAccountID); err != nil {
		return core.Transfer{}, err
	}
	existing.MonthID = in.MonthID
	existing.FromAccountID = in.FromAccountID
	existing.ToAccountID = in.ToAccountID
	existing.Date = in.Date
	existing.Amount = in.Amount
	existing.Status = defaultStatus(in.Status)
	existing.Category = defaultCategory(in.Category, "Transfer")
	existing.Notes = in.Notes
	if err := existing.Validate(); err != nil {
		return core.Transfer{}, core.ValidationErr(err)
	}
	if err := s.store.UpdateTransfer(ctx, existing); err != nil {
		return core.Transfer{}, fmt.Errorf("update transfer: %w", err)
	}
	s.mutated(ctx, callerID, "transfer", "update")
	return existing, nil
}

func (s *Service) DeleteTransfer(ctx context.Context, callerID, id string) error {
	if callerID == "" {
		return core.Unauthenticated()
	}
	existing, err := s.store.TransferByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return err
	}
	if err := s.store.DeleteTransfer(ctx, id); err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	s.mutated(ctx, callerID, "transfer", "delete")
	return nil
}

func (s *Service) ListTransfers(ctx context.Context, callerID, monthID string) ([]core.Transfer, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	if _, err := s.ownedMonth(ctx, callerID, monthID); err != nil {
		return nil, err
	}
	return s.store.TransfersByMonth(ctx, callerID, monthID)
}

// ─── Reserves ───────────────────────────────────────────────────────

type ReserveInput struct {
	MonthID   string           `json:"monthId"`
	AccountID string           `json:"accountId"`
	Date      time.Time        `json:"date"`
	Amount    decimal.Decimal  `json:"amount"` // positive contribution, negative release
	Status    core.EntryStatus `json:"status"`
	Category  string           `json:"category"`
	Notes     string           `json:"notes"`
}

// reserveAccount verifies the target account belongs to the caller and
// sits in the Reserve group.
func (s *Service) reserveAccount(ctx context.Context, callerID, accountID string) (core.Account, error) {
	a, err := s.ownedAccount(ctx, callerID, accountID)
	if err != nil {
		return core.Account{}, err
	}
	grp, err := s.store.AccountGroupByID(ctx, a.GroupID)
	if err != nil {
		return core.Account{}, fmt.Errorf("load account group: %w", err)
	}
	if grp.Class() != core.ClassReserve {
		return core.Account{}, core.Validationf("only reserve accounts can hold reserve entries")
	}
	return a, nil
}

// reserveAvailable computes initial balance plus all booked reserves,
// optionally leaving one reserve out (for updates).
//
// The read-then-write here is racy under concurrent creates on the same
// account; last write wins at the storage layer.
func (s *Service) reserveAvailable(ctx context.Context, account core.Account, excludeID string) (decimal.Decimal, error) {
	existing, err := s.store.BookedReservesForAccount(ctx, account.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load booked reserves: %w", err)
	}
	available := account.InitialBalance
	for _, r := range existing {
		if r.ID == excludeID {
			continue
		}
		available = available.Add(r.Amount)
	}
	return available, nil
}

func (s *Service) CreateReserve(ctx context.Context, callerID string, in ReserveInput) (core.Reserve, error) {
	if callerID == "" {
		return core.Reserve{}, core.Unauthenticated()
	}
	if _, err := s.ownedMonth(ctx, callerID, in.MonthID); err != nil {
		return core.Reserve{}, err
	}
	account, err := s.reserveAccount(ctx, callerID, in.AccountID)
	if err != nil {
		return core.Reserve{}, err
	}
	status := defaultStatus(in.Status)
	// Releases are checked against the booked funds regardless of the
	// entry's own status: a planned over-release is still an error.
	if in.Amount.IsNegative() {
		available, err := s.reserveAvailable(ctx, account, "")
		if err != nil {
			return core.Reserve{}, err
		}
		if available.Add(in.Amount).IsNegative() {
			return core.Reserve{}, core.Validationf("release would overdraw the reserve, available: %s", core.FormatEUR(available))
		}
	}
	r := core.Reserve{
		ID:        uuid.NewString(),
		UserID:    callerID,
		MonthID:   in.MonthID,
		AccountID: in.AccountID,
		Date:      in.Date,
		Amount:    in.Amount,
		Status:    status,
		Category:  in.Category,
		Notes:     in.Notes,
	}
	if err := r.Validate(); err != nil {
		return core.Reserve{}, core.ValidationErr(err)
	}
	if err := s.store.CreateReserve(ctx, r); err != nil {
		return core.Reserve{}, fmt.Errorf("create reserve: %w", err)
	}
	s.mutated(ctx, callerID, "reserve", "create")
	return r, nil
}

func (s *Service) UpdateReserve(ctx context.Context, callerID, id string, in ReserveInput) (core.Reserve, error) {
	if callerID == "" {
		return core.Reserve{}, core.Unauthenticated()
	}
	existing, err := s.store.ReserveByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return core.Reserve{}, err
	}
	if in.MonthID == "" {
		in.MonthID = existing.MonthID
	}
	if _, err := s.ownedMonth(ctx, callerID, in.MonthID); err != nil {
		return core.Reserve{}, err
	}
	account, err := s.reserveAccount(ctx, callerID, in.AccountID)
	if err != nil {
		return core.Reserve{}, err
	}
	status := defaultStatus(in.Status)
	if in.Amount.IsNegative() {
		available, err := s.reserveAvailable(ctx, account, existing.ID)
		if err != nil {
			return core.Reserve{}, err
		}
		if available.Add(in.Amount).IsNegative() {
			return core.Reserve{}, core.Validationf("release would overdraw the reserve, available: %s", core.FormatEUR(available))
		}
	}
	existing.MonthID = in.MonthID
	existing.AccountID = in.AccountID
	existing.Date = in.Date
	existing.Amount = in.Amount
	existing.Status = status
	existing.Category = in.Category
	existing.Notes = in.Notes
	if err := existing.Validate(); err != nil {
		return core.Reserve{}, core.ValidationErr(err)
	}
	if err := s.store.UpdateReserve(ctx, existing); err != nil {
		return core.Reserve{}, fmt.Errorf("update reserve: %w", err)
	}
	s.mutated(ctx, callerID, "reserve", "update")
	return existing, nil
}

func (s *Service) DeleteReserve(ctx context.Context, callerID, id string) error {
	if callerID == "" {
		return core.Unauthenticated()
	}
	existing, err := s.store.ReserveByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return err
	}
	if err := s.store.DeleteReserve(ctx, id); err != nil {
		return fmt.Errorf("delete reserve: %w", err)
	}
	s.mutated(ctx, callerID, "reserve", "delete")
	return nil
}

func (s *Service) ListReserves(ctx context.Context, callerID, monthID string) ([]core.Reserve, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	if _, err := s.ownedMonth(ctx, callerID, monthID); err != nil {
		return nil, err
	}
	return s.store.ReservesByMonth(ctx, callerID, monthID)
}

func (s *Service) ListReserveCategories(ctx context.Context, callerID string) ([]string, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	return s.store.ReserveCategories(ctx, callerID)
}

// ─── Plan snapshots ─────────────────────────────────────────────────

type PlanInput struct {
	Year            int              `json:"year"`
	Month           int              `json:"month"`
	PlannedNetWorth decimal.Decimal  `json:"plannedNetWorth"`
	PlannedCashflow *decimal.Decimal `json:"plannedCashflow"`
}

// CreatePlanSnapshot records a planning baseline. Plans are immutable:
// there is no update or delete operation.
func (s *Service) CreatePlanSnapshot(ctx context.Context, callerID string, in PlanInput) (core.PlanSnapshot, error) {
	if callerID == "" {
		return core.PlanSnapshot{}, core.Unauthenticated()
	}
	p := core.PlanSnapshot{
		ID:              uuid.NewString(),
		UserID:          callerID,
		Year:            in.Year,
		Month:           in.Month,
		PlannedNetWorth: in.PlannedNetWorth,
		PlannedCashflow: in.PlannedCashflow,
	}
	if err := p.Validate(); err != nil {
		return core.PlanSnapshot{}, core.ValidationErr(err)
	}
	if _, err := s.store.PlanSnapshotByPeriod(ctx, callerID, in.Year, in.Month); err == nil {
		return core.PlanSnapshot{}, core.Validationf("a plan for %d/%d already exists", in.Month, in.Year)
	} else if !errors.Is(err, ErrNotFound) {
		return core.PlanSnapshot{}, fmt.Errorf("check plan: %w", err)
	}
	if err := s.store.CreatePlanSnapshot(ctx, p); err != nil {
		return core.PlanSnapshot{}, fmt.Errorf("create plan snapshot: %w", err)
	}
	s.mutated(ctx, callerID, "plan_snapshot", "create")
	return p, nil
}

func defaultStatus(s core.EntryStatus) core.EntryStatus {
	if s == "" {
		return core.StatusBooked
	}
	return s
}

func defaultCategory(c, fallback string) string {
	if c == "" {
		return fallback
	}
	return c
}
