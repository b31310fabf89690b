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
	"haybase/internal/log"
	"haybase/internal/metrics"
)

// Service implements the guarded mutations and the report queries.
type Service struct {
	store  Store
	events EventPublisher // nil when AMQP is not configured
	now    func() time.Time
}

func NewService(store Store, events EventPublisher) *Service {
	return &Service{store: store, events: events, now: time.Now}
}

// notify publishes a ledger-changed event. Best-effort: the mutation
// already succeeded, so failures are only logged.
func (s *Service) notify(ctx context.Context, userID string) {
	if s.events == nil {
		return
	}
	if err := s.events.LedgerChanged(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger change",
			log.FieldError, err,
			log.FieldUserID, userID,
			log.FieldComponent, log.ComponentLedger)
	}
}

func (s *Service) mutated(ctx context.Context, userID, entity, verb string) {
	metrics.MutationsTotal.WithLabelValues(entity, verb).Inc()
	s.notify(ctx, userID)
}

// ownedRow converts a lookup result into the non-leaking guard answer:
// missing rows and foreign rows are both Forbidden.
func ownedRow(callerID, rowUserID string, err error) error {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.Forbidden()
		}
		return fmt.Errorf("load row: %w", err)
	}
	if rowUserID != callerID {
		return core.Forbidden()
	}
	return nil
}

// ─── Accounts ───────────────────────────────────────────────────────

type AccountInput struct {
	Name           string          `json:"name"`
	TypeID         string          `json:"typeId"`
	GroupID        string          `json:"groupId"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

// checkAccountRefs verifies the referenced type and group exist and
// belong to the caller.
func (s *Service) checkAccountRefs(ctx context.Context, callerID, typeID, groupID string) error {
	typ, err := s.store.AccountTypeByID(ctx, typeID)
	if err != nil || typ.UserID != callerID {
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("load account type: %w", err)
		}
		return core.Validationf("invalid account type")
	}
	grp, err := s.store.AccountGroupByID(ctx, groupID)
	if err != nil || grp.UserID != callerID {
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("load account group: %w", err)
		}
		return core.Validationf("invalid account group")
	}
	return nil
}

func (s *Service) CreateAccount(ctx context.Context, callerID string, in AccountInput) (core.Account, error) {
	if callerID == "" {
		return core.Account{}, core.Unauthenticated()
	}
	a := core.Account{
		ID:             uuid.NewString(),
		UserID:         callerID,
		Name:           in.Name,
		TypeID:         in.TypeID,
		GroupID:        in.GroupID,
		InitialBalance: in.InitialBalance,
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, core.ValidationErr(err)
	}
	if err := s.checkAccountRefs(ctx, callerID, in.TypeID, in.GroupID); err != nil {
		return core.Account{}, err
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account created",
		"account_id", a.ID, log.FieldUserID, callerID, log.FieldComponent, log.ComponentLedger)
	s.mutated(ctx, callerID, "account", "create")
	return a, nil
}

func (s *Service) UpdateAccount(ctx context.Context, callerID, id string, in AccountInput) (core.Account, error) {
	if callerID == "" {
		return core.Account{}, core.Unauthenticated()
	}
	existing, err := s.store.AccountByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return core.Account{}, err
	}
	existing.Name = in.Name
	existing.TypeID = in.TypeID
	existing.GroupID = in.GroupID
	existing.InitialBalance = in.InitialBalance
	if err := existing.Validate(); err != nil {
		return core.Account{}, core.ValidationErr(err)
	}
	if err := s.checkAccountRefs(ctx, callerID, in.TypeID, in.GroupID); err != nil {
		return core.Account{}, err
	}
	if err := s.store.UpdateAccount(ctx, existing); err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}
	s.mutated(ctx, callerID, "account", "update")
	return existing, nil
}

func (s *Service) DeleteAccount(ctx context.Context, callerID, id string) error {
	if callerID == "" {
		return core.Unauthenticated()
	}
	existing, err := s.store.AccountByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return err
	}
	n, err := s.store.CountAccountUsage(ctx, id)
	if err != nil {
		return fmt.Errorf("count account usage: %w", err)
	}
	if n > 0 {
		return core.Conflictf("account is still referenced by %d booking(s)", n)
	}
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.mutated(ctx, callerID, "account", "delete")
	return nil
}

func (s *Service) ListAccounts(ctx context.Context, callerID string) ([]core.ClassifiedAccount, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	accounts, err := s.store.AccountsByUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// ─── Account types and groups ───────────────────────────────────────

type TaxonomyInput struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (s *Service) CreateAccountType(ctx context.Context, callerID string, in TaxonomyInput) (core.AccountType, error) {
	if callerID == "" {
		return core.AccountType{}, core.Unauthenticated()
	}
	t := core.AccountType{
		ID:     uuid.NewString(),
		UserID: callerID,
		Name:   in.Name,
		Code:   core.NormalizeCode(in.Code),
	}
	if err := t.Validate(); err != nil {
		return core.AccountType{}, core.ValidationErr(err)
	}
	if _, err := s.store.AccountTypeByCode(ctx, callerID, t.Code); err == nil {
		return core.AccountType{}, core.Validationf("an account type with code %s already exists", t.Code)
	} else if !errors.Is(err, ErrNotFound) {
		return core.AccountType{}, fmt.Errorf("check type code: %w", err)
	}
	if err := s.store.CreateAccountType(ctx, t); err != nil {
		return core.AccountType{}, fmt.Errorf("create account type: %w", err)
	}
	s.mutated(ctx, callerID, "account_type", "create")
	return t, nil
}

func (s *Service) UpdateAccountType(ctx context.Context, callerID, id string, in TaxonomyInput) (core.AccountType, error) {
	if callerID == "" {
		return core.AccountType{}, core.Unauthenticated()
	}
	existing, err := s.store.AccountTypeByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return core.AccountType{}, err
	}
	code := core.NormalizeCode(in.Code)
	if code != existing.Code {
		if other, err := s.store.AccountTypeByCode(ctx, callerID, code); err == nil && other.ID != id {
			return core.AccountType{}, core.Validationf("an account type with code %s already exists", code)
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return core.AccountType{}, fmt.Errorf("check type code: %w", err)
		}
	}
	existing.Name = in.Name
	existing.Code = code
	if err := existing.Validate(); err != nil {
		return core.AccountType{}, core.ValidationErr(err)
	}
	if err := s.store.UpdateAccountType(ctx, existing); err != nil {
		return core.AccountType{}, fmt.Errorf("update account type: %w", err)
	}
	s.mutated(ctx, callerID, "account_type", "update")
	return existing, nil
}

func (s *Service) DeleteAccountType(ctx context.Context, callerID, id string) error {
	if callerID == "" {
		return core.Unauthenticated()
	}
	existing, err := s.store.AccountTypeByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return err
	}
	n, err := s.store.CountAccountsOfType(ctx, id)
	if err != nil {
		return fmt.Errorf("count accounts of type: %w", err)
	}
	if n > 0 {
		return core.Conflictf("account type is still used by %d account(s)", n)
	}
	if err := s.store.DeleteAccountType(ctx, id); err != nil {
		return fmt.Errorf("delete account type: %w", err)
	}
	s.mutated(ctx, callerID, "account_type", "delete")
	return nil
}

func (s *Service) ListAccountTypes(ctx context.Context, callerID string) ([]core.AccountType, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	return s.store.AccountTypesByUser(ctx, callerID)
}

func (s *Service) CreateAccountGroup(ctx context.Context, callerID string, in TaxonomyInput) (core.AccountGroup, error) {
	if callerID == "" {
		return core.AccountGroup{}, core.Unauthenticated()
	}
	g := core.AccountGroup{
		ID:     uuid.NewString(),
		UserID: callerID,
		Name:   in.Name,
		Code:   core.NormalizeCode(in.Code),
	}
	if err := g.Validate(); err != nil {
		return core.AccountGroup{}, core.ValidationErr(err)
	}
	if _, err := s.store.AccountGroupByCode(ctx, callerID, g.Code); err == nil {
		return core.AccountGroup{}, core.Validationf("an account group with code %s already exists", g.Code)
	} else if !errors.Is(err, ErrNotFound) {
		return core.AccountGroup{}, fmt.Errorf("check group code: %w", err)
	}
	if err := s.store.CreateAccountGroup(ctx, g); err != nil {
		return core.AccountGroup{}, fmt.Errorf("create account group: %w", err)
	}
	s.mutated(ctx, callerID, "account_group", "create")
	return g, nil
}

func (s *Service) UpdateAccountGroup(ctx context.Context, callerID, id string, in TaxonomyInput) (core.AccountGroup, error) {
	if callerID == "" {
		return core.AccountGroup{}, core.Unauthenticated()
	}
	existing, err := s.store.AccountGroupByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return core.AccountGroup{}, err
	}
	code := core.NormalizeCode(in.Code)
	if code != existing.Code {
		if other, err := s.store.AccountGroupByCode(ctx, callerID, code); err == nil && other.ID != id {
			return core.AccountGroup{}, core.Validationf("an account group with code %s already exists", code)
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return core.AccountGroup{}, fmt.Errorf("check group code: %w", err)
		}
	}
	existing.Name = in.Name
	existing.Code = code
	if err := existing.Validate(); err != nil {
		return core.AccountGroup{}, core.ValidationErr(err)
	}
	if err := s.store.UpdateAccountGroup(ctx, existing); err != nil {
		return core.AccountGroup{}, fmt.Errorf("update account group: %w", err)
	}
	s.mutated(ctx, callerID, "account_group", "update")
	return existing, nil
}

func (s *Service) DeleteAccountGroup(ctx context.Context, callerID, id string) error {
	if callerID == "" {
		return core.Unauthenticated()
	}
	existing, err := s.store.AccountGroupByID(ctx, id)
	if err := ownedRow(callerID, existing.UserID, err); err != nil {
		return err
	}
	n, err := s.store.CountAccountsInGroup(ctx, id)
	if err != nil {
		return fmt.Errorf("count accounts in group: %w", err)
	}
	if n > 0 {
		return core.Conflictf("account group is still used by %d account(s)", n)
	}
	if err := s.store.DeleteAccountGroup(ctx, id); err != nil {
		return fmt.Errorf("delete account group: %w", err)
	}
	s.mutated(ctx, callerID, "account_group", "delete")
	return nil
}

func (s *Service) ListAccountGroups(ctx context.Context, callerID string) ([]core.AccountGroup, error) {
	if callerID == "" {
		return nil, core.Unauthenticated()
	}
	return s.store.AccountGroupsByUser(ctx, callerID)
}
