// Package memory provides an in-memory ledger store. It backs the
// DATA_BACKEND=memory mode and the test suites; state is lost on
// shutdown.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"haybase/internal/core"
	"haybase/internal/ledger"
)

// Store implements ledger.Store with plain maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	users        map[string]core.User
	accounts     map[string]core.Account
	types        map[string]core.AccountType
	groups       map[string]core.AccountGroup
	months       map[string]core.Month
	transactions map[string]core.Transaction
	transfers    map[string]core.Transfer
	reserves     map[string]core.Reserve
	plans        map[string]core.PlanSnapshot
	wealth       map[string]core.WealthSnapshot
}

var _ ledger.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:        make(map[string]core.User),
		accounts:     make(map[string]core.Account),
		types:        make(map[string]core.AccountType),
		groups:       make(map[string]core.AccountGroup),
		months:       make(map[string]core.Month),
		transactions: make(map[string]core.Transaction),
		transfers:    make(map[string]core.Transfer),
		reserves:     make(map[string]core.Reserve),
		plans:        make(map[string]core.PlanSnapshot),
		wealth:       make(map[string]core.WealthSnapshot),
	}
}

// AddUser seeds a user; the memory backend has no registration flow.
func (s *Store) AddUser(u core.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) UserByName(_ context.Context, name string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Name == name {
			return u, nil
		}
	}
	return core.User{}, ledger.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, ledger.ErrNotFound
	}
	return u, nil
}

// ─── Accounts ───────────────────────────────────────────────────────

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return ledger.ErrNotFound
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.accounts, id)
	// Cascade bookings, mirroring the SQLite schema.
	for tid, t := range s.transactions {
		if t.AccountID == id {
			delete(s.transactions, tid)
		}
	}
	return nil
}

func (s *Store) AccountByID(_ context.Context, id string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, ledger.ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountsByUser(_ context.Context, userID string) ([]core.ClassifiedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ClassifiedAccount
	for _, a := range s.accounts {
		if a.UserID != userID {
			continue
		}
		out = append(out, core.ClassifiedAccount{Account: a, Group: s.groups[a.GroupID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group.Name != out[j].Group.Name {
			return out[i].Group.Name < out[j].Group.Name
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CountAccountUsage(_ context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			n++
		}
	}
	for _, t := range s.transfers {
		if t.FromAccountID == accountID || t.ToAccountID == accountID {
			n++
		}
	}
	for _, r := range s.reserves {
		if r.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

// ─── Account types ──────────────────────────────────────────────────

func (s *Store) CreateAccountType(_ context.Context, t core.AccountType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[t.ID] = t
	return nil
}

func (s *Store) UpdateAccountType(_ context.Context, t core.AccountType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[t.ID]; !ok {
		return ledger.ErrNotFound
	}
	s.types[t.ID] = t
	return nil
}

func (s *Store) DeleteAccountType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.types, id)
	return nil
}

func (s *Store) AccountTypeByID(_ context.Context, id string) (core.AccountType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[id]
	if !ok {
		return core.AccountType{}, ledger.ErrNotFound
	}
	return t, nil
}

func (s *Store) AccountTypeByCode(_ context.Context, userID, code string) (core.AccountType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.types {
		if t.UserID == userID && t.Code == code {
			return t, nil
		}
	}
	return core.AccountType{}, ledger.ErrNotFound
}

func (s *Store) AccountTypesByUser(_ context.Context, userID string) ([]core.AccountType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.AccountType
	for _, t := range s.types {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CountAccountsOfType(_ context.Context, typeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.accounts {
		if a.TypeID == typeID {
			n++
		}
	}
	return n, nil
}

// ─── Account groups ─────────────────────────────────────────────────

func (s *Store) CreateAccountGroup(_ context.Context, g core.AccountGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return nil
}

func (s *Store) UpdateAccountGroup(_ context.Context, g core.AccountGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; !ok {
		return ledger.ErrNotFound
	}
	s.groups[g.ID] = g
	return nil
}

func (s *Store) DeleteAccountGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

func (s *Store) AccountGroupByID(_ context.Context, id string) (core.AccountGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return core.AccountGroup{}, ledger.ErrNotFound
	}
	return g, nil
}

func (s *Store) AccountGroupByCode(_ context.Context, userID, code string) (core.AccountGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.UserID == userID && g.Code == code {
			return g, nil
		}
	}
	return core.AccountGroup{}, ledger.ErrNotFound
}

func (s *Store) AccountGroupsByUser(_ context.Context, userID string) ([]core.AccountGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.AccountGroup
	for _, g := range s.groups {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CountAccountsInGroup(_ context.Context, groupID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.accounts {
		if a.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

// ─── Months ─────────────────────────────────────────────────────────

func (s *Store) CreateMonth(_ context.Context, m core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.months[m.ID] = m
	return nil
}

func (s *Store) MonthByID(_ context.Context, id string) (core.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.months[id]
	if !ok {
		return core.Month{}, ledger.ErrNotFound
	}
	return m, nil
}

func (s *Store) MonthByPeriod(_ context.Context, userID string, year, month int) (core.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.months {
		if m.UserID == userID && m.Year == year && m.Month == month {
			return m, nil
		}
	}
	return core.Month{}, ledger.ErrNotFound
}

func (s *Store) MonthsByUser(_ context.Context, userID string) ([]core.Month, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Month
	for _, m := range s.months {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

// monthsThrough returns the ids of the user's months up to and
// including (year, month), in chronological order.
func (s *Store) monthsThrough(userID string, year, month int) []string {
	var months []core.Month
	for _, m := range s.months {
		if m.UserID == userID && core.MonthOnOrBefore(m.Year, m.Month, year, month) {
			months = append(months, m)
		}
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year < months[j].Year
		}
		return months[i].Month < months[j].Month
	})
	ids := make([]string, len(months))
	for i, m := range months {
		ids[i] = m.ID
	}
	return ids
}

// ─── Transactions ───────────────────────────────────────────────────

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; !ok {
		return ledger.ErrNotFound
	}
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) TransactionByID(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, ledger.ErrNotFound
	}
	return t, nil
}

func (s *Store) TransactionsByMonth(_ context.Context, userID, monthID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID && t.MonthID == monthID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) TransactionsThrough(_ context.Context, userID string, year, month int) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, monthID := range s.monthsThrough(userID, year, month) {
		for _, t := range s.transactions {
			if t.UserID == userID && t.MonthID == monthID && t.Status == core.StatusBooked {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// ─── Transfers ──────────────────────────────────────────────────────

func (s *Store) CreateTransfer(_ context.Context, t core.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[t.ID] = t
	return nil
}

func (s *Store) UpdateTransfer(_ context.Context, t core.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transfers[t.ID]; !ok {
		return ledger.ErrNotFound
	}
	s.transfers[t.ID] = t
	return nil
}

func (s *Store) DeleteTransfer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transfers[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.transfers, id)
	return nil
}

func (s *Store) TransferByID(_ context.Context, id string) (core.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[id]
	if !ok {
		return core.Transfer{}, ledger.ErrNotFound
	}
	return t, nil
}

func (s *Store) TransfersByMonth(_ context.Context, userID, monthID string) ([]core.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transfer
	for _, t := range s.transfers {
		if t.UserID == userID && t.MonthID == monthID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) TransfersThrough(_ context.Context, userID string, year, month int) ([]core.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transfer
	for _, monthID := range s.monthsThrough(userID, year, month) {
		for _, t := range s.transfers {
			if t.UserID == userID && t.MonthID == monthID && t.Status == core.StatusBooked {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// ─── Reserves ───────────────────────────────────────────────────────

func (s *Store) CreateReserve(_ context.Context, r core.Reserve) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserves[r.ID] = r
	return nil
}

func (s *Store) UpdateReserve(_ context.Context, r core.Reserve) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reserves[r.ID]; !ok {
		return ledger.ErrNotFound
	}
	s.reserves[r.ID] = r
	return nil
}

func (s *Store) DeleteReserve(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reserves[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.reserves, id)
	return nil
}

func (s *Store) ReserveByID(_ context.Context, id string) (core.Reserve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reserves[id]
	if !ok {
		return core.Reserve{}, ledger.ErrNotFound
	}
	return r, nil
}

func (s *Store) ReservesByMonth(_ context.Context, userID, monthID string) ([]core.Reserve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Reserve
	for _, r := range s.reserves {
		if r.UserID == userID && r.MonthID == monthID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ReservesThrough(_ context.Context, userID string, year, month int) ([]core.Reserve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Reserve
	for _, monthID := range s.monthsThrough(userID, year, month) {
		for _, r := range s.reserves {
			if r.UserID == userID && r.MonthID == monthID && r.Status == core.StatusBooked {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (s *Store) BookedReservesForAccount(_ context.Context, accountID string) ([]core.Reserve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Reserve
	for _, r := range s.reserves {
		if r.AccountID == accountID && r.Status == core.StatusBooked {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ReserveCategories(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range s.reserves {
		if r.UserID == userID && !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out, nil
}

// ─── Snapshots ──────────────────────────────────────────────────────

func (s *Store) CreatePlanSnapshot(_ context.Context, p core.PlanSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
	return nil
}

func (s *Store) PlanSnapshotByPeriod(_ context.Context, userID string, year, month int) (core.PlanSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.plans {
		if p.UserID == userID && p.Year == year && p.Month == month {
			return p, nil
		}
	}
	return core.PlanSnapshot{}, ledger.ErrNotFound
}

func (s *Store) PlanSnapshotsByUser(_ context.Context, userID string) ([]core.PlanSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.PlanSnapshot
	for _, p := range s.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (s *Store) WealthSnapshotsByUser(_ context.Context, userID string) ([]core.WealthSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.WealthSnapshot
	for _, w := range s.wealth {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) UpsertWealthSnapshot(_ context.Context, snap core.WealthSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.wealth {
		if w.UserID == snap.UserID && w.Date.Year() == snap.Date.Year() && w.Date.Month() == snap.Date.Month() {
			snap.ID = w.ID
			s.wealth[id] = snap
			return nil
		}
	}
	s.wealth[snap.ID] = snap
	return nil
}
