package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Well-known account group codes. Users may define further groups,
	// but only these participate in rollups.
	CodeLiquid     = "LIQUID"
	CodeInvestment = "INVESTMENT"
	CodeReserve    = "RESERVE"
	CodeLiability  = "LIABILITY"
)

// GroupClass is the behavioral classification of an account group.
// Balances of Reserve accounts are driven solely by reserve entries;
// Liquid and Investment accounts by transactions and transfers.
type GroupClass int

const (
	ClassUnknown GroupClass = iota
	ClassLiquid
	ClassInvestment
	ClassReserve
	ClassLiability
)

func (c GroupClass) String() string {
	switch c {
	case ClassLiquid:
		return CodeLiquid
	case ClassInvestment:
		return CodeInvestment
	case ClassReserve:
		return CodeReserve
	case ClassLiability:
		return CodeLiability
	default:
		return "UNKNOWN"
	}
}

// ClassifyGroupCode maps a group code to its classification. Codes are
// user-defined strings; anything outside the recognized set is Unknown
// and never contributes to rollups.
func ClassifyGroupCode(code string) GroupClass {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case CodeLiquid:
		return ClassLiquid
	case CodeInvestment:
		return ClassInvestment
	case CodeReserve:
		return ClassReserve
	case CodeLiability:
		return ClassLiability
	default:
		return ClassUnknown
	}
}

type (
	MonthStatus     string
	TransactionType string
	EntryStatus     string
)

const (
	MonthOpen   MonthStatus = "OPEN"
	MonthClosed MonthStatus = "CLOSED"

	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	StatusBooked  EntryStatus = "BOOKED"
	StatusPlanned EntryStatus = "PLANNED"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type AccountType struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Code   string `json:"code"`
}

type AccountGroup struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Code   string `json:"code"`
}

// Class returns the classification of the group's code.
func (g AccountGroup) Class() GroupClass { return ClassifyGroupCode(g.Code) }

type Account struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Name           string          `json:"name"`
	TypeID         string          `json:"typeId"`
	GroupID        string          `json:"groupId"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

// ClassifiedAccount is an account joined with its group, as the balance
// aggregator consumes it. An account whose group could not be loaded or
// classified is a data-integrity error, not a default bucket.
type ClassifiedAccount struct {
	Account
	Group AccountGroup `json:"group"`
}

func (a ClassifiedAccount) Class() GroupClass { return a.Group.Class() }

type Month struct {
	ID     string      `json:"id"`
	UserID string      `json:"userId"`
	Year   int         `json:"year"`
	Month  int         `json:"month"`
	Status MonthStatus `json:"status"`
}

type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	MonthID   string          `json:"monthId"`
	AccountID string          `json:"accountId"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"` // always >= 0; sign lives in Type
	Type      TransactionType `json:"transactionType"`
	Status    EntryStatus     `json:"status"`
	Category  string          `json:"category"`
	Notes     string          `json:"notes,omitempty"`
}

type Transfer struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	MonthID       string          `json:"monthId"`
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"` // positive; debits source, credits destination
	Status        EntryStatus     `json:"status"`
	Category      string          `json:"category"`
	Notes         string          `json:"notes,omitempty"`
}

type Reserve struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	MonthID   string          `json:"monthId"`
	AccountID string          `json:"accountId"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"` // signed: positive contribution, negative release
	Status    EntryStatus     `json:"status"`
	Category  string          `json:"category"`
	Notes     string          `json:"notes,omitempty"`
}

type PlanSnapshot struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Year            int              `json:"year"`
	Month           int              `json:"month"`
	PlannedNetWorth decimal.Decimal  `json:"plannedNetWorth"`
	PlannedCashflow *decimal.Decimal `json:"plannedCashflow,omitempty"`
}

type WealthSnapshot struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Date          time.Time       `json:"date"`
	TotalNetWorth decimal.Decimal `json:"totalNetWorth"`
	LiquidAssets  decimal.Decimal `json:"liquidAssets"`
	Investments   decimal.Decimal `json:"investments"`
	Reserves      decimal.Decimal `json:"reserves"`
	Liabilities   decimal.Decimal `json:"liabilities"`
}

var (
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyCode       = errors.New("empty code")
	ErrCodeTooLong     = errors.New("code too long (max 32 characters)")
	ErrNameTooLong     = errors.New("name too long (max 100 characters)")
	ErrInvalidMonth    = errors.New("month must be between 1 and 12")
	ErrInvalidYear     = errors.New("year out of range")
	ErrZeroDate        = errors.New("date cannot be zero")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrSameAccount     = errors.New("source and destination account must differ")
	ErrEmptyCategory   = errors.New("empty category")
	ErrMissingRelation = errors.New("missing referenced entity")
)

// NormalizeCode uppercases and trims a user-supplied type/group code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DeriveTransaction derives the stored representation of a transaction
// amount from the user-supplied signed value: the sign picks the type,
// the stored amount is the absolute value. Re-applied on every create
// and update.
func DeriveTransaction(signed decimal.Decimal) (TransactionType, decimal.Decimal) {
	if signed.IsNegative() {
		return Expense, signed.Abs()
	}
	return Income, signed
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	return nil
}

func validCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyCode
	}
	if len(code) > 32 {
		return ErrCodeTooLong
	}
	return nil
}

func validStatus(s EntryStatus) error {
	switch s {
	case StatusBooked, StatusPlanned:
		return nil
	default:
		return ErrInvalidStatus
	}
}

func (t AccountType) Validate() error {
	if err := validName(t.Name); err != nil {
		return err
	}
	return validCode(t.Code)
}

func (g AccountGroup) Validate() error {
	if err := validName(g.Name); err != nil {
		return err
	}
	return validCode(g.Code)
}

func (a Account) Validate() error {
	if err := validName(a.Name); err != nil {
		return err
	}
	if a.TypeID == "" || a.GroupID == "" {
		return ErrMissingRelation
	}
	return nil
}

func (m Month) Validate() error {
	if m.Month < 1 || m.Month > 12 {
		return ErrInvalidMonth
	}
	if m.Year < 1900 || m.Year > 3000 {
		return ErrInvalidYear
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.AccountID == "" || t.MonthID == "" {
		return ErrMissingRelation
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if t.Type != Income && t.Type != Expense {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return validStatus(t.Status)
}

func (t Transfer) Validate() error {
	if t.FromAccountID == "" || t.ToAccountID == "" || t.MonthID == "" {
		return ErrMissingRelation
	}
	if t.FromAccountID == t.ToAccountID {
		return ErrSameAccount
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return validStatus(t.Status)
}

func (r Reserve) Validate() error {
	if r.AccountID == "" || r.MonthID == "" {
		return ErrMissingRelation
	}
	if r.Date.IsZero() {
		return ErrZeroDate
	}
	if r.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	return validStatus(r.Status)
}

func (p PlanSnapshot) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1900 || p.Year > 3000 {
		return ErrInvalidYear
	}
	return nil
}
