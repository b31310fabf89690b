package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClassifyGroupCode(t *testing.T) {
	tests := []struct {
		code string
		want GroupClass
	}{
		{"LIQUID", ClassLiquid},
		{"liquid", ClassLiquid},
		{" Investment ", ClassInvestment},
		{"RESERVE", ClassReserve},
		{"LIABILITY", ClassLiability},
		{"SONSTIGES", ClassUnknown},
		{"", ClassUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyGroupCode(tt.code); got != tt.want {
			t.Errorf("ClassifyGroupCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestDeriveTransaction(t *testing.T) {
	tests := []struct {
		name       string
		signed     string
		wantType   TransactionType
		wantAmount string
	}{
		{"positive is income", "250.75", Income, "250.75"},
		{"zero is income", "0", Income, "0"},
		{"negative is expense, stored absolute", "-99.99", Expense, "99.99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, amount := DeriveTransaction(dec(tt.signed))
			if typ != tt.wantType {
				t.Errorf("type = %v, want %v", typ, tt.wantType)
			}
			if !amount.Equal(dec(tt.wantAmount)) {
				t.Errorf("amount = %s, want %s", amount, tt.wantAmount)
			}
		})
	}
}

func TestTransferValidate_SameAccountRejected(t *testing.T) {
	tr := Transfer{
		MonthID:       "m1",
		FromAccountID: "a1",
		ToAccountID:   "a1",
		Date:          time.Now(),
		Amount:        dec("50"),
		Status:        StatusBooked,
	}
	if err := tr.Validate(); !errors.Is(err, ErrSameAccount) {
		t.Errorf("Validate() = %v, want ErrSameAccount", err)
	}
	// Same rejection regardless of status.
	tr.Status = StatusPlanned
	if err := tr.Validate(); !errors.Is(err, ErrSameAccount) {
		t.Errorf("Validate() planned = %v, want ErrSameAccount", err)
	}
}

func TestTransferValidate_AmountMustBePositive(t *testing.T) {
	tr := Transfer{
		MonthID:       "m1",
		FromAccountID: "a1",
		ToAccountID:   "a2",
		Date:          time.Now(),
		Amount:        decimal.Zero,
		Status:        StatusBooked,
	}
	if err := tr.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Validate() = %v, want ErrInvalidAmount", err)
	}
}

func TestMonthValidate(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   int
		wantErr bool
	}{
		{"valid", 2025, 6, false},
		{"month zero", 2025, 0, true},
		{"month thirteen", 2025, 13, true},
		{"implausible year", 123, 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Month{Year: tt.year, Month: tt.month, Status: MonthOpen}
			if err := m.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  liquid "); got != "LIQUID" {
		t.Errorf("NormalizeCode = %q, want LIQUID", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12.50", "12.50", false},
		{"12,50", "12.50", false},
		{"-3", "-3", false},
		{" 7 ", "7", false},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && !got.Equal(dec(tt.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{Unauthenticated(), KindUnauthenticated},
		{Forbidden(), KindForbidden},
		{NotFound("month"), KindNotFound},
		{Validationf("bad %s", "field"), KindValidation},
		{Conflictf("still referenced"), KindConflict},
		{errors.New("plain"), KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestForbiddenCarriesNoDetail(t *testing.T) {
	// The forbidden message must be identical whether the row is
	// missing or owned by someone else.
	a, b := Forbidden(), Forbidden()
	if a.Message != b.Message || a.Message != "forbidden" {
		t.Errorf("forbidden messages differ or leak detail: %q vs %q", a.Message, b.Message)
	}
}
