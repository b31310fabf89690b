package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"haybase/internal/core"
	"haybase/internal/ledger"
	"haybase/internal/storage/memory"
)

const (
	alex = "user-alex"
	mala = "user-mala" // second user, owns nothing of Alex's
)

type fixture struct {
	store *memory.Store
	svc   *ledger.Service

	liquidGroup  core.AccountGroup
	reserveGroup core.AccountGroup
	checking     core.AccountType

	giro      core.Account // liquid
	ruecklage core.Account // reserve, initial 2000
	month     core.Month
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddUser(core.User{ID: alex, Name: "Alex"})
	store.AddUser(core.User{ID: mala, Name: "Mala"})
	svc := ledger.NewService(store, nil)
	ctx := context.Background()

	f := &fixture{store: store, svc: svc}
	var err error

	f.liquidGroup, err = svc.CreateAccountGroup(ctx, alex, ledger.TaxonomyInput{Name: "Liquide Mittel", Code: "liquid"})
	if err != nil {
		t.Fatalf("create liquid group: %v", err)
	}
	f.reserveGroup, err = svc.CreateAccountGroup(ctx, alex, ledger.TaxonomyInput{Name: "Rückstellungen", Code: "RESERVE"})
	if err != nil {
		t.Fatalf("create reserve group: %v", err)
	}
	f.checking, err = svc.CreateAccountType(ctx, alex, ledger.TaxonomyInput{Name: "Girokonto", Code: "CHECKING"})
	if err != nil {
		t.Fatalf("create type: %v", err)
	}
	f.giro, err = svc.CreateAccount(ctx, alex, ledger.AccountInput{
		Name: "Giro", TypeID: f.checking.ID, GroupID: f.liquidGroup.ID, InitialBalance: dec("1000"),
	})
	if err != nil {
		t.Fatalf("create giro: %v", err)
	}
	f.ruecklage, err = svc.CreateAccount(ctx, alex, ledger.AccountInput{
		Name: "Rücklage", TypeID: f.checking.ID, GroupID: f.reserveGroup.ID, InitialBalance: dec("2000"),
	})
	if err != nil {
		t.Fatalf("create ruecklage: %v", err)
	}
	f.month, err = svc.CreateMonth(ctx, alex, ledger.MonthInput{Year: 2025, Month: 3})
	if err != nil {
		t.Fatalf("create month: %v", err)
	}
	return f
}

func wantKind(t *testing.T, err error, kind core.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if got := core.KindOf(err); got != kind {
		t.Fatalf("error kind = %v, want %v (err: %v)", got, kind, err)
	}
}

var march = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func TestUnauthenticatedCallerRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, "", ledger.AccountInput{Name: "x", TypeID: f.checking.ID, GroupID: f.liquidGroup.ID})
	wantKind(t, err, core.KindUnauthenticated)

	_, err = f.svc.Dashboard(ctx, "", 2025, 3)
	wantKind(t, err, core.KindUnauthenticated)

	err = f.svc.DeleteAccount(ctx, "", f.giro.ID)
	wantKind(t, err, core.KindUnauthenticated)
}

func TestOwnershipDoesNotLeakExistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A foreign row and a missing row must be indistinguishable.
	foreignErr := f.svc.DeleteAccount(ctx, mala, f.giro.ID)
	wantKind(t, foreignErr, core.KindForbidden)
	missingErr := f.svc.DeleteAccount(ctx, mala, "no-such-account")
	wantKind(t, missingErr, core.KindForbidden)
	if foreignErr.Error() != missingErr.Error() {
		t.Errorf("foreign and missing rows answer differently: %q vs %q", foreignErr, missingErr)
	}

	_, err := f.svc.UpdateAccountType(ctx, mala, f.checking.ID, ledger.TaxonomyInput{Name: "X", Code: "X"})
	wantKind(t, err, core.KindForbidden)
}

func TestCreateAccount_ForeignRefsAreValidationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Mala cannot hang an account onto Alex's type/group.
	_, err := f.svc.CreateAccount(ctx, mala, ledger.AccountInput{
		Name: "Sneaky", TypeID: f.checking.ID, GroupID: f.liquidGroup.ID,
	})
	wantKind(t, err, core.KindValidation)

	_, err = f.svc.CreateAccount(ctx, alex, ledger.AccountInput{
		Name: "Broken", TypeID: "missing", GroupID: f.liquidGroup.ID,
	})
	wantKind(t, err, core.KindValidation)
}

func TestTaxonomyCodeNormalizationAndCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateAccountType(ctx, alex, ledger.TaxonomyInput{Name: "Tagesgeld", Code: "savings"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Code != "SAVINGS" {
		t.Errorf("code = %q, want SAVINGS", created.Code)
	}

	_, err = f.svc.CreateAccountType(ctx, alex, ledger.TaxonomyInput{Name: "Anders", Code: "Savings"})
	wantKind(t, err, core.KindValidation)

	// The same code under another user is fine.
	if _, err := f.svc.CreateAccountType(ctx, mala, ledger.TaxonomyInput{Name: "Tagesgeld", Code: "SAVINGS"}); err != nil {
		t.Fatalf("same code, different user: %v", err)
	}

	// Updating a row to its own code is not a collision.
	if _, err := f.svc.UpdateAccountType(ctx, alex, created.ID, ledger.TaxonomyInput{Name: "Tagesgeld Neu", Code: "savings"}); err != nil {
		t.Fatalf("update to own code: %v", err)
	}
	// Updating onto a different row's code is.
	_, err = f.svc.UpdateAccountType(ctx, alex, created.ID, ledger.TaxonomyInput{Name: "Tagesgeld", Code: "checking"})
	wantKind(t, err, core.KindValidation)
}

func TestDeleteAccountType_ConflictWhileReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.DeleteAccountType(ctx, alex, f.checking.ID)
	wantKind(t, err, core.KindConflict)

	unused, err := f.svc.CreateAccountType(ctx, alex, ledger.TaxonomyInput{Name: "Depot", Code: "BROKERAGE"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.DeleteAccountType(ctx, alex, unused.ID); err != nil {
		t.Errorf("delete unreferenced type: %v", err)
	}
}

func TestDeleteAccountGroup_ConflictWhileReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.DeleteAccountGroup(ctx, alex, f.liquidGroup.ID)
	wantKind(t, err, core.KindConflict)
}

func TestDeleteAccount_ConflictWhileBooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateTransaction(ctx, alex, ledger.TransactionInput{
		MonthID: f.month.ID, AccountID: f.giro.ID, Date: march,
		Amount: dec("50"), Category: "Einkauf",
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	err := f.svc.DeleteAccount(ctx, alex, f.giro.ID)
	wantKind(t, err, core.KindConflict)
}

func TestCreateMonth_DuplicatePeriodRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateMonth(ctx, alex, ledger.MonthInput{Year: 2025, Month: 3})
	wantKind(t, err, core.KindValidation)

	// Another user may have the same period.
	if _, err := f.svc.CreateMonth(ctx, mala, ledger.MonthInput{Year: 2025, Month: 3}); err != nil {
		t.Fatalf("same period, different user: %v", err)
	}
}

func TestCreateTransaction_DerivesTypeAndStoresAbsolute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	income, err := f.svc.CreateTransaction(ctx, alex, ledger.TransactionInput{
		MonthID: f.month.ID, AccountID: f.giro.ID, Date: march,
		Amount: dec("500"), Category: "Gehalt",
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if income.Type != core.Income || !income.Amount.Equal(dec("500")) {
		t.Errorf("income stored as %v/%s, want INCOME/500", income.Type, income.Amount)
	}

	expense, err := f.svc.CreateTransaction(ctx, alex, ledger.TransactionInput{
		MonthID: f.month.ID, AccountID: f.giro.ID, Date: march,
		Amount: dec("-200"), Category: "Miete",
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if expense.Type != core.Expense || !expense.Amount.Equal(dec("200")) {
		t.Errorf("expense stored as %v/%s, want EXPENSE/200", expense.Type, expense.Amount)
	}

	// An update with a flipped sign re-derives the type.
	updated, err := f.svc.UpdateTransaction(ctx, alex, expense.ID, ledger.TransactionInput{
		MonthID: f.month.ID, AccountID: f.giro.ID, Date: march,
		Amount: dec("200"), Category: "Korrektur",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Type != core.Income {
		t.Errorf("updated type = %v, want INCOME after sign flip", updated.Type)
	}
}

func TestCreateTransfer_SameAccountAlwaysRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, status := range []core.EntryStatus{core.StatusBooked, core.StatusPlanned} {
		_, err := f.svc.CreateTransfer(ctx, alex, ledger.TransferInput{
			MonthID: f.month.ID, FromAccountID: f.giro.ID, ToAccountID: f.giro.ID,
			Date: march, Amount: dec("10"), Status: status,
		})
		wantKind(t, err, core.KindValidation)
	}
}

func TestCreateTransfer_DefaultsCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second, err := f.svc.CreateAccount(ctx, alex, ledger.AccountInput{
		Name: "Tagesgeld", TypeID: f.checking.ID, GroupID: f.liquidGroup.ID,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	tr, err := f.svc.CreateTransfer(ctx, alex, ledger.TransferInput{
		MonthID: f.month.ID, FromAccountID: f.giro.ID, ToAccountID: second.ID,
		Date: march, Amount: dec("100"),
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if tr.Category != "Transfer" {
		t.Errorf("category = %q, want Transfer", tr.Category)
	}
	if tr.Status != core.StatusBooked {
		t.Errorf("status = %q, want BOOKED default", tr.Status)
	}
}

func TestCreateReserve_RequiresReserveAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.giro.ID, Date: march,
		Amount: dec("100"), Category: "Urlaub",
	})
	wantKind(t, err, core.KindValidation)
}

func TestCreateReserve_SufficiencyBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Initial 2000, contribute 200: available 2200.
	if _, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march,
		Amount: dec("200"), Category: "Urlaub",
	}); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	// One cent past the boundary is rejected.
	_, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march,
		Amount: dec("-2200.01"), Category: "Urlaub",
	})
	wantKind(t, err, core.KindValidation)

	// Releasing the exact available balance lands at zero and is fine.
	if _, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march,
		Amount: dec("-2200"), Category: "Urlaub",
	}); err != nil {
		t.Fatalf("release exact balance: %v", err)
	}

	// Now empty: any further release is rejected.
	_, err = f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march,
		Amount: dec("-1"), Category: "Urlaub",
	})
	wantKind(t, err, core.KindValidation)
}

// The sufficiency check reads the booked sum and then writes without
// coordination, so two concurrent releases can both pass it. That is a
// property of the design (last write wins at the storage layer), not
// something the guard promises to prevent; this test only documents
// that the sequential boundary holds.
func TestReserveSufficiencyIsCheckedSequentiallyNotAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march,
		Amount: dec("-2000"), Category: "Urlaub",
	}); err != nil {
		t.Fatalf("first release: %v", err)
	}
	_, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march,
		Amount: dec("-2000"), Category: "Urlaub",
	})
	wantKind(t, err, core.KindValidation)
}

func TestPlannedReserveCheckedAgainstAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The sufficiency check does not care about the entry's status: a
	// planned over-release is rejected like a booked one.
	_, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march,
		Amount: dec("-9999"), Status: core.StatusPlanned, Category: "Urlaub",
	})
	wantKind(t, err, core.KindValidation)

	if _, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march,
		Amount: dec("-500"), Status: core.StatusPlanned, Category: "Urlaub",
	}); err != nil {
		t.Fatalf("planned release within balance: %v", err)
	}
}

func TestCreatePlanSnapshot_UniquePerPeriodAndImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreatePlanSnapshot(ctx, alex, ledger.PlanInput{
		Year: 2025, Month: 3, PlannedNetWorth: dec("5000"),
	}); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	_, err := f.svc.CreatePlanSnapshot(ctx, alex, ledger.PlanInput{
		Year: 2025, Month: 3, PlannedNetWorth: dec("6000"),
	})
	wantKind(t, err, core.KindValidation)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 1000 + 500 - 200 - 100 = 1200 for the liquid account.
	if _, err := f.svc.CreateTransaction(ctx, alex, ledger.TransactionInput{
		MonthID: f.month.ID, AccountID: f.giro.ID, Date: march, Amount: dec("500"), Category: "Gehalt",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateTransaction(ctx, alex, ledger.TransactionInput{
		MonthID: f.month.ID, AccountID: f.giro.ID, Date: march, Amount: dec("-200"), Category: "Miete",
	}); err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.CreateAccount(ctx, alex, ledger.AccountInput{
		Name: "Tagesgeld", TypeID: f.checking.ID, GroupID: f.liquidGroup.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateTransfer(ctx, alex, ledger.TransferInput{
		MonthID: f.month.ID, FromAccountID: f.giro.ID, ToAccountID: second.ID,
		Date: march, Amount: dec("100"),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march, Amount: dec("300"), Category: "Urlaub",
	}); err != nil {
		t.Fatal(err)
	}

	view, err := f.svc.Dashboard(ctx, alex, 2025, 3)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	byName := make(map[string]decimal.Decimal)
	for _, a := range view.Accounts {
		byName[a.Name] = a.Balance
	}
	if want := dec("1200"); !byName["Giro"].Equal(want) {
		t.Errorf("Giro balance = %s, want %s", byName["Giro"], want)
	}
	if want := dec("100"); !byName["Tagesgeld"].Equal(want) {
		t.Errorf("Tagesgeld balance = %s, want %s", byName["Tagesgeld"], want)
	}
	if want := dec("2300"); !byName["Rücklage"].Equal(want) {
		t.Errorf("Rücklage balance = %s, want %s", byName["Rücklage"], want)
	}

	// liquid 1300, investment 0, reserve 2300 → net worth -1000
	if want := dec("1300"); !view.Rollups.LiquidTotal.Equal(want) {
		t.Errorf("LiquidTotal = %s, want %s", view.Rollups.LiquidTotal, want)
	}
	if want := dec("-1000"); !view.Rollups.TotalNetWorth.Equal(want) {
		t.Errorf("TotalNetWorth = %s, want %s", view.Rollups.TotalNetWorth, want)
	}

	_, err = f.svc.Dashboard(ctx, alex, 2031, 1)
	wantKind(t, err, core.KindNotFound)
}

func TestNetWorthAt_AccumulatesAcrossMonths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	april, err := f.svc.CreateMonth(ctx, alex, ledger.MonthInput{Year: 2025, Month: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateTransaction(ctx, alex, ledger.TransactionInput{
		MonthID: f.month.ID, AccountID: f.giro.ID, Date: march, Amount: dec("500"), Category: "Gehalt",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateTransaction(ctx, alex, ledger.TransactionInput{
		MonthID: april.ID, AccountID: f.giro.ID, Date: march.AddDate(0, 1, 0), Amount: dec("-300"), Category: "Miete",
	}); err != nil {
		t.Fatal(err)
	}

	// Through March: 1000 + 500 liquid, 2000 reserve → -500.
	atMarch, err := f.svc.NetWorthAt(ctx, alex, 2025, 3)
	if err != nil {
		t.Fatal(err)
	}
	if want := dec("-500"); !atMarch.TotalNetWorth.Equal(want) {
		t.Errorf("net worth through March = %s, want %s", atMarch.TotalNetWorth, want)
	}

	// Through April the expense lands too.
	atApril, err := f.svc.NetWorthAt(ctx, alex, 2025, 4)
	if err != nil {
		t.Fatal(err)
	}
	if want := dec("-800"); !atApril.TotalNetWorth.Equal(want) {
		t.Errorf("net worth through April = %s, want %s", atApril.TotalNetWorth, want)
	}
}

func TestPlanComparison(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Drain the reserve so net worth equals the liquid balance.
	if _, err := f.svc.CreateReserve(ctx, alex, ledger.ReserveInput{
		MonthID: f.month.ID, AccountID: f.ruecklage.ID, Date: march, Amount: dec("-2000"), Category: "Auflösung",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreatePlanSnapshot(ctx, alex, ledger.PlanInput{
		Year: 2025, Month: 3, PlannedNetWorth: dec("800"),
	}); err != nil {
		t.Fatal(err)
	}

	rows, err := f.svc.PlanComparison(ctx, alex)
	if err != nil {
		t.Fatalf("PlanComparison: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if want := dec("1000"); !rows[0].ActualNetWorth.Equal(want) {
		t.Errorf("actual = %s, want %s", rows[0].ActualNetWorth, want)
	}
	if want := dec("200"); !rows[0].Difference.Equal(want) {
		t.Errorf("difference = %s, want %s", rows[0].Difference, want)
	}
	if rows[0].Percentage != 25 {
		t.Errorf("percentage = %v, want 25", rows[0].Percentage)
	}
	// First row never has growth figures.
	if rows[0].MonthlyGrowth != 0 || rows[0].AnnualizedGrowth != 0 {
		t.Errorf("first row growth should be 0, got %v / %v", rows[0].MonthlyGrowth, rows[0].AnnualizedGrowth)
	}
}

func TestPlanComparison_ZeroPlannedYieldsZeroPercent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreatePlanSnapshot(ctx, alex, ledger.PlanInput{
		Year: 2025, Month: 3, PlannedNetWorth: decimal.Zero,
	}); err != nil {
		t.Fatal(err)
	}
	rows, err := f.svc.PlanComparison(ctx, alex)
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Percentage != 0 {
		t.Errorf("percentage against zero plan = %v, want 0", rows[0].Percentage)
	}
}
