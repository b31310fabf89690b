package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"haybase/internal/auth"
	"haybase/internal/core"
	haybasehttp "haybase/internal/http"
	"haybase/internal/ledger"
	"haybase/internal/log"
	"haybase/internal/storage/memory"
)

type testEnv struct {
	server *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	for _, name := range []string{"alex", "mala"} {
		hash, err := auth.HashPassword("hunter2")
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		store.AddUser(core.User{ID: uuid.NewString(), Name: name, PasswordHash: hash})
	}

	service := ledger.NewService(store, nil)
	sessions := auth.NewSessions(store, time.Hour)
	t.Cleanup(sessions.Close)

	srv := haybasehttp.NewServer("0", service, sessions, log.New(log.DefaultConfig()), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &testEnv{server: ts, client: &http.Client{Jar: jar}}
}

// newClient starts a second session against the same server, for
// cross-user tests.
func (e *testEnv) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func (e *testEnv) do(t *testing.T, client *http.Client, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (e *testEnv) login(t *testing.T, client *http.Client, name string) {
	t.Helper()
	resp := e.do(t, client, http.MethodPost, "/api/login", `{"name":"`+name+`","password":"hunter2"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login as %s: status %d", name, resp.StatusCode)
	}
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d, want %d (body: %s)", resp.StatusCode, want, body)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	wantStatus(t, env.do(t, env.client, http.MethodGet, "/healthz", ""), http.StatusOK)
	wantStatus(t, env.do(t, env.client, http.MethodGet, "/readyz", ""), http.StatusOK)
	wantStatus(t, env.do(t, env.client, http.MethodGet, "/metrics", ""), http.StatusOK)
}

func TestSessionRequired(t *testing.T) {
	env := newTestEnv(t)
	wantStatus(t, env.do(t, env.client, http.MethodGet, "/api/accounts", ""), http.StatusUnauthorized)
	wantStatus(t, env.do(t, env.client, http.MethodPost, "/api/months", `{"year":2025,"month":3}`), http.StatusUnauthorized)
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, env.client, http.MethodPost, "/api/login", `{"name":"alex","password":"wrong"}`)
	wantStatus(t, resp, http.StatusUnauthorized)

	env.login(t, env.client, "alex")
	wantStatus(t, env.do(t, env.client, http.MethodGet, "/api/accounts", ""), http.StatusOK)

	wantStatus(t, env.do(t, env.client, http.MethodPost, "/api/logout", ""), http.StatusNoContent)
	wantStatus(t, env.do(t, env.client, http.MethodGet, "/api/accounts", ""), http.StatusUnauthorized)
}

func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, env.client, "alex")

	var group core.AccountGroup
	resp := env.do(t, env.client, http.MethodPost, "/api/account-groups", `{"name":"Liquid","code":"liquid"}`)
	if resp.StatusCode != http.StatusCreated {
		wantStatus(t, resp, http.StatusCreated)
	}
	decodeBody(t, resp, &group)
	if group.Code != "LIQUID" {
		t.Errorf("group code %q, want LIQUID", group.Code)
	}

	var typ core.AccountType
	resp = env.do(t, env.client, http.MethodPost, "/api/account-types", `{"name":"Checking","code":"checking"}`)
	decodeBody(t, resp, &typ)

	var account core.Account
	resp = env.do(t, env.client, http.MethodPost, "/api/accounts",
		`{"name":"Giro","typeId":"`+typ.ID+`","groupId":"`+group.ID+`","initialBalance":"1000"}`)
	if resp.StatusCode != http.StatusCreated {
		wantStatus(t, resp, http.StatusCreated)
	}
	decodeBody(t, resp, &account)

	// The group now has an account in it, so it cannot go.
	wantStatus(t, env.do(t, env.client, http.MethodDelete, "/api/account-groups/"+group.ID, ""), http.StatusConflict)

	resp = env.do(t, env.client, http.MethodPost, "/api/accounts",
		`{"name":"Ghost","typeId":"nope","groupId":"`+group.ID+`","initialBalance":"0"}`)
	wantStatus(t, resp, http.StatusUnprocessableEntity)

	wantStatus(t, env.do(t, env.client, http.MethodDelete, "/api/accounts/"+account.ID, ""), http.StatusNoContent)
	wantStatus(t, env.do(t, env.client, http.MethodDelete, "/api/account-groups/"+group.ID, ""), http.StatusNoContent)
}

func TestForeignAccountLooksForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, env.client, "alex")

	var group core.AccountGroup
	decodeBody(t, env.do(t, env.client, http.MethodPost, "/api/account-groups", `{"name":"Liquid","code":"liquid"}`), &group)
	var typ core.AccountType
	decodeBody(t, env.do(t, env.client, http.MethodPost, "/api/account-types", `{"name":"Checking","code":"checking"}`), &typ)
	var account core.Account
	decodeBody(t, env.do(t, env.client, http.MethodPost, "/api/accounts",
		`{"name":"Giro","typeId":"`+typ.ID+`","groupId":"`+group.ID+`","initialBalance":"0"}`), &account)

	other := env.newClient(t)
	env.login(t, other, "mala")

	wantStatus(t, env.do(t, other, http.MethodDelete, "/api/accounts/"+account.ID, ""), http.StatusForbidden)
	wantStatus(t, env.do(t, other, http.MethodDelete, "/api/accounts/"+uuid.NewString(), ""), http.StatusForbidden)
}

func TestMonthAndTransactionFlow(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, env.client, "alex")

	var group core.AccountGroup
	decodeBody(t, env.do(t, env.client, http.MethodPost, "/api/account-groups", `{"name":"Liquid","code":"liquid"}`), &group)
	var typ core.AccountType
	decodeBody(t, env.do(t, env.client, http.MethodPost, "/api/account-types", `{"name":"Checking","code":"checking"}`), &typ)
	var account core.Account
	decodeBody(t, env.do(t, env.client, http.MethodPost, "/api/accounts",
		`{"name":"Giro","typeId":"`+typ.ID+`","groupId":"`+group.ID+`","initialBalance":"1000"}`), &account)

	var month core.Month
	resp := env.do(t, env.client, http.MethodPost, "/api/months", `{"year":2025,"month":3}`)
	if resp.StatusCode != http.StatusCreated {
		wantStatus(t, resp, http.StatusCreated)
	}
	decodeBody(t, resp, &month)

	wantStatus(t, env.do(t, env.client, http.MethodPost, "/api/months", `{"year":2025,"month":3}`), http.StatusUnprocessableEntity)

	var tx core.Transaction
	resp = env.do(t, env.client, http.MethodPost, "/api/transactions",
		`{"monthId":"`+month.ID+`","accountId":"`+account.ID+`","date":"2025-03-10T00:00:00Z","amount":"-42.50","category":"Groceries"}`)
	if resp.StatusCode != http.StatusCreated {
		wantStatus(t, resp, http.StatusCreated)
	}
	decodeBody(t, resp, &tx)
	if tx.Type != core.Expense {
		t.Errorf("transaction type %q, want EXPENSE", tx.Type)
	}
	if !tx.Amount.Equal(decimalFromString(t, "42.50")) {
		t.Errorf("stored amount %s, want 42.50", tx.Amount)
	}
	if tx.Status != core.StatusBooked {
		t.Errorf("status %q, want BOOKED", tx.Status)
	}

	wantStatus(t, env.do(t, env.client, http.MethodGet, "/api/transactions", ""), http.StatusUnprocessableEntity)

	var list []core.Transaction
	decodeBody(t, env.do(t, env.client, http.MethodGet, "/api/transactions?monthId="+month.ID, ""), &list)
	if len(list) != 1 {
		t.Fatalf("listed %d transactions, want 1", len(list))
	}

	// A booked transaction pins its account.
	wantStatus(t, env.do(t, env.client, http.MethodDelete, "/api/accounts/"+account.ID, ""), http.StatusConflict)

	wantStatus(t, env.do(t, env.client, http.MethodGet, "/api/dashboard?year=2025&month=3", ""), http.StatusOK)
	wantStatus(t, env.do(t, env.client, http.MethodGet, "/api/dashboard?year=2025&month=4", ""), http.StatusNotFound)
	wantStatus(t, env.do(t, env.client, http.MethodGet, "/api/dashboard?year=2025", ""), http.StatusUnprocessableEntity)
}

func TestPlanEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, env.client, "alex")

	resp := env.do(t, env.client, http.MethodPost, "/api/plan", `{"year":2025,"month":3,"plannedNetWorth":"800"}`)
	wantStatus(t, resp, http.StatusCreated)
	wantStatus(t, env.do(t, env.client, http.MethodPost, "/api/plan", `{"year":2025,"month":3,"plannedNetWorth":"900"}`), http.StatusUnprocessableEntity)

	var rows []map[string]any
	decodeBody(t, env.do(t, env.client, http.MethodGet, "/api/plan", ""), &rows)
	if len(rows) != 1 {
		t.Fatalf("plan comparison returned %d rows, want 1", len(rows))
	}

	var plans []core.PlanSnapshot
	decodeBody(t, env.do(t, env.client, http.MethodGet, "/api/plan/snapshots", ""), &plans)
	if len(plans) != 1 {
		t.Fatalf("listed %d plans, want 1", len(plans))
	}

	wantStatus(t, env.do(t, env.client, http.MethodGet, "/api/wealth", ""), http.StatusOK)
}

func TestErrorBodySeparatesKindFromMessage(t *testing.T) {
	env := newTestEnv(t)

	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	decodeBody(t, env.do(t, env.client, http.MethodGet, "/api/accounts", ""), &body)
	if body.Kind != "unauthenticated" {
		t.Fatalf("kind = %q, want unauthenticated", body.Kind)
	}
	if body.Error != "authentication required" {
		t.Fatalf("error = %q, want the message without the kind prefix", body.Error)
	}

	env.login(t, env.client, "alex")
	wantStatus(t, env.do(t, env.client, http.MethodPost, "/api/months", `{"year":2025,"month":3}`), http.StatusCreated)
	decodeBody(t, env.do(t, env.client, http.MethodPost, "/api/months", `{"year":2025,"month":3}`), &body)
	if body.Kind != "validation_failed" {
		t.Fatalf("kind = %q, want validation_failed", body.Kind)
	}
	if body.Error != "month 3/2025 already exists" {
		t.Fatalf("error = %q, want the message without the kind prefix", body.Error)
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, env.client, "alex")
	resp := env.do(t, env.client, http.MethodPost, "/api/months", `{"year":2025,"month":3,"bogus":true}`)
	wantStatus(t, resp, http.StatusUnprocessableEntity)
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}
