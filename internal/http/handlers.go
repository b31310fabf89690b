package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"haybase/internal/core"
	"haybase/internal/ledger"
)

// monthIDParam extracts the required monthId query parameter for the
// per-month entry listings.
func monthIDParam(r *http.Request) (string, error) {
	id := r.URL.Query().Get("monthId")
	if id == "" {
		return "", core.Validationf("monthId query parameter is required")
	}
	return id, nil
}

func (s *Server) logMutation(r *http.Request, entity, verb string) {
	s.slogger.LogMutation(r.Context(), userID(r), entity, verb)
}

// ─── Accounts ───────────────────────────────────────────────────────

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.service.ListAccounts(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in ledger.AccountInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	account, err := s.service.CreateAccount(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account", "create")
	respondJSON(w, http.StatusCreated, account)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var in ledger.AccountInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	account, err := s.service.UpdateAccount(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account", "update")
	respondJSON(w, http.StatusOK, account)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAccount(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account", "delete")
	w.WriteHeader(http.StatusNoContent)
}

// ─── Account types ──────────────────────────────────────────────────

func (s *Server) handleListAccountTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.service.ListAccountTypes(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, types)
}

func (s *Server) handleCreateAccountType(w http.ResponseWriter, r *http.Request) {
	var in ledger.TaxonomyInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	typ, err := s.service.CreateAccountType(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account_type", "create")
	respondJSON(w, http.StatusCreated, typ)
}

func (s *Server) handleUpdateAccountType(w http.ResponseWriter, r *http.Request) {
	var in ledger.TaxonomyInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	typ, err := s.service.UpdateAccountType(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account_type", "update")
	respondJSON(w, http.StatusOK, typ)
}

func (s *Server) handleDeleteAccountType(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAccountType(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account_type", "delete")
	w.WriteHeader(http.StatusNoContent)
}

// ─── Account groups ─────────────────────────────────────────────────

func (s *Server) handleListAccountGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.ListAccountGroups(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateAccountGroup(w http.ResponseWriter, r *http.Request) {
	var in ledger.TaxonomyInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	group, err := s.service.CreateAccountGroup(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account_group", "create")
	respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleUpdateAccountGroup(w http.ResponseWriter, r *http.Request) {
	var in ledger.TaxonomyInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	group, err := s.service.UpdateAccountGroup(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account_group", "update")
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteAccountGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAccountGroup(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "account_group", "delete")
	w.WriteHeader(http.StatusNoContent)
}

// ─── Months ─────────────────────────────────────────────────────────

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.service.ListMonths(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, months)
}

func (s *Server) handleCreateMonth(w http.ResponseWriter, r *http.Request) {
	var in ledger.MonthInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	month, err := s.service.CreateMonth(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "month", "create")
	respondJSON(w, http.StatusCreated, month)
}

// ─── Transactions ───────────────────────────────────────────────────

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	monthID, err := monthIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	txs, err := s.service.ListTransactions(r.Context(), userID(r), monthID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in ledger.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	tx, err := s.service.CreateTransaction(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "transaction", "create")
	respondJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in ledger.TransactionInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	tx, err := s.service.UpdateTransaction(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "transaction", "update")
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTransaction(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "transaction", "delete")
	w.WriteHeader(http.StatusNoContent)
}

// ─── Transfers ──────────────────────────────────────────────────────

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	monthID, err := monthIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	transfers, err := s.service.ListTransfers(r.Context(), userID(r), monthID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transfers)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var in ledger.TransferInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	transfer, err := s.service.CreateTransfer(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "transfer", "create")
	respondJSON(w, http.StatusCreated, transfer)
}

func (s *Server) handleUpdateTransfer(w http.ResponseWriter, r *http.Request) {
	var in ledger.TransferInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	transfer, err := s.service.UpdateTransfer(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "transfer", "update")
	respondJSON(w, http.StatusOK, transfer)
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTransfer(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "transfer", "delete")
	w.WriteHeader(http.StatusNoContent)
}

// ─── Reserves ───────────────────────────────────────────────────────

func (s *Server) handleListReserves(w http.ResponseWriter, r *http.Request) {
	monthID, err := monthIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	reserves, err := s.service.ListReserves(r.Context(), userID(r), monthID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reserves)
}

func (s *Server) handleListReserveCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.ListReserveCategories(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateReserve(w http.ResponseWriter, r *http.Request) {
	var in ledger.ReserveInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	reserve, err := s.service.CreateReserve(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "reserve", "create")
	respondJSON(w, http.StatusCreated, reserve)
}

func (s *Server) handleUpdateReserve(w http.ResponseWriter, r *http.Request) {
	var in ledger.ReserveInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	reserve, err := s.service.UpdateReserve(r.Context(), userID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "reserve", "update")
	respondJSON(w, http.StatusOK, reserve)
}

func (s *Server) handleDeleteReserve(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReserve(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "reserve", "delete")
	w.WriteHeader(http.StatusNoContent)
}

// ─── Plans and reports ──────────────────────────────────────────────

func (s *Server) handlePlanComparison(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.PlanComparison(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.service.ListPlans(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plans)
}

func (s *Server) handleCreatePlanSnapshot(w http.ResponseWriter, r *http.Request) {
	var in ledger.PlanInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	plan, err := s.service.CreatePlanSnapshot(r.Context(), userID(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.logMutation(r, "plan_snapshot", "create")
	respondJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleWealthSeries(w http.ResponseWriter, r *http.Request) {
	points, err := s.service.WealthSeries(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		respondError(w, r, core.Validationf("year query parameter is required"))
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		respondError(w, r, core.Validationf("month query parameter is required"))
		return
	}
	view, err := s.service.Dashboard(r.Context(), userID(r), year, month)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
