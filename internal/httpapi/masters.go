package httpapi

import (
	"errors"
	"net/http"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/service"
)

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req domain.SupplierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		supplier, err := a.service.CreateSupplier(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"supplier": supplier})
	case http.MethodGet:
		suppliers, err := a.service.ListSuppliers(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleSupplierActions serves /api/v1/suppliers/{id}/{outstanding|balance|payments}.
func (a *API) handleSupplierActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	parts := pathParts(r.URL.Path, "/api/v1/suppliers/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, errors.New("unknown supplier action"))
		return
	}
	supplierID, action := parts[0], parts[1]

	actor, _ := service.ActorFromContext(r.Context())
	switch action {
	case "outstanding":
		if !isRoleAllowed(actor.Role, []string{domain.RoleAccountant, domain.RoleAdmin}) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}
		invoices, err := a.service.ListOutstandingInvoices(r.Context(), supplierID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"supplier_id": supplierID, "invoices": invoices})
	case "balance":
		balance, err := a.service.SupplierBalance(r.Context(), supplierID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
	case "payments":
		if !isRoleAllowed(actor.Role, []string{domain.RoleAccountant, domain.RoleAdmin}) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)
		payments, err := a.service.ListSupplierPayments(r.Context(), supplierID, limit)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown supplier action"))
	}
}

func (a *API) handleItemMaster(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		search := r.URL.Query().Get("q")
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)
		items, err := a.service.ListItemMaster(r.Context(), search, limit)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		var req domain.ItemMasterCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.CreateItemMaster(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleItemMasterPrefill serves /api/v1/item-master/{id}/prefill.
func (a *API) handleItemMasterPrefill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	parts := pathParts(r.URL.Path, "/api/v1/item-master/")
	if len(parts) != 2 || parts[1] != "prefill" {
		writeError(w, http.StatusNotFound, errors.New("unknown item master action"))
		return
	}

	item, err := a.service.PrefillItem(r.Context(), parts[0])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (a *API) handleBankAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := a.service.ListBankAccounts(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bank_accounts": accounts})
	case http.MethodPost:
		var req domain.BankAccountCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		account, err := a.service.CreateBankAccount(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"bank_account": account})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBankTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	bankAccountID := r.URL.Query().Get("bank_account_id")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	transactions, err := a.service.ListBankTransactions(r.Context(), bankAccountID, limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}
