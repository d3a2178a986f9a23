package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

func (a *API) handleInvoicePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.InvoicePreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	preview, err := a.service.PreviewInvoice(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) handleCommitItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CommitItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	item, err := a.service.CommitItem(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (a *API) handlePurchaseInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := domain.PurchaseInvoiceFilter{
			SupplierID: q.Get("supplier_id"),
			BranchID:   q.Get("branch_id"),
			From:       q.Get("from"),
			To:         q.Get("to"),
			Status:     domain.PaymentStatus(q.Get("status")),
			Limit:      parsePositiveLimit(q.Get("limit"), 100, 500),
		}
		invoices, err := a.service.ListPurchaseInvoices(r.Context(), filter)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	case http.MethodPost:
		var req domain.PurchaseInvoiceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		invoice, err := a.service.CreatePurchaseInvoice(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
	default:
		writeMethodNotAllowed(w)
	}
}

// handlePurchaseInvoiceActions serves /api/v1/purchase-invoices/{id} and
// /api/v1/purchase-invoices/{id}/edit.
func (a *API) handlePurchaseInvoiceActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/v1/purchase-invoices/")
	switch {
	case len(parts) == 2 && parts[1] == "edit":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		state, err := a.service.LoadInvoiceForEdit(r.Context(), parts[0])
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	case len(parts) != 1:
		writeError(w, http.StatusNotFound, errors.New("unknown purchase invoice action"))
		return
	}
	invoiceID := parts[0]

	switch r.Method {
	case http.MethodGet:
		invoice, err := a.service.GetPurchaseInvoice(r.Context(), invoiceID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case http.MethodPut:
		var req domain.PurchaseInvoiceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		invoice, err := a.service.UpdatePurchaseInvoice(r.Context(), invoiceID, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case http.MethodDelete:
		a.deletePurchaseInvoice(w, r, invoiceID)
	default:
		writeMethodNotAllowed(w)
	}
}

// deletePurchaseInvoice asks for the manager PIN only when money has already
// been paid against the invoice.
func (a *API) deletePurchaseInvoice(w http.ResponseWriter, r *http.Request, invoiceID string) {
	var req domain.DeleteInvoiceRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	invoice, err := a.service.GetPurchaseInvoice(r.Context(), invoiceID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if invoice.PaidAmount.IsPositive() {
		if !a.pinLimiter.Allow("pin:invoice-delete:" + clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
			return
		}
		if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
			writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
			return
		}
	}

	if err := a.service.DeletePurchaseInvoice(r.Context(), invoiceID, req.Reason); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": invoiceID})
}
