package purchase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

func validRequest() domain.PurchaseInvoiceRequest {
	return domain.PurchaseInvoiceRequest{
		SupplierID:    "sup-1",
		InvoiceNumber: "INV-77",
		InvoiceDate:   "2026-05-04",
		GodownID:      "godown-main",
		PaymentMode:   domain.PaymentModeUPI,
		BankAccountID: "bank-1",
		PaidAmount:    d("64.02"),
		Items: []domain.LineItem{
			committedItem(10, "2.50", "0", "12"),
			committedItem(5, "100.00", "10", "18"),
		},
	}
}

func TestFinalizeComputesFigures(t *testing.T) {
	req := validRequest()
	draft := NewDraftItem()
	draft.PurchasePrice = d("1000")
	req.Items = append(req.Items, draft)

	inv, err := Finalize(req, nil, d("0.02"))
	require.NoError(t, err)

	assert.Len(t, inv.Items, 2)
	assert.True(t, inv.TotalAmount.Equal(d("564.02")))
	assert.True(t, inv.PendingAmount.Equal(d("500")))
	assert.Equal(t, domain.PaymentPartial, inv.PaymentStatus)
	assert.Equal(t, "bank-1", inv.BankAccountID)
}

func TestFinalizeCollectsEveryViolation(t *testing.T) {
	req := validRequest()
	req.InvoiceNumber = " "
	req.BankAccountID = ""
	req.Items[1].BatchNumber = ""

	_, err := Finalize(req, nil, d("0"))
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
	assert.Contains(t, verrs, ValidationError{Index: HeaderIndex, Field: "invoice_number", Message: "invoice number is required"})
	assert.Contains(t, verrs, ValidationError{Index: HeaderIndex, Field: "bank_id", Message: "bank account is required"})
	assert.Contains(t, verrs, ValidationError{Index: 1, Field: "batch_number", Message: "batch number is required"})
}

func TestFinalizeUsesMasterExpiryFlag(t *testing.T) {
	req := validRequest()
	req.Items[0].ItemMasterID = "im-1"

	_, err := Finalize(req, map[string]domain.ItemMaster{"im-1": {ID: "im-1", ExpiryTrackingEnabled: true}}, d("0"))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "expiry_date", verrs[0].Field)
	assert.Equal(t, 0, verrs[0].Index)
}

func TestFinalizeRequiresCommittedItem(t *testing.T) {
	req := validRequest()
	req.Items = []domain.LineItem{NewDraftItem()}

	_, err := Finalize(req, nil, d("0"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCashAndCreditNeedNoBank(t *testing.T) {
	for _, mode := range []domain.PaymentMode{domain.PaymentModeCash, domain.PaymentModeCredit, ""} {
		req := validRequest()
		req.PaymentMode = mode
		req.BankAccountID = "bank-9"

		inv, err := Finalize(req, nil, d("0"))
		require.NoError(t, err, "mode %q", mode)
		assert.Empty(t, inv.BankAccountID)
	}
}

func TestFinalizeRejectsRatesOutsidePercentRange(t *testing.T) {
	req := validRequest()
	req.Items[0].DiscountPercentage = d("150")
	req.Items[1].GSTPercentage = d("-1")

	_, err := Finalize(req, nil, d("0"))
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, ValidationError{Index: 0, Field: "discount_percentage", Message: "discount must be between 0 and 100"})
	assert.Contains(t, verrs, ValidationError{Index: 1, Field: "gst_percentage", Message: "GST must be between 0 and 100"})
}

func TestValidateItemAcceptsRateBoundaries(t *testing.T) {
	item := committedItem(1, "10", "100", "0")
	assert.NoError(t, ValidateItem(item, nil))
}
