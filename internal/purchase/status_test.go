package purchase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

func TestResolvePaymentStatus(t *testing.T) {
	cases := []struct {
		grand, paid string
		want        domain.PaymentStatus
	}{
		{"0", "0", domain.PaymentUnpaid},
		{"0", "50", domain.PaymentUnpaid},
		{"-3", "1", domain.PaymentUnpaid},
		{"100", "0", domain.PaymentUnpaid},
		{"100", "-5", domain.PaymentUnpaid},
		{"100", "0.01", domain.PaymentPartial},
		{"100", "99.99", domain.PaymentPartial},
		{"100", "100", domain.PaymentPaid},
		{"100", "150", domain.PaymentPaid},
	}
	for _, tc := range cases {
		got := ResolvePaymentStatus(d(tc.grand), d(tc.paid))
		assert.Equal(t, tc.want, got, "grand=%s paid=%s", tc.grand, tc.paid)
	}
}

func TestPendingAmount(t *testing.T) {
	assert.True(t, PendingAmount(d("564.02"), d("64.01")).Equal(d("500.01")))
	assert.True(t, PendingAmount(d("100"), d("120")).IsZero())
	assert.True(t, PendingAmount(d("0"), d("0")).IsZero())
}

func TestInvoiceWithoutCommittedLinesIsUnpaid(t *testing.T) {
	assert.Equal(t, domain.PaymentUnpaid, InvoiceStatus(nil, d("0.05"), d("1")))
	assert.Equal(t, domain.PaymentPaid, InvoiceStatus([]domain.LineItem{committedItem(1, "0.05", "0", "0")}, d("0.05"), d("1")))
}
