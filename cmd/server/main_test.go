package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectthinkx/ds-sub001/internal/config"
	"github.com/projectthinkx/ds-sub001/internal/domain"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "123456"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	for _, pin := range []string{"000000", "234567", "987654", "112233"} {
		assert.Error(t, validatePINStrength(pin), pin)
	}
	assert.NoError(t, validatePINStrength("739154"))
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

const sampleItems = `[
  {"medicine_name": "Nitrile gloves M", "batch_number": "GL-01", "quantity": 2, "free_quantity": 1,
   "purchase_price": "100", "gst_percentage": 12, "status": "committed"},
  {"medicine_name": "Cotton rolls", "batch_number": "", "quantity": 1, "purchase_price": 50, "status": "draft"}
]`

func TestTotalsCommandSeparatesCommittedFromPreview(t *testing.T) {
	path := writeTemp(t, "items.json", sampleItems)

	out, err := runCLI(t, "totals", path, "--round-off", "0.40", "--negative")
	require.NoError(t, err)

	var report totalsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assertDecimal(t, "200", report.Committed.Subtotal)
	assertDecimal(t, "24", report.Committed.TotalGST)
	assertDecimal(t, "-0.40", report.Committed.RoundOff)
	assertDecimal(t, "223.60", report.Committed.GrandTotal)
	assertDecimal(t, "273.60", report.Preview.GrandTotal)
	assert.Equal(t, 2, report.LineCount)
	assert.Equal(t, 1, report.DraftCount)
	assert.Equal(t, 3, report.UnitsReceived)
}

func TestTotalsCommandAcceptsWrappedItems(t *testing.T) {
	path := writeTemp(t, "invoice.json", `{"items": `+sampleItems+`}`)

	out, err := runCLI(t, "totals", path)
	require.NoError(t, err)

	var report totalsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assertDecimal(t, "224", report.Committed.GrandTotal)
	assertDecimal(t, "274", report.Preview.GrandTotal)
}

func TestTotalsCommandRejectsBadRoundOff(t *testing.T) {
	path := writeTemp(t, "items.json", sampleItems)

	_, err := runCLI(t, "totals", path, "--round-off", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "round-off")
}

const sampleOutstanding = `[
  {"id": "pur-2", "supplier_id": "sup-medline", "invoice_number": "MD-2107", "invoice_date": "2026-02-03",
   "total_amount": "9062.40", "paid_amount": "4000", "pending_amount": "5062.40", "payment_status": "partial"},
  {"id": "pur-1", "supplier_id": "sup-medline", "invoice_number": "MD-2041", "invoice_date": "2026-01-12",
   "total_amount": "18480", "paid_amount": "0", "pending_amount": "18480", "payment_status": "unpaid"},
  {"id": "pur-9", "supplier_id": "sup-dentalcare", "invoice_number": "DC-77", "invoice_date": "2025-12-01",
   "total_amount": "500", "paid_amount": "0", "pending_amount": "500", "payment_status": "unpaid"}
]`

func TestAllocateCommandPaysOldestFirst(t *testing.T) {
	path := writeTemp(t, "outstanding.json", sampleOutstanding)

	out, err := runCLI(t, "allocate", path, "--amount", "20000", "--supplier", "sup-medline")
	require.NoError(t, err)

	var plan domain.BulkPaymentPlan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))

	require.Len(t, plan.Rows, 2)
	assert.Equal(t, "pur-1", plan.Rows[0].Invoice.ID)
	assertDecimal(t, "18480", plan.Rows[0].Allocated)
	assert.Equal(t, "pur-2", plan.Rows[1].Invoice.ID)
	assertDecimal(t, "1520", plan.Rows[1].Allocated)
	assertDecimal(t, "3542.40", plan.Rows[1].Remaining)
	assertDecimal(t, "23542.40", plan.TotalPending)
	assertDecimal(t, "20000", plan.TotalAllocated)
	assertDecimal(t, "0", plan.Unallocated)
}

func TestAllocateCommandRequiresAmount(t *testing.T) {
	path := writeTemp(t, "outstanding.json", sampleOutstanding)

	_, err := runCLI(t, "allocate", path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "amount"))
}

func TestMigrateNeedsDurableStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MONGO_URI", "")

	_, err := runCLI(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestRunClosersClosesEverythingInReverse(t *testing.T) {
	var order []string
	closers := []func() error{
		func() error { order = append(order, "repo"); return nil },
		func() error { order = append(order, "cache"); return errors.New("already closed") },
		func() error { order = append(order, "queue"); return nil },
	}

	runClosers(closers)
	assert.Equal(t, []string{"queue", "cache", "repo"}, order)
}
