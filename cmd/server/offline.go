package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/projectthinkx/ds-sub001/internal/allocation"
	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/purchase"
)

type totalsReport struct {
	Committed     domain.Totals `json:"committed"`
	Preview       domain.Totals `json:"preview"`
	LineCount     int           `json:"line_count"`
	DraftCount    int           `json:"draft_count"`
	UnitsReceived int           `json:"units_received"`
}

func newTotalsCmd() *cobra.Command {
	var (
		roundOff string
		negative bool
	)

	cmd := &cobra.Command{
		Use:   "totals <items.json>",
		Short: "Compute invoice totals for a file of line items",
		Long: `Reads line items as a JSON array, or an object with an "items" array,
and prints the committed totals next to the live preview that also counts
draft lines. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			magnitude, err := parseAmount("round-off", roundOff)
			if err != nil {
				return err
			}

			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			items, err := decodeItems(raw)
			if err != nil {
				return err
			}

			adjustment := purchase.NewRoundOff(magnitude, negative).Value()
			drafts := 0
			for _, item := range items {
				if item.IsDraft() {
					drafts++
				}
			}
			return printJSON(cmd.OutOrStdout(), totalsReport{
				Committed:     purchase.ComputeTotals(items, adjustment),
				Preview:       purchase.PreviewTotals(items, adjustment),
				LineCount:     len(items),
				DraftCount:    drafts,
				UnitsReceived: purchase.TotalReceivedUnits(items),
			})
		},
	}

	cmd.Flags().StringVar(&roundOff, "round-off", "0", "round-off magnitude")
	cmd.Flags().BoolVar(&negative, "negative", false, "subtract the round-off instead of adding it")
	return cmd
}

func newAllocateCmd() *cobra.Command {
	var (
		amount     string
		supplierID string
	)

	cmd := &cobra.Command{
		Use:   "allocate <outstanding.json>",
		Short: "Plan a bulk supplier payment oldest invoice first",
		Long: `Reads outstanding invoices as a JSON array, or an object with an
"invoices" array, and prints how the amount would be spread over them.
Nothing is recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}

			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			invoices, err := decodeOutstanding(raw)
			if err != nil {
				return err
			}

			if supplierID != "" {
				filtered := invoices[:0]
				for _, inv := range invoices {
					if inv.SupplierID == "" || inv.SupplierID == supplierID {
						filtered = append(filtered, inv)
					}
				}
				invoices = filtered
			}

			sheet := allocation.NewWorksheet(supplierID, invoices)
			sheet.SetTotal(total)
			return printJSON(cmd.OutOrStdout(), sheet.Plan())
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "total payment amount")
	cmd.Flags().StringVar(&supplierID, "supplier", "", "only plan against invoices of this supplier")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func parseAmount(name, value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %q is not a number", name, value)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("--%s must not be negative", name)
	}
	return amount, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func decodeItems(raw []byte) ([]domain.LineItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []domain.LineItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode line items: %w", err)
		}
		return items, nil
	}
	var wrapped struct {
		Items []domain.LineItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}
	return wrapped.Items, nil
}

func decodeOutstanding(raw []byte) ([]domain.OutstandingInvoice, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var invoices []domain.OutstandingInvoice
		if err := json.Unmarshal(raw, &invoices); err != nil {
			return nil, fmt.Errorf("decode outstanding invoices: %w", err)
		}
		return invoices, nil
	}
	var wrapped struct {
		Invoices []domain.OutstandingInvoice `json:"invoices"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode outstanding invoices: %w", err)
	}
	return wrapped.Invoices, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
