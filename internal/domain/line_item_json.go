package domain

import (
	"encoding/json"

	"github.com/projectthinkx/ds-sub001/internal/money"
)

// UnmarshalJSON accepts numbers or numeric strings for every numeric field,
// the way form inputs arrive from browsers. Anything unparseable becomes 0
// instead of failing the whole payload; required-field checks happen later at
// commit time. A missing status means committed: stored records predate the
// draft flag and API clients only mark the line still being edited.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	type textFields struct {
		MedicineName          string     `json:"medicine_name"`
		ItemMasterID          string     `json:"item_master_id"`
		ItemTypeID            string     `json:"item_type_id"`
		Category              string     `json:"category"`
		Subcategory           string     `json:"subcategory"`
		Manufacturer          string     `json:"manufacturer"`
		Unit                  string     `json:"unit"`
		BatchNumber           string     `json:"batch_number"`
		ExpiryDate            string     `json:"expiry_date"`
		ExpiryTrackingEnabled bool       `json:"expiry_tracking_enabled"`
		ItemPurpose           string     `json:"item_purpose"`
		Status                ItemStatus `json:"status"`

		Quantity           any `json:"quantity"`
		FreeQuantity       any `json:"free_quantity"`
		PurchasePrice      any `json:"purchase_price"`
		MRP                any `json:"mrp"`
		SalesPrice         any `json:"sales_price"`
		DiscountPercentage any `json:"discount_percentage"`
		GSTPercentage      any `json:"gst_percentage"`
	}

	var raw textFields
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*li = LineItem{
		MedicineName:          raw.MedicineName,
		ItemMasterID:          raw.ItemMasterID,
		ItemTypeID:            raw.ItemTypeID,
		Category:              raw.Category,
		Subcategory:           raw.Subcategory,
		Manufacturer:          raw.Manufacturer,
		Unit:                  raw.Unit,
		BatchNumber:           raw.BatchNumber,
		ExpiryDate:            raw.ExpiryDate,
		ExpiryTrackingEnabled: raw.ExpiryTrackingEnabled,
		ItemPurpose:           raw.ItemPurpose,
		Status:                raw.Status,
		Quantity:              money.IntFromAny(raw.Quantity),
		FreeQuantity:          money.IntFromAny(raw.FreeQuantity),
		PurchasePrice:         money.FromAny(raw.PurchasePrice),
		MRP:                   money.FromAny(raw.MRP),
		SalesPrice:            money.FromAny(raw.SalesPrice),
		DiscountPercentage:    money.FromAny(raw.DiscountPercentage),
		GSTPercentage:         money.FromAny(raw.GSTPercentage),
	}
	if li.Status == "" {
		li.Status = ItemCommitted
	}
	return nil
}
