package purchase

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

func TestSheetAllowsOneDraft(t *testing.T) {
	s := NewSheet()
	require.NoError(t, s.AddDraft(NewDraftItem()))

	err := s.AddDraft(NewDraftItem())
	assert.ErrorIs(t, err, ErrDraftInProgress)

	s.DiscardDraft()
	assert.NoError(t, s.AddDraft(NewDraftItem()))
}

func TestCommitDraftFailureKeepsDraft(t *testing.T) {
	s := NewSheet()
	require.NoError(t, s.AddDraft(domain.LineItem{MedicineName: "Paracetamol"}))

	_, err := s.CommitDraft(&domain.ItemMaster{ExpiryTrackingEnabled: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := map[string]bool{}
	for _, e := range verrs {
		fields[e.Field] = true
	}
	assert.Equal(t, map[string]bool{"batch_number": true, "expiry_date": true, "quantity": true, "mrp": true}, fields)

	draft, ok := s.Draft()
	require.True(t, ok)
	assert.Equal(t, "Paracetamol", draft.MedicineName)
	assert.Empty(t, s.Committed())
}

func TestCommitDraftMovesItem(t *testing.T) {
	s := NewSheet()
	require.NoError(t, s.AddDraft(committedItem(10, "2.50", "0", "12")))
	require.NoError(t, s.UpdateDraft(func(li *domain.LineItem) { li.ExpiryDate = "2027-03-31" }))

	item, err := s.CommitDraft(&domain.ItemMaster{ExpiryTrackingEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ItemCommitted, item.Status)
	assert.False(t, s.HasDraft())
	assert.Len(t, s.Committed(), 1)
	assert.True(t, s.Totals(decimal.Zero).GrandTotal.Equal(d("28")))
}

func TestPreviewIncludesDraftTotalsDoNot(t *testing.T) {
	s, err := LoadSheet([]domain.LineItem{committedItem(1, "10", "0", "0")})
	require.NoError(t, err)
	require.NoError(t, s.AddDraft(committedItem(2, "5", "0", "0")))

	assert.True(t, s.Totals(decimal.Zero).GrandTotal.Equal(d("10")))
	assert.True(t, s.PreviewTotals(decimal.Zero).GrandTotal.Equal(d("20")))
}

func TestEditCommittedRerunsGate(t *testing.T) {
	s, err := LoadSheet([]domain.LineItem{committedItem(1, "10", "0", "0")})
	require.NoError(t, err)

	bad := committedItem(0, "10", "0", "0")
	err = s.EditCommitted(0, bad, nil)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, s.Committed()[0].Quantity)

	good := committedItem(4, "10", "0", "0")
	good.Status = domain.ItemDraft
	require.NoError(t, s.EditCommitted(0, good, nil))
	assert.Equal(t, domain.ItemCommitted, s.Committed()[0].Status)

	assert.ErrorIs(t, s.EditCommitted(3, good, nil), ErrItemIndex)
	assert.ErrorIs(t, s.RemoveCommitted(-1), ErrItemIndex)
	require.NoError(t, s.RemoveCommitted(0))
	assert.Empty(t, s.Committed())
}

func TestLoadSheetRejectsTwoDrafts(t *testing.T) {
	a := NewDraftItem()
	b := NewDraftItem()
	_, err := LoadSheet([]domain.LineItem{a, committedItem(1, "1", "0", "0"), b})
	assert.ErrorIs(t, err, ErrDraftInProgress)
}

func TestUpdateDraftWithoutDraft(t *testing.T) {
	s := NewSheet()
	assert.ErrorIs(t, s.UpdateDraft(func(*domain.LineItem) {}), ErrNoDraft)
	_, err := s.CommitDraft(nil)
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestMasterExpiryFlagWins(t *testing.T) {
	item := committedItem(1, "1", "0", "0")
	item.ExpiryTrackingEnabled = true

	assert.NoError(t, ValidateItem(item, &domain.ItemMaster{ExpiryTrackingEnabled: false}))
	assert.Error(t, ValidateItem(item, nil))

	item.ExpiryDate = "31/03/2027"
	assert.ErrorIs(t, ValidateItem(item, nil), ErrValidation)
}
