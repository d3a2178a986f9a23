package purchase

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

// Sheet is the working list of one invoice: committed lines plus at most one
// draft. It is not safe for concurrent use.
type Sheet struct {
	committed []domain.LineItem
	draft     *domain.LineItem
}

func NewSheet() *Sheet {
	return &Sheet{}
}

// LoadSheet splits items into committed lines and the draft. More than one
// draft is rejected.
func LoadSheet(items []domain.LineItem) (*Sheet, error) {
	s := NewSheet()
	for _, item := range items {
		if !item.IsDraft() {
			item.Status = domain.ItemCommitted
			s.committed = append(s.committed, item)
			continue
		}
		if s.draft != nil {
			return nil, ErrDraftInProgress
		}
		d := item
		d.Status = domain.ItemDraft
		s.draft = &d
	}
	return s, nil
}

// NewDraftItem is the blank line the entry screen starts from.
func NewDraftItem() domain.LineItem {
	return domain.LineItem{
		Quantity:      1,
		GSTPercentage: decimal.NewFromInt(12),
		Status:        domain.ItemDraft,
	}
}

// AddDraft opens a new draft from prefill.
func (s *Sheet) AddDraft(prefill domain.LineItem) error {
	if s.draft != nil {
		return ErrDraftInProgress
	}
	prefill.Status = domain.ItemDraft
	s.draft = &prefill
	return nil
}

func (s *Sheet) UpdateDraft(fn func(*domain.LineItem)) error {
	if s.draft == nil {
		return ErrNoDraft
	}
	fn(s.draft)
	s.draft.Status = domain.ItemDraft
	return nil
}

func (s *Sheet) DiscardDraft() {
	s.draft = nil
}

// CommitDraft moves the draft to the committed list when it passes
// ValidateItem. On failure the draft stays as it was.
func (s *Sheet) CommitDraft(master *domain.ItemMaster) (domain.LineItem, error) {
	if s.draft == nil {
		return domain.LineItem{}, ErrNoDraft
	}
	if err := ValidateItem(*s.draft, master); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return domain.LineItem{}, verrs.withIndex(len(s.committed))
		}
		return domain.LineItem{}, err
	}
	item := *s.draft
	item.Status = domain.ItemCommitted
	s.committed = append(s.committed, item)
	s.draft = nil
	return item, nil
}

// EditCommitted replaces a committed line. The line stays committed, so the
// replacement has to pass the same gate as a first commit.
func (s *Sheet) EditCommitted(index int, item domain.LineItem, master *domain.ItemMaster) error {
	if index < 0 || index >= len(s.committed) {
		return ErrItemIndex
	}
	if err := ValidateItem(item, master); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return verrs.withIndex(index)
		}
		return err
	}
	item.Status = domain.ItemCommitted
	s.committed[index] = item
	return nil
}

func (s *Sheet) RemoveCommitted(index int) error {
	if index < 0 || index >= len(s.committed) {
		return ErrItemIndex
	}
	s.committed = append(s.committed[:index], s.committed[index+1:]...)
	return nil
}

// Committed returns a copy of the committed lines.
func (s *Sheet) Committed() []domain.LineItem {
	out := make([]domain.LineItem, len(s.committed))
	copy(out, s.committed)
	return out
}

func (s *Sheet) Draft() (domain.LineItem, bool) {
	if s.draft == nil {
		return domain.LineItem{}, false
	}
	return *s.draft, true
}

func (s *Sheet) HasDraft() bool {
	return s.draft != nil
}

func (s *Sheet) Totals(roundOff decimal.Decimal) domain.Totals {
	return ComputeTotals(s.committed, roundOff)
}

func (s *Sheet) PreviewTotals(roundOff decimal.Decimal) domain.Totals {
	items := s.Committed()
	if s.draft != nil {
		items = append(items, *s.draft)
	}
	return PreviewTotals(items, roundOff)
}
