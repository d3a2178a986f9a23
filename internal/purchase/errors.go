package purchase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/projectthinkx/ds-sub001/internal/domain"
)

var (
	// ErrDraftInProgress is returned when a second draft line would be opened
	// while one is still being edited.
	ErrDraftInProgress = errors.New("finish or discard the item in progress before adding another")
	ErrNoDraft         = errors.New("no item in progress")
	ErrItemIndex       = errors.New("item index out of range")
	ErrValidation      = errors.New("validation failed")
)

// HeaderIndex marks a ValidationError that belongs to the invoice rather
// than to one of its lines.
const HeaderIndex = -1

type ValidationError struct {
	Index   int
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Index == HeaderIndex {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("item %d %s: %s", e.Index+1, e.Field, e.Message)
}

// ValidationErrors carries every violated rule found by a gate.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Issues converts the errors to their wire form.
func (v ValidationErrors) Issues() []domain.ItemIssue {
	out := make([]domain.ItemIssue, 0, len(v))
	for _, e := range v {
		out = append(out, domain.ItemIssue{Index: e.Index, Field: e.Field, Message: e.Message})
	}
	return out
}

func (v ValidationErrors) withIndex(index int) ValidationErrors {
	for i := range v {
		v[i].Index = index
	}
	return v
}
