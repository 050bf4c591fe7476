package backlog

import (
	"fmt"
	"strings"
)

// ClosePolicy decides what happens to the selection when the sidebar closes.
type ClosePolicy int

const (
	// ClearSelection forgets the selected ticket and its details.
	ClearSelection ClosePolicy = iota
	// RetainSelection keeps them; RETRY_LOAD_DETAILS and later renders still see them.
	RetainSelection
)

func (p ClosePolicy) String() string {
	switch p {
	case ClearSelection:
		return "clear"
	case RetainSelection:
		return "retain"
	default:
		return fmt.Sprintf("ClosePolicy(%d)", int(p))
	}
}

// ParseClosePolicy accepts "clear" and "retain".
func ParseClosePolicy(s string) (ClosePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clear":
		return ClearSelection, nil
	case "retain":
		return RetainSelection, nil
	default:
		return 0, fmt.Errorf("unknown close policy %q", s)
	}
}

// UpdateErrorPolicy decides how a failed title update surfaces.
type UpdateErrorPolicy int

const (
	// UpdateErrorSeparate keeps update failures apart: UpdateErr and the updateError tag.
	UpdateErrorSeparate UpdateErrorPolicy = iota
	// UpdateErrorToDetails reports update failures as a details error.
	UpdateErrorToDetails
	// UpdateErrorIgnore only logs update failures.
	UpdateErrorIgnore
)

func (p UpdateErrorPolicy) String() string {
	switch p {
	case UpdateErrorSeparate:
		return "separate"
	case UpdateErrorToDetails:
		return "details"
	case UpdateErrorIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("UpdateErrorPolicy(%d)", int(p))
	}
}

// ParseUpdateErrorPolicy accepts "separate", "details" and "ignore".
func ParseUpdateErrorPolicy(s string) (UpdateErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "separate":
		return UpdateErrorSeparate, nil
	case "details":
		return UpdateErrorToDetails, nil
	case "ignore":
		return UpdateErrorIgnore, nil
	default:
		return 0, fmt.Errorf("unknown update error policy %q", s)
	}
}

// Policy resolves the behaviours the backlog leaves open. The zero value is the default.
type Policy struct {
	Close       ClosePolicy
	UpdateError UpdateErrorPolicy
}
