package patch

import (
	"errors"
	"strconv"
)

// Sentinel errors for patch loading and application.
var (
	// ErrSourceUnreadable indicates a configuration source could not be read or decoded.
	ErrSourceUnreadable = errors.New("patch source unreadable")
	// ErrMissingTitleID indicates a patch file has no usable title_id and cannot be indexed.
	ErrMissingTitleID = errors.New("missing title_id")
	// ErrUnrecognizedWidth indicates an edit's size token is not in the width table.
	ErrUnrecognizedWidth = errors.New("unrecognized width token")
	// ErrValueOutOfRange indicates a value does not fit in its declared width.
	ErrValueOutOfRange = errors.New("value out of range for width")
	// ErrMalformedAddress indicates an edit address is missing, not numeric, or wider than 32 bits.
	ErrMalformedAddress = errors.New("malformed address")
	// ErrMalformedValue indicates a field holds a value of the wrong type or unparsable text.
	ErrMalformedValue = errors.New("malformed value")
	// ErrDuplicatePatchID indicates two patches in one file share an id.
	ErrDuplicatePatchID = errors.New("duplicate patch id")
	// ErrDuplicateTitleID indicates two loaded files target the same title.
	ErrDuplicateTitleID = errors.New("duplicate title_id")
	// ErrWriteFailed indicates the memory writer rejected an edit.
	ErrWriteFailed = errors.New("memory write failed")
)

// Category classifies a diagnostic for programmatic handling.
type Category string

const (
	CatSourceUnreadable  Category = "source_unreadable"
	CatMissingTitleID    Category = "missing_title_id"
	CatUnrecognizedWidth Category = "unrecognized_width"
	CatValueOutOfRange   Category = "value_out_of_range"
	CatMalformedAddress  Category = "malformed_address"
	CatMalformedValue    Category = "malformed_value"
	CatDuplicatePatchID  Category = "duplicate_patch_id"
	CatDuplicateTitleID  Category = "duplicate_title_id"
	CatWriteFailed       Category = "write_failed"
)

// categories maps each sentinel to its category, in match order.
var categories = []struct {
	err error
	cat Category
}{
	{ErrSourceUnreadable, CatSourceUnreadable},
	{ErrMissingTitleID, CatMissingTitleID},
	{ErrUnrecognizedWidth, CatUnrecognizedWidth},
	{ErrValueOutOfRange, CatValueOutOfRange},
	{ErrMalformedAddress, CatMalformedAddress},
	{ErrMalformedValue, CatMalformedValue},
	{ErrDuplicatePatchID, CatDuplicatePatchID},
	{ErrDuplicateTitleID, CatDuplicateTitleID},
	{ErrWriteFailed, CatWriteFailed},
}

// CategoryFor returns the category of the first sentinel err wraps, or
// CatMalformedValue when none matches.
func CategoryFor(err error) Category {
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.cat
		}
	}
	return CatMalformedValue
}

// Diagnostic records a non-fatal problem found while loading or applying
// patches, with enough context to locate it in the source file.
type Diagnostic struct {
	Category Category
	Source   string
	PatchID  uint32
	HasPatch bool // PatchID is meaningful
	Edit     int  // index of the edit within its patch, -1 when not edit-scoped
	Field    string
	Err      error
}

// Error returns a human-readable string including source, patch and edit context.
func (d *Diagnostic) Error() string {
	s := d.Source
	if d.HasPatch {
		s += ": patch " + strconv.FormatUint(uint64(d.PatchID), 10)
	}
	if d.Edit >= 0 {
		s += ": edit " + strconv.Itoa(d.Edit)
	}
	if d.Field != "" {
		s += ": " + d.Field
	}
	return s + ": " + d.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (d *Diagnostic) Unwrap() error {
	return d.Err
}
