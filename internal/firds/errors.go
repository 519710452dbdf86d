package firds

import (
	"errors"
	"fmt"
)

// ErrCollectionConsumed is the cause of the parsing error yielded when a
// collection's records are iterated a second time. Reading the records again
// requires a new ExtractRoot.
var ErrCollectionConsumed = errors.New("record collection already consumed")

// NavigationError reports that the document does not have the expected shape
// on the way to the record collection
type NavigationError struct {
	// Step is the 1-based hop of the collection path; 0 is the root element
	Step     int
	Parent   string
	Index    int
	Expected string
	// Found is the local name at the expected position, empty when the
	// parent has fewer children
	Found string
}

func (e *NavigationError) Error() string {
	if e.Step == 0 {
		return fmt.Sprintf("unexpected document element <%s>, expected <%s>", e.Found, e.Expected)
	}
	if e.Found == "" {
		return fmt.Sprintf("navigation step %d: %s has no child at index %d, expected <%s>",
			e.Step, e.Parent, e.Index, e.Expected)
	}
	return fmt.Sprintf("navigation step %d: child %d of %s is <%s>, expected <%s>",
		e.Step, e.Index, e.Parent, e.Found, e.Expected)
}

// RecordError reports a record whose structure cannot be projected onto a row
type RecordError struct {
	// Index is the 1-based position among data records, header excluded
	Index   int
	Element string
	Offset  int64
	Reason  string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (<%s> ending at byte %d): %s", e.Index, e.Element, e.Offset, e.Reason)
}
