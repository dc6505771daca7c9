package errors

import (
	"fmt"
)

// InternalCompilerError reports a broken IR invariant. The optimizer relies
// on the frontend handing it well-formed bodies; when that contract is
// violated the pass stops immediately rather than producing wrong code.
type InternalCompilerError struct {
	Message string
}

func (e *InternalCompilerError) Error() string {
	return "internal compiler error: " + e.Message
}

// Bug raises an internal compiler error. It never returns.
func Bug(format string, args ...interface{}) {
	panic(&InternalCompilerError{Message: fmt.Sprintf(format, args...)})
}

// AsICE extracts an InternalCompilerError from a recovered panic value, if
// it is one.
func AsICE(recovered interface{}) (*InternalCompilerError, bool) {
	ice, ok := recovered.(*InternalCompilerError)
	return ice, ok
}
