package kernel

// Error describes a kernel error. Kernel errors must be defined as global
// variables that are pointers to the Error structure. This requirement stems
// from the fact that the heap allocator may not be available (or may be the
// component reporting the error) so we cannot use errors.New.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
