package compiler

import (
	"fmt"
	"io"
)

// Error is a user-facing compile diagnostic located at a token. The first
// Error aborts compilation.
type Error struct {
	Msg   string
	Line  int
	Start int
	End   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("err: %s at l:%d:%d-%d", e.Msg, e.Line, e.Start, e.End)
}

// Render writes the diagnostic line to w.
func (e *Error) Render(w io.Writer) error {
	_, err := fmt.Fprintln(w, e.Error())
	return err
}

// errorAt builds an Error spanning tok.
func errorAt(tok Token, format string, args ...any) *Error {
	return &Error{
		Msg:   fmt.Sprintf(format, args...),
		Line:  tok.Line,
		Start: tok.Col,
		End:   tok.Col + tok.Len(),
	}
}

// InternalError reports a compiler defect or an exceeded compiler limit,
// never a problem with the program being compiled.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Msg
}
