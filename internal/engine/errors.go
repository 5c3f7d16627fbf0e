package engine

import "fmt"

// BongoError is implemented by every error variant of §7's taxonomy, each
// reporting the wire "successful" code its variant maps to.
type BongoError interface {
	error
	SuccessCode() int
}

// ParseError covers malformed SQL or an unsupported construct. Wire code 1.
type ParseError struct{ Msg string }

func (e *ParseError) Error() string   { return e.Msg }
func (e *ParseError) SuccessCode() int { return 1 }

// SchemaError covers unknown table/column, duplicate CREATE, missing DROP,
// or an INSERT column list mismatching the schema. Wire code 2.
type SchemaError struct{ Msg string }

func (e *SchemaError) Error() string   { return e.Msg }
func (e *SchemaError) SuccessCode() int { return 2 }

func schemaErrf(format string, a ...any) *SchemaError {
	return &SchemaError{Msg: fmt.Sprintf(format, a...)}
}

// IoError covers a disk read/write failure during FLUSH or load. Wire
// code 2.
type IoError struct{ Msg string }

func (e *IoError) Error() string   { return e.Msg }
func (e *IoError) SuccessCode() int { return 2 }

func ioErrf(format string, a ...any) *IoError {
	return &IoError{Msg: fmt.Sprintf(format, a...)}
}

// InternalError covers an invariant violation: logged server-side, the
// client only sees a generic failure message. Wire code 2.
type InternalError struct{ Msg string }

func (e *InternalError) Error() string   { return e.Msg }
func (e *InternalError) SuccessCode() int { return 2 }

func internalErrf(format string, a ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, a...)}
}
