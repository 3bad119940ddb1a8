package hidcore

import "errors"

// Sentinel errors for the four classes of failure this package
// detects: malformed descriptors, resource exhaustion, report
// mismatches, and concurrent misuse. Checkable via errors.Is; all are
// wrapped with fmt.Errorf("%w: ...") at the point of detection to
// carry context.
var (
	// ErrUnsupportedItem: long item, or an item tag/type the parser
	// does not recognize.
	ErrUnsupportedItem = errors.New("hidcore: unsupported descriptor item")

	// ErrTruncatedItem: fewer bytes remain than an item's declared
	// payload size.
	ErrTruncatedItem = errors.New("hidcore: truncated descriptor item")

	// ErrArenaExhausted: the fixed-capacity arena has no room left
	// for the next report or segment record.
	ErrArenaExhausted = errors.New("hidcore: arena exhausted")

	// ErrUnknownReportID: ParseReport's leading report-ID byte does
	// not match any report produced by the last ParseDescriptor.
	ErrUnknownReportID = errors.New("hidcore: unknown report id")

	// ErrShortReport: the report payload is shorter than its
	// descriptor-declared bit length requires.
	ErrShortReport = errors.New("hidcore: report shorter than declared length")

	// ErrSegmentOutOfBounds: a segment's bit range exceeds its
	// report's declared length.
	ErrSegmentOutOfBounds = errors.New("hidcore: segment exceeds report length")

	// ErrConcurrentAccess: ParseDescriptor and ParseReport (or two
	// calls to either) were invoked concurrently on the same Parser,
	// violating its single-threaded-per-instance contract.
	ErrConcurrentAccess = errors.New("hidcore: concurrent access to parser")

	// ErrUnsupportedRange: ConvertRange was asked to convert a custom
	// or 32-bit logical range, which it does not support.
	ErrUnsupportedRange = errors.New("hidcore: unsupported value range")
)
