// Package errkind defines the core-boundary error vocabulary shared by the
// filesystem, network and process subsystems. Every public operation in
// those packages returns one of these kinds (wrapped with context via
// xerrors) instead of an ad-hoc error, so the syscall dispatcher has a
// single, finite set of things to translate into negative integers.
package errkind

import "golang.org/x/xerrors"

// Kind identifies the class of failure. The zero value is not a valid
// failure; callers compare against the named constants.
type Kind int

const (
	_ Kind = iota
	NotFound
	NotADirectory
	IsADirectory
	AlreadyExists
	InvalidArgument
	NoPermission
	OutOfMemory
	OutOfSpace
	Busy
	IOError
	Timeout
	NotSupported
	BadChecksum
	BadMagic
	Overflow
)

var names = map[Kind]string{
	NotFound:        "not found",
	NotADirectory:   "not a directory",
	IsADirectory:    "is a directory",
	AlreadyExists:   "already exists",
	InvalidArgument: "invalid argument",
	NoPermission:    "no permission",
	OutOfMemory:     "out of memory",
	OutOfSpace:      "out of space",
	Busy:            "busy",
	IOError:         "I/O error",
	Timeout:         "timed out",
	NotSupported:    "not supported",
	BadChecksum:     "bad checksum",
	BadMagic:        "bad magic",
	Overflow:        "overflow",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown error kind"
}

// Error is a Kind carrying a message, satisfying the error interface so it
// composes with xerrors.Errorf("...: %w", err) at call sites.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "mkdir", "resolve"
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind for op, optionally wrapping cause.
func New(op string, kind Kind, cause error) error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !xerrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf extracts the Kind from err, or returns 0 (not a valid kind) if err
// does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if xerrors.As(err, &e) {
		return e.Kind
	}
	return 0
}
