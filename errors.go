package hdx

// All errors raised in this project are category-tagged via go-errcat.
// Functions at package boundaries declare this with
// `defer errcat.RequireErrorHasCategory(&err, hdx.ErrorCategory(""))`.
type ErrorCategory string

const (
	// Errors in arguments or invocation.
	ErrUsage ErrorCategory = "hdx-usage-error"

	// A header frame could not be parsed: missing separator, a field name
	// not declared for the entry kind, a failed typed conversion, or a
	// `type` value outside the closed kind set when dispatching schemas.
	ErrMalformedHeader ErrorCategory = "hdx-malformed-header"

	// A syntactically fine header whose `type` names no known entry kind.
	ErrUnknownEntryKind ErrorCategory = "hdx-unknown-entry-kind"

	// The source tree holds a filesystem object the format cannot
	// represent (device, socket, fifo).  Fatal to the whole encode.
	ErrUnsupportedEntryKind ErrorCategory = "hdx-unsupported-entry-kind"

	// A declared digest does not match the computed one, at file payload
	// or directory footer scope.
	ErrHashMismatch ErrorCategory = "hdx-hash-mismatch"

	// Input ended before the matching footer of an open scope.
	ErrTruncatedStream ErrorCategory = "hdx-truncated-stream"

	// A symlink target or entry name resolves outside the tree root.
	ErrPathEscape ErrorCategory = "hdx-path-escape"

	// The local filesystem didn't cooperate while reading a source tree or
	// materializing a decoded one (permissions, vanished files, etc).
	ErrInoperablePath ErrorCategory = "hdx-inoperable-path"

	// The external converter tool (hotl) could not be found or exited nonzero.
	ErrConverterRun ErrorCategory = "hdx-converter-run"

	// git interaction trouble: no repository, unreadable or unwritable config.
	ErrGit ErrorCategory = "hdx-git"

	// git-lfs interaction trouble: filter not configured or subprocess failed.
	ErrLFS ErrorCategory = "hdx-lfs"

	// The single category surfaced out of the top-level decode boundary.
	// Every decode-time failure, whatever its inner category, wraps to this;
	// callers treat it as the signal to fall back to lfs retrieval.
	// The inner category and message ride along in the error details.
	ErrDecodeFailed ErrorCategory = "hdx-decode-failed"

	// A context cancelled a long-running encode or decode part-way through.
	ErrCancelled ErrorCategory = "hdx-cancelled"

	// Invariant breakage; please report a bug.
	ErrInternal ErrorCategory = "hdx-internal"
)
