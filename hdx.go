package hdx

// Vocabulary shared by every part of houdini-expand.
//
// houdini-expand is a git clean/smudge filter: on clean, a binary HDA is
// expanded (by the external hotl tool) into a directory tree and that tree is
// serialized into a single hash-chained textual stream suitable for a git
// blob; on smudge, the stream is decoded back into a tree and collapsed into
// the original binary.
//
// The stream format itself lives in the codec package; this package holds the
// error categories, exit codes, and the monitor plumbing that the codec,
// session, and filter layers all speak.

// Hex-encoded sha256 digest, as it appears in footer `sha` and file `sha256`
// fields on the wire.  Always lowercase, never prefixed with an algorithm tag.
type DigestHex string

func (d DigestHex) String() string { return string(d) }

// Exit codes for the CLI surface.
type ExitCode int

const (
	ExitSuccess        ExitCode = 0
	ExitUsage          ExitCode = 1
	ExitError          ExitCode = 2
	ExitDecodeFailed   ExitCode = 3 // the documented lfs-fallback signal, when there is no fallback left
	ExitNotImplemented ExitCode = 110
)

// Map an error category onto the exit code the CLI should surface.
func ExitCodeForCategory(category interface{}) ExitCode {
	switch category {
	case nil:
		return ExitSuccess
	case ErrUsage:
		return ExitUsage
	case ErrDecodeFailed:
		return ExitDecodeFailed
	default:
		return ExitError
	}
}
