/*
	Package codec implements the hda stream format: a directory tree
	(files, subdirectories, symlinks) serialized into one linear,
	mostly-textual, binary-safe stream, and reconstructed from it again.

	The stream is a depth-first pre-order sequence of sentinel-framed
	header entries.  A `directory` header opens a scope; the scope's
	children follow in name-sorted order; a `footer` header closes it.
	A `file` header is followed immediately by exactly `length` raw
	payload bytes plus one newline (payload bytes may be anything,
	including sentinel text; only the parser *between* entries is
	line-oriented).  A single `metadata` entry may prefix the whole
	stream with build provenance; it plays no part in integrity.

	Each scope carries a sha256 accumulator.  The accumulator is fed the
	exact frame bytes of the scope's own directory header and of every
	file and symlink child, and the hex digest *string* returned by every
	subdirectory child.  The footer's `sha` field is the accumulator's
	digest before the footer frame itself is folded in; the digest after
	folding the footer frame is the value handed to the parent scope.
	Both the encoder and the decoder compute exactly this, so footer
	digests verify on decode.

	The decoder is streaming and single-pass: it reads the source once,
	never seeks, and holds no more than one buffered line of lookahead.
*/
package codec
