package codec

import (
	"github.com/opencontainers/go-digest"

	hdx "github.com/BobKerns/houdini-expand"
)

// scopeHash is the running digest of one directory scope.  One is created
// when a directory header opens a scope, on both the encode and decode side,
// and both sides feed it identically: frame bytes for the scope's own header
// and for file/symlink children, digest strings for subdirectory children,
// and finally the footer's frame bytes after the footer's `sha` is fixed.
type scopeHash struct {
	digester digest.Digester
}

func newScopeHash() *scopeHash {
	return &scopeHash{digester: digest.SHA256.Digester()}
}

func (h *scopeHash) Write(p []byte) {
	h.digester.Hash().Write(p) // hash.Hash.Write never errors
}

func (h *scopeHash) WriteString(s string) {
	h.Write([]byte(s))
}

// Hex returns the digest of everything fed so far, without disturbing the
// accumulator; the footer `sha` is taken mid-stream this way.
func (h *scopeHash) Hex() hdx.DigestHex {
	return hdx.DigestHex(h.digester.Digest().Encoded())
}
