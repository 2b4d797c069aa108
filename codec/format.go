package codec

import (
	"path"
	"strings"

	. "github.com/warpfork/go-errcat"

	hdx "github.com/BobKerns/houdini-expand"
)

// The fixed 8-character sentinel; the same token opens and closes every
// header frame.  Chosen by the format, not configurable.
const Sentinel = "--------"

// Bumped only when the stream layout changes incompatibly.
const FormatVersion = 1

// Entry kinds form a closed set; the `type` field of a frame names one.
type Kind string

const (
	KindMetadata  Kind = "metadata"
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
	KindSymlink   Kind = "symlink"
	KindFooter    Kind = "footer"
)

// Header is the closed union of parsed entry headers.
type Header interface {
	headerKind() Kind
	wireFields() []wirePair
}

type DirectoryHeader struct {
	Name string // root-relative path; "." for the tree root
}

type FileHeader struct {
	Name   string
	SHA256 hdx.DigestHex // digest of exactly the payload bytes
	Length int64         // payload byte count, excluding the trailing newline
}

type SymlinkHeader struct {
	Name   string
	Target string // root-relative, already resolved by the encoder
}

type Footer struct {
	SHA hdx.DigestHex // scope digest, pre-footer
}

type MetadataHeader struct {
	FormatVersion int
	ToolVersion   string
	ToolCommit    string
	Runtime       string
	Path          string
	Date          string
}

func (DirectoryHeader) headerKind() Kind { return KindDirectory }
func (FileHeader) headerKind() Kind      { return KindFile }
func (SymlinkHeader) headerKind() Kind   { return KindSymlink }
func (Footer) headerKind() Kind          { return KindFooter }
func (MetadataHeader) headerKind() Kind  { return KindMetadata }

type wirePair struct {
	key, value string
}

func (h DirectoryHeader) wireFields() []wirePair {
	return []wirePair{{"name", h.Name}}
}
func (h FileHeader) wireFields() []wirePair {
	return []wirePair{{"name", h.Name}, {"sha256", string(h.SHA256)}, {"length", itoa(h.Length)}}
}
func (h SymlinkHeader) wireFields() []wirePair {
	return []wirePair{{"name", h.Name}, {"target", h.Target}}
}
func (h Footer) wireFields() []wirePair {
	return []wirePair{{"sha", string(h.SHA)}}
}
func (h MetadataHeader) wireFields() []wirePair {
	return []wirePair{
		{"format_version", itoa(int64(h.FormatVersion))},
		{"tool_version", h.ToolVersion},
		{"tool_commit", h.ToolCommit},
		{"runtime", h.Runtime},
		{"path", h.Path},
		{"date", h.Date},
	}
}

// Field value types drive parsing: ints parse as decimal, paths as
// slash-normalized relative paths, everything else is opaque trimmed text.
type fieldType uint8

const (
	fieldText fieldType = iota
	fieldInt
	fieldPath
)

type fieldSpec struct {
	name string
	typ  fieldType
}

// The static per-kind field tables.  Wire order is declaration order.
// The discriminating `type` field is implicit and always first on the wire.
var headerSchemas = map[Kind][]fieldSpec{
	KindDirectory: {{"name", fieldPath}},
	KindFile:      {{"name", fieldPath}, {"sha256", fieldText}, {"length", fieldInt}},
	KindSymlink:   {{"name", fieldPath}, {"target", fieldPath}},
	KindFooter:    {{"sha", fieldText}},
	KindMetadata: {
		{"format_version", fieldInt},
		{"tool_version", fieldText},
		{"tool_commit", fieldText},
		{"runtime", fieldText},
		{"path", fieldPath},
		{"date", fieldText},
	},
}

// Normalize a path field value.  Rejects absolute paths outright; escape
// checks (".." climbing out of the root) are the caller's to make, because
// only the caller knows whether it is resolving against a real root.
func cleanWirePath(value string) (string, error) {
	p := strings.TrimSpace(value)
	if p == "" {
		return "", Errorf(hdx.ErrMalformedHeader, "empty path field")
	}
	if strings.HasPrefix(p, "/") {
		return "", Errorf(hdx.ErrMalformedHeader, "path fields must be relative (got %q)", p)
	}
	return path.Clean(strings.ReplaceAll(p, "\\", "/")), nil
}

// Reject a root-relative path that climbs out of the tree root.
func checkInRoot(p string) error {
	if p == ".." || strings.HasPrefix(p, "../") {
		return Errorf(hdx.ErrPathEscape, "path %q resolves outside the tree root", p)
	}
	return nil
}
