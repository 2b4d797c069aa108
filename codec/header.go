package codec

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	. "github.com/warpfork/go-errcat"

	hdx "github.com/BobKerns/houdini-expand"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

type writeFlusher interface {
	io.Writer
	Flush() error
}

// writeFrame emits one header frame:
//
//	\n<sentinel>\n type:<kind>\n <key>:<value>...\n <sentinel>\n
//
// and returns the exact bytes written; callers feed those bytes into the
// scope's hash accumulator.  The sink is flushed before returning because the
// stream may switch from text-line framing to exact-byte-count framing (a file
// payload) immediately after a frame.
func writeFrame(w writeFlusher, hdr Header) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('\n')
	buf.WriteString(Sentinel)
	buf.WriteByte('\n')
	buf.WriteString("type:")
	buf.WriteString(string(hdr.headerKind()))
	buf.WriteByte('\n')
	for _, f := range hdr.wireFields() {
		buf.WriteString(f.key)
		buf.WriteByte(':')
		buf.WriteString(f.value)
		buf.WriteByte('\n')
	}
	buf.WriteString(Sentinel)
	buf.WriteByte('\n')
	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "writing header frame: %s", err)
	}
	if err := w.Flush(); err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "flushing header frame: %s", err)
	}
	return buf.Bytes(), nil
}

// frameReader consumes header frames from a stream, one at a time, strictly
// forward.  The same bufio.Reader must also be used for payload reads so that
// no lookahead is lost between the two framing modes.
type frameReader struct {
	br *bufio.Reader
}

// readFrame returns the next parsed header together with the canonical frame
// bytes (reassembled from the raw lines consumed, which for any frame our
// writer produced is byte-identical to what was written — the hash
// accumulators depend on that).
//
// A nil header with a nil error signals end-of-stream at this scope: either a
// clean EOF before any sentinel, or an empty frame (two consecutive
// sentinels).  EOF in the middle of a frame is ErrTruncatedStream.
func (fr *frameReader) readFrame() (Header, []byte, error) {
	// Scan forward to the opening sentinel, tolerating blank lines.
	for {
		line, err := fr.readLine()
		if err == io.EOF {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if line == Sentinel {
			break
		}
		if line != "" {
			return nil, nil, Errorf(hdx.ErrMalformedHeader, "expected sentinel line, got %q", line)
		}
	}

	// Collect raw field lines up to the closing sentinel.
	var raw []string
	for {
		line, err := fr.readLine()
		if err == io.EOF {
			return nil, nil, Errorf(hdx.ErrTruncatedStream, "stream ended inside a header frame")
		}
		if err != nil {
			return nil, nil, err
		}
		if line == Sentinel {
			break
		}
		raw = append(raw, line)
	}
	if len(raw) == 0 {
		// An empty frame means no more headers at this scope.
		return nil, nil, nil
	}

	hdr, err := parseFrame(raw)
	if err != nil {
		return nil, nil, err
	}
	return hdr, canonicalFrame(raw), nil
}

func (fr *frameReader) readLine() (string, error) {
	line, err := fr.br.ReadString('\n')
	if err == io.EOF && line == "" {
		return "", io.EOF
	}
	if err != nil && err != io.EOF {
		return "", Errorf(hdx.ErrInoperablePath, "reading stream: %s", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func canonicalFrame(raw []string) []byte {
	var buf bytes.Buffer
	buf.WriteByte('\n')
	buf.WriteString(Sentinel)
	buf.WriteByte('\n')
	for _, line := range raw {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteString(Sentinel)
	buf.WriteByte('\n')
	return buf.Bytes()
}

func parseFrame(raw []string) (Header, error) {
	fields := make(map[string]string, len(raw))
	order := make([]string, 0, len(raw))
	for _, line := range raw {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, Errorf(hdx.ErrMalformedHeader, "header line %q lacks a ':' separator", line)
		}
		key = strings.TrimSpace(key)
		if _, dup := fields[key]; dup {
			return nil, Errorf(hdx.ErrMalformedHeader, "duplicate header field %q", key)
		}
		fields[key] = strings.TrimSpace(value)
		order = append(order, key)
	}
	kindValue, ok := fields["type"]
	if !ok {
		return nil, Errorf(hdx.ErrMalformedHeader, "header frame has no 'type' field")
	}
	kind := Kind(kindValue)
	schema, ok := headerSchemas[kind]
	if !ok {
		return nil, Errorf(hdx.ErrUnknownEntryKind, "unknown entry kind %q", kindValue)
	}
	return buildHeader(kind, schema, fields, order)
}

func buildHeader(kind Kind, schema []fieldSpec, fields map[string]string, order []string) (Header, error) {
	// Every incoming field must be declared for the kind, and every declared
	// field must be present.
	declared := map[string]fieldSpec{"type": {"type", fieldText}}
	for _, spec := range schema {
		declared[spec.name] = spec
	}
	for _, key := range order {
		if _, ok := declared[key]; !ok {
			return nil, Errorf(hdx.ErrMalformedHeader, "field %q is not declared for kind %q", key, kind)
		}
	}
	text := func(name string) (string, error) {
		v, ok := fields[name]
		if !ok {
			return "", Errorf(hdx.ErrMalformedHeader, "kind %q requires field %q", kind, name)
		}
		return v, nil
	}
	wirePath := func(name string) (string, error) {
		v, err := text(name)
		if err != nil {
			return "", err
		}
		return cleanWirePath(v)
	}
	integer := func(name string) (int64, error) {
		v, err := text(name)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, Errorf(hdx.ErrMalformedHeader, "field %q must be a decimal integer (got %q)", name, v)
		}
		return n, nil
	}

	switch kind {
	case KindDirectory:
		name, err := wirePath("name")
		if err != nil {
			return nil, err
		}
		return DirectoryHeader{Name: name}, nil
	case KindFile:
		name, err := wirePath("name")
		if err != nil {
			return nil, err
		}
		sha, err := text("sha256")
		if err != nil {
			return nil, err
		}
		length, err := integer("length")
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, Errorf(hdx.ErrMalformedHeader, "file %q declares negative length %d", name, length)
		}
		return FileHeader{Name: name, SHA256: hdx.DigestHex(sha), Length: length}, nil
	case KindSymlink:
		name, err := wirePath("name")
		if err != nil {
			return nil, err
		}
		target, err := wirePath("target")
		if err != nil {
			return nil, err
		}
		return SymlinkHeader{Name: name, Target: target}, nil
	case KindFooter:
		sha, err := text("sha")
		if err != nil {
			return nil, err
		}
		return Footer{SHA: hdx.DigestHex(sha)}, nil
	case KindMetadata:
		version, err := integer("format_version")
		if err != nil {
			return nil, err
		}
		toolVersion, err := text("tool_version")
		if err != nil {
			return nil, err
		}
		toolCommit, err := text("tool_commit")
		if err != nil {
			return nil, err
		}
		rt, err := text("runtime")
		if err != nil {
			return nil, err
		}
		p, err := wirePath("path")
		if err != nil {
			return nil, err
		}
		date, err := text("date")
		if err != nil {
			return nil, err
		}
		return MetadataHeader{
			FormatVersion: int(version),
			ToolVersion:   toolVersion,
			ToolCommit:    toolCommit,
			Runtime:       rt,
			Path:          p,
			Date:          date,
		}, nil
	default:
		return nil, Errorf(hdx.ErrInternal, "no builder for kind %q", kind)
	}
}
