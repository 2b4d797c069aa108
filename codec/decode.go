package codec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/opencontainers/go-digest"
	. "github.com/warpfork/go-errcat"
	billy "gopkg.in/src-d/go-billy.v4"

	hdx "github.com/BobKerns/houdini-expand"
)

// Decode consumes one stream from r, exactly once and strictly forward,
// materializing the tree it describes under dest and verifying every declared
// digest along the way.  It returns the root scope's digest.
//
// Any failure — malformed frame, unknown kind, hash mismatch, truncation,
// path escape, filesystem trouble — surfaces as the single ErrDecodeFailed
// category; the inner category and message ride along in the error details.
// Callers outside this package use that category as the trigger to fall back
// to an alternate retrieval path.  There is no partial recovery: the format
// has no resync marker, so one corrupt length field invalidates everything
// after it.
func Decode(
	ctx context.Context, // Cancellable; checked between entries.
	dest billy.Filesystem, // Materialization root.  Caller owns it after return.
	r io.Reader, // The stream.  Read once, never seeked.
	mon hdx.Monitor, // Optionally: log events during reconstruction.
) (hdx.DigestHex, error) {
	dgst, err := decode(ctx, dest, r, mon)
	if err != nil {
		return "", ErrorDetailed(hdx.ErrDecodeFailed,
			fmt.Sprintf("decode failed: %s", err),
			map[string]string{
				"cause": fmt.Sprintf("%s", Category(err)),
				"msg":   err.Error(),
			})
	}
	return dgst, nil
}

func decode(ctx context.Context, dest billy.Filesystem, r io.Reader, mon hdx.Monitor) (_ hdx.DigestHex, err error) {
	defer RequireErrorHasCategory(&err, hdx.ErrorCategory(""))
	dec := &decoder{
		dest: dest,
		fr:   frameReader{br: bufio.NewReader(r)},
		mon:  mon,
	}

	hdr, frame, err := dec.fr.readFrame()
	if err != nil {
		return "", err
	}
	if hdr == nil {
		return "", Errorf(hdx.ErrTruncatedStream, "empty stream")
	}
	// At most one metadata entry may prefix the stream; it has no integrity
	// role, so it is not fed to any accumulator.
	if meta, ok := hdr.(MetadataHeader); ok {
		mon.LogDetailed(hdx.LogDebug, "stream metadata", [][2]string{
			{"format_version", itoa(int64(meta.FormatVersion))},
			{"tool_version", meta.ToolVersion},
			{"path", meta.Path},
		})
		hdr, frame, err = dec.fr.readFrame()
		if err != nil {
			return "", err
		}
		if hdr == nil {
			return "", Errorf(hdx.ErrTruncatedStream, "stream ended after metadata entry")
		}
	}
	root, ok := hdr.(DirectoryHeader)
	if !ok {
		return "", Errorf(hdx.ErrMalformedHeader,
			"stream must open with a directory header (got %q)", hdr.headerKind())
	}
	return dec.decodeDir(ctx, root, frame)
}

type decoder struct {
	dest billy.Filesystem
	fr   frameReader
	mon  hdx.Monitor
}

// decodeDir runs one scope: the directory named by hdr through its matching
// footer.  Returns the scope digest handed up to the parent's accumulator.
func (dec *decoder) decodeDir(ctx context.Context, hdr DirectoryHeader, frame []byte) (hdx.DigestHex, error) {
	if err := checkInRoot(hdr.Name); err != nil {
		return "", err
	}
	if err := dec.dest.MkdirAll(hdr.Name, 0755); err != nil {
		return "", Errorf(hdx.ErrInoperablePath, "creating directory %q: %s", hdr.Name, err)
	}
	dec.mon.Logf(hdx.LogDebug, "directory: %s", hdr.Name)

	acc := newScopeHash()
	acc.Write(frame)

	for {
		if ctx.Err() != nil {
			return "", Errorf(hdx.ErrCancelled, "cancelled")
		}
		hdr2, frame2, err := dec.fr.readFrame()
		if err != nil {
			return "", err
		}
		if hdr2 == nil {
			return "", Errorf(hdx.ErrTruncatedStream,
				"stream ended before the footer of %q", hdr.Name)
		}
		switch h := hdr2.(type) {
		case FileHeader:
			if err := dec.decodeFile(h); err != nil {
				return "", err
			}
			acc.Write(frame2)
		case SymlinkHeader:
			if err := dec.decodeSymlink(h); err != nil {
				return "", err
			}
			acc.Write(frame2)
		case DirectoryHeader:
			sub, err := dec.decodeDir(ctx, h, frame2)
			if err != nil {
				return "", err
			}
			acc.WriteString(string(sub))
		case Footer:
			if got := acc.Hex(); got != h.SHA {
				return "", ErrorDetailed(hdx.ErrHashMismatch,
					fmt.Sprintf("directory %q hash mismatch: footer declares %s, accumulated %s",
						hdr.Name, h.SHA, got),
					map[string]string{
						"scope":    hdr.Name,
						"expected": string(h.SHA),
						"actual":   string(got),
					})
			}
			acc.Write(frame2)
			return acc.Hex(), nil
		case MetadataHeader:
			return "", Errorf(hdx.ErrMalformedHeader,
				"metadata entry inside scope %q; it may only prefix the stream", hdr.Name)
		default:
			return "", Errorf(hdx.ErrInternal, "unhandled header %T", hdr2)
		}
	}
}

// decodeFile materializes one file payload: exactly hdr.Length bytes streamed
// through a digester, then the trailing newline the framing requires.
func (dec *decoder) decodeFile(hdr FileHeader) error {
	if err := checkInRoot(hdr.Name); err != nil {
		return err
	}
	f, err := dec.dest.Create(hdr.Name)
	if err != nil {
		return Errorf(hdx.ErrInoperablePath, "creating %q: %s", hdr.Name, err)
	}
	digester := digest.SHA256.Digester()
	_, err = io.CopyN(io.MultiWriter(f, digester.Hash()), dec.fr.br, hdr.Length)
	if cerr := f.Close(); cerr != nil && err == nil {
		return Errorf(hdx.ErrInoperablePath, "closing %q: %s", hdr.Name, cerr)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return Errorf(hdx.ErrTruncatedStream,
			"stream ended inside the payload of %q (declared %d bytes)", hdr.Name, hdr.Length)
	}
	if err != nil {
		return Errorf(hdx.ErrInoperablePath, "writing %q: %s", hdr.Name, err)
	}
	nl, err := dec.fr.br.ReadByte()
	if err != nil {
		return Errorf(hdx.ErrTruncatedStream, "stream ended at the payload boundary of %q", hdr.Name)
	}
	if nl != '\n' {
		return Errorf(hdx.ErrMalformedHeader,
			"payload of %q not newline-terminated; length field is wrong", hdr.Name)
	}
	if got := hdx.DigestHex(digester.Digest().Encoded()); got != hdr.SHA256 {
		return ErrorDetailed(hdx.ErrHashMismatch,
			fmt.Sprintf("file %q hash mismatch: header declares %s, payload is %s", hdr.Name, hdr.SHA256, got),
			map[string]string{
				"file":     hdr.Name,
				"expected": string(hdr.SHA256),
				"actual":   string(got),
			})
	}
	dec.mon.Logf(hdx.LogDebug, "file: %s (%d bytes)", hdr.Name, hdr.Length)
	return nil
}

func (dec *decoder) decodeSymlink(hdr SymlinkHeader) error {
	if err := checkInRoot(hdr.Name); err != nil {
		return err
	}
	if err := checkInRoot(hdr.Target); err != nil {
		return err
	}
	if _, err := dec.dest.Lstat(hdr.Name); err == nil {
		dec.mon.Logf(hdx.LogWarn, "symlink already exists, leaving it untouched: %s", hdr.Name)
		return nil
	}
	// The header's target is root-relative; the link itself must carry a
	// target relative to its own parent so it resolves inside the root.
	target := relativeTo(path.Dir(hdr.Name), hdr.Target)
	if err := dec.dest.Symlink(target, hdr.Name); err != nil {
		return Errorf(hdx.ErrInoperablePath, "creating symlink %q: %s", hdr.Name, err)
	}
	dec.mon.Logf(hdx.LogDebug, "symlink: %s -> %s", hdr.Name, target)
	return nil
}

// relativeTo rewrites the root-relative path `to` as a path relative to the
// root-relative directory `fromDir`.  Both are already Cleaned.
func relativeTo(fromDir, to string) string {
	if fromDir == "." {
		return to
	}
	from := strings.Split(fromDir, "/")
	dest := strings.Split(to, "/")
	common := 0
	for common < len(from) && common < len(dest) && from[common] == dest[common] {
		common++
	}
	parts := make([]string, 0, len(from)-common+len(dest)-common)
	for i := common; i < len(from); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, dest[common:]...)
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}
