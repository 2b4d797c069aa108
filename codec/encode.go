package codec

import (
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"sort"

	"github.com/opencontainers/go-digest"
	. "github.com/warpfork/go-errcat"
	billy "gopkg.in/src-d/go-billy.v4"

	hdx "github.com/BobKerns/houdini-expand"
)

// Encode serializes the tree rooted at src into w and returns the root
// scope's digest.  The stream is deterministic: the same tree content and
// structure always yields byte-identical output.
//
// Encode-side errors are fatal and propagate with their own categories
// (there is no fallback path for producing the archive): ErrPathEscape for a
// symlink pointing outside the tree, ErrUnsupportedEntryKind for nodes the
// format cannot represent, ErrInoperablePath for filesystem trouble.
func Encode(
	ctx context.Context, // Cancellable; checked between entries.
	src billy.Filesystem, // The tree to serialize, rooted at the fs root.
	w io.Writer, // Destination stream.
	mon hdx.Monitor, // Optionally: log events during the walk.
) (_ hdx.DigestHex, err error) {
	defer RequireErrorHasCategory(&err, hdx.ErrorCategory(""))
	enc := &encoder{
		src: src,
		bw:  bufio.NewWriter(w),
		mon: mon,
	}
	dgst, err := enc.encodeDir(ctx, ".")
	if err != nil {
		return "", err
	}
	if err := enc.bw.Flush(); err != nil {
		return "", Errorf(hdx.ErrInoperablePath, "flushing stream: %s", err)
	}
	return dgst, nil
}

type encoder struct {
	src billy.Filesystem
	bw  *bufio.Writer
	mon hdx.Monitor
}

func (enc *encoder) encodeDir(ctx context.Context, dir string) (hdx.DigestHex, error) {
	frame, err := writeFrame(enc.bw, DirectoryHeader{Name: dir})
	if err != nil {
		return "", err
	}
	acc := newScopeHash()
	acc.Write(frame)

	infos, err := enc.src.ReadDir(dir)
	if err != nil {
		return "", Errorf(hdx.ErrInoperablePath, "listing %q: %s", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	for _, fi := range infos {
		if ctx.Err() != nil {
			return "", Errorf(hdx.ErrCancelled, "cancelled")
		}
		child := path.Join(dir, fi.Name())
		switch {
		case fi.IsDir():
			sub, err := enc.encodeDir(ctx, child)
			if err != nil {
				return "", err
			}
			acc.WriteString(string(sub))
		case fi.Mode()&os.ModeSymlink != 0:
			frame, err := enc.encodeSymlink(dir, child)
			if err != nil {
				return "", err
			}
			acc.Write(frame)
		case fi.Mode().IsRegular():
			frame, err := enc.encodeFile(child)
			if err != nil {
				return "", err
			}
			acc.Write(frame)
		default:
			return "", Errorf(hdx.ErrUnsupportedEntryKind,
				"%q is a %s; the stream format carries only files, directories, and symlinks",
				child, fi.Mode().Type())
		}
	}

	footer := Footer{SHA: acc.Hex()}
	frame, err = writeFrame(enc.bw, footer)
	if err != nil {
		return "", err
	}
	acc.Write(frame)
	return acc.Hex(), nil
}

// encodeFile streams the file twice: one pass to learn its digest and
// length (which the header must declare up front), one to emit the payload.
func (enc *encoder) encodeFile(name string) ([]byte, error) {
	f, err := enc.src.Open(name)
	if err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "opening %q: %s", name, err)
	}
	defer f.Close()

	digester := digest.SHA256.Digester()
	length, err := io.Copy(digester.Hash(), f)
	if err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "hashing %q: %s", name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "rewinding %q: %s", name, err)
	}

	hdr := FileHeader{
		Name:   name,
		SHA256: hdx.DigestHex(digester.Digest().Encoded()),
		Length: length,
	}
	frame, err := writeFrame(enc.bw, hdr)
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(enc.bw, f)
	if err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "copying %q: %s", name, err)
	}
	if n != length {
		return nil, Errorf(hdx.ErrInoperablePath, "%q changed size mid-encode (%d != %d)", name, n, length)
	}
	if err := enc.bw.WriteByte('\n'); err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "writing stream: %s", err)
	}
	enc.mon.Logf(hdx.LogDebug, "file: %s (%d bytes)", name, length)
	return frame, nil
}

func (enc *encoder) encodeSymlink(dir, name string) ([]byte, error) {
	rawTarget, err := enc.src.Readlink(name)
	if err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "reading link %q: %s", name, err)
	}
	resolved, err := resolveLinkTarget(dir, name, rawTarget)
	if err != nil {
		return nil, err
	}
	frame, err := writeFrame(enc.bw, SymlinkHeader{Name: name, Target: resolved})
	if err != nil {
		return nil, err
	}
	enc.mon.Logf(hdx.LogDebug, "symlink: %s -> %s", name, resolved)
	return frame, nil
}

// resolveLinkTarget turns a raw readlink result into the root-relative path
// the header declares.  A target that leaves the tree root is never silently
// followed; it fails the whole encode.
func resolveLinkTarget(dir, name, rawTarget string) (string, error) {
	if path.IsAbs(rawTarget) {
		return "", Errorf(hdx.ErrPathEscape,
			"symlink %q points at absolute path %q, outside the tree", name, rawTarget)
	}
	resolved := path.Join(dir, rawTarget)
	if err := checkInRoot(resolved); err != nil {
		return "", Errorf(hdx.ErrPathEscape,
			"symlink %q points at %q, outside the tree", name, rawTarget)
	}
	return resolved, nil
}
