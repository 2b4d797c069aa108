/*
	Package filter implements the two git filter flows.

	Clean (working tree -> repo): stage the incoming asset binary, emit its
	LFS pointer, then a metadata entry, then the archive of the expanded
	tree.  What git stores is pointer + archive; reviewable, diffable, and
	still recoverable from LFS alone.

	Smudge (repo -> working tree): peel the pointer prefix off, decode the
	archive into a scratch tree, collapse it back into the binary, and emit
	that.  Machines without Houdini — or streams that fail to decode — fall
	back to fetching the binary through LFS with the pointer we peeled.
*/
package filter

import (
	"bufio"
	"context"
	"io"

	. "github.com/warpfork/go-errcat"

	hdx "github.com/BobKerns/houdini-expand"
	"github.com/BobKerns/houdini-expand/codec"
	"github.com/BobKerns/houdini-expand/config"
	"github.com/BobKerns/houdini-expand/gitutil"
	"github.com/BobKerns/houdini-expand/session"
)

// Runner bundles what a filter invocation needs.  Conv may be nil (no
// Houdini on this machine); LFS may be nil (filter.lfs not configured).
type Runner struct {
	Cfg  config.Config
	Conv session.Converter
	LFS  *gitutil.Filter
	Mon  hdx.Monitor
}

// Clean turns the asset binary on in into the pointer-plus-archive form on
// out.  Returns the archive's root digest.
//
// There is no degraded clean: without a converter the expanded form cannot
// be produced, and silently storing the raw binary would poison the repo.
func (r Runner) Clean(ctx context.Context, file string, in io.Reader, out io.Writer) (_ hdx.DigestHex, err error) {
	defer RequireErrorHasCategory(&err, hdx.ErrorCategory(""))
	if r.Conv == nil {
		return "", Errorf(hdx.ErrConverterRun,
			"cannot clean %s: no converter available on this machine", file)
	}
	s, err := session.New(r.Cfg, r.Mon)
	if err != nil {
		return "", err
	}
	defer s.Close()

	if _, err := s.StageBlob(in); err != nil {
		return "", err
	}
	if r.LFS != nil {
		if err := r.LFS.CleanBlob(ctx, file, s.BlobPath(), out); err != nil {
			return "", err
		}
	} else {
		r.Mon.Logf(hdx.LogDebug, "no lfs filter configured; archive will have no pointer prefix")
	}
	if err := codec.WriteMetadata(out, codec.NewMetadata(file)); err != nil {
		return "", err
	}
	if err := r.Conv.Expand(ctx, s.BlobPath(), s.TreePath()); err != nil {
		return "", err
	}
	dgst, err := codec.Encode(ctx, s.TreeFS(), out, r.Mon)
	if err != nil {
		return "", err
	}
	r.Mon.Logf(hdx.LogInfo, "cleaned %s: %s", file, dgst)
	return dgst, nil
}

// Smudge turns the stored pointer-plus-archive form on in back into the
// asset binary on out.  Returns the archive's root digest, or "" when the
// binary came through the LFS fallback instead.
func (r Runner) Smudge(ctx context.Context, file string, in io.Reader, out io.Writer) (_ hdx.DigestHex, err error) {
	defer RequireErrorHasCategory(&err, hdx.ErrorCategory(""))
	br := bufio.NewReader(in)
	pointer, err := peelPointer(br)
	if err != nil {
		return "", err
	}

	if r.Conv == nil {
		r.Mon.Logf(hdx.LogInfo, "no converter for %s; retrieving binary via lfs", file)
		return "", r.lfsFallback(ctx, file, pointer, out)
	}

	s, err := session.New(r.Cfg, r.Mon)
	if err != nil {
		return "", err
	}
	defer s.Close()

	dgst, err := codec.Decode(ctx, s.TreeFS(), br, r.Mon)
	if err != nil {
		if Category(err) != hdx.ErrDecodeFailed || r.LFS == nil {
			return "", err
		}
		r.Mon.Logf(hdx.LogWarn, "archive for %s did not decode (%s); retrieving binary via lfs", file, err)
		return "", r.lfsFallback(ctx, file, pointer, out)
	}
	if err := r.Conv.Collapse(ctx, s.TreePath(), s.BlobPath()); err != nil {
		return "", err
	}
	if _, err := s.EmitBlob(out); err != nil {
		return "", err
	}
	r.Mon.Logf(hdx.LogInfo, "smudged %s: %s", file, dgst)
	return dgst, nil
}

// peelPointer consumes the LFS pointer prefix if one is present.  Archives
// written without LFS configured have no prefix; peeking keeps us from
// eating the first frame of those.
func peelPointer(br *bufio.Reader) ([]byte, error) {
	head, err := br.Peek(len("version https://git-lfs"))
	if err != nil && err != io.EOF {
		return nil, Errorf(hdx.ErrLFS, "reading filter input: %s", err)
	}
	if !gitutil.IsPointer(head) {
		return nil, nil
	}
	return gitutil.ReadPointer(br)
}

func (r Runner) lfsFallback(ctx context.Context, file string, pointer []byte, out io.Writer) error {
	if r.LFS == nil {
		return Errorf(hdx.ErrLFS,
			"cannot produce %s: no converter and no lfs filter to fall back to", file)
	}
	if pointer == nil {
		return Errorf(hdx.ErrLFS,
			"cannot produce %s: stream has no lfs pointer to fall back with", file)
	}
	return r.LFS.SmudgeBlob(ctx, file, pointer, out)
}
