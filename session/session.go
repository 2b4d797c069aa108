/*
	Package session owns the scratch workspaces the filters run in.

	Every clean or smudge invocation gets one Session: a guid-named
	directory under the configured scratch base, holding the staged binary
	blob and the expanded tree side by side.  The session is removed on
	Close regardless of how the run ended; a failed decode leaves nothing
	behind.
*/
package session

import (
	"context"
	"io"
	"os"
	"path/filepath"

	. "github.com/warpfork/go-errcat"
	billy "gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"

	hdx "github.com/BobKerns/houdini-expand"
	"github.com/BobKerns/houdini-expand/config"
	"github.com/BobKerns/houdini-expand/lib/guid"
)

// Converter turns a packed binary blob into a directory tree and back.
// The houdini package provides the hotl-backed implementation; tests use
// stand-ins.
type Converter interface {
	// Expand unpacks the blob file into dir (which already exists).
	Expand(ctx context.Context, blob string, dir string) error
	// Collapse packs dir back into the blob file, creating or replacing it.
	Collapse(ctx context.Context, dir string, blob string) error
}

type Session struct {
	root string
	mon  hdx.Monitor
}

// New creates a fresh workspace under the configured scratch base.
func New(cfg config.Config, mon hdx.Monitor) (*Session, error) {
	root := filepath.Join(cfg.ScratchBase(), "houdini-expand", guid.New())
	if err := os.MkdirAll(filepath.Join(root, "tree"), 0755); err != nil {
		return nil, Errorf(hdx.ErrInoperablePath, "creating scratch workspace %s: %s", root, err)
	}
	mon.Logf(hdx.LogDebug, "scratch workspace: %s", root)
	return &Session{root: root, mon: mon}, nil
}

// Close removes the workspace and everything in it.
func (s *Session) Close() error {
	if err := os.RemoveAll(s.root); err != nil {
		return Errorf(hdx.ErrInoperablePath, "removing scratch workspace %s: %s", s.root, err)
	}
	return nil
}

// BlobPath is where the packed binary lives for this session.
func (s *Session) BlobPath() string {
	return filepath.Join(s.root, "blob")
}

// TreePath is the directory the converter expands into and collapses from.
func (s *Session) TreePath() string {
	return filepath.Join(s.root, "tree")
}

// TreeFS exposes the tree directory as a filesystem handle, rooted so that
// the codec cannot reach outside it.
func (s *Session) TreeFS() billy.Filesystem {
	return osfs.New(s.TreePath())
}

// StageBlob copies r to the session's blob file, returning the byte count.
func (s *Session) StageBlob(r io.Reader) (int64, error) {
	f, err := os.Create(s.BlobPath())
	if err != nil {
		return 0, Errorf(hdx.ErrInoperablePath, "staging blob: %s", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return n, Errorf(hdx.ErrInoperablePath, "staging blob: %s", err)
	}
	s.mon.Logf(hdx.LogDebug, "staged %d byte blob", n)
	return n, nil
}

// EmitBlob copies the session's blob file to w.
func (s *Session) EmitBlob(w io.Writer) (int64, error) {
	f, err := os.Open(s.BlobPath())
	if err != nil {
		return 0, Errorf(hdx.ErrInoperablePath, "reading blob back: %s", err)
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return n, Errorf(hdx.ErrInoperablePath, "reading blob back: %s", err)
	}
	return n, nil
}
