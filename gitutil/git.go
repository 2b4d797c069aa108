/*
	Package gitutil is the glue between the filters and the git repo they
	run inside: repo discovery, config reads and writes at local and global
	scope, the .gitattributes model the installer edits, and the LFS
	filter handoff.
*/
package gitutil

import (
	"path/filepath"

	. "github.com/warpfork/go-errcat"
	srcd_git "gopkg.in/src-d/go-git.v4"

	hdx "github.com/BobKerns/houdini-expand"
)

// OpenRepo finds the repository enclosing dir, walking up like git does.
func OpenRepo(dir string) (*srcd_git.Repository, error) {
	repo, err := srcd_git.PlainOpenWithOptions(dir, &srcd_git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, Errorf(hdx.ErrGit, "opening git repository from %s: %s", dir, err)
	}
	return repo, nil
}

// WorktreeRoot returns the absolute path of the repo's working tree.
func WorktreeRoot(repo *srcd_git.Repository) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", Errorf(hdx.ErrGit, "repository has no worktree: %s", err)
	}
	root, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return "", Errorf(hdx.ErrGit, "resolving worktree root: %s", err)
	}
	return root, nil
}
