/*
	Package houdini locates and drives the hotl tool that converts Houdini
	digital asset binaries to and from their expanded directory form.

	Houdini installs do not put hotl on PATH, so discovery means globbing
	the per-platform install locations and preferring the newest version
	(install directories embed the version, so reverse lexical order is
	newest-first).  Operators can pin a binary instead, via the config file,
	the HDX_HOTL environment variable, or the hdafilter.hotl git config
	key; pinning bypasses the search entirely.
*/
package houdini

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"

	. "github.com/warpfork/go-errcat"

	hdx "github.com/BobKerns/houdini-expand"
)

// ConfigKeyHotl is the git config key that pins the hotl binary.
const ConfigKeyHotl = "hdafilter.hotl"

type location struct {
	dir     string // fixed prefix
	glob    string // version wildcard, relative to dir
	subpath string // fixed suffix below each glob hit
}

var platformLocations = map[string][]location{
	"windows": {
		{dir: "C:/Program Files/Side Effects Software/", glob: "Houdini*", subpath: "bin/hotl.exe"},
	},
	"darwin": {
		{dir: "/Applications/Houdini", glob: "Houdini*/Frameworks/Houdini.framework/Versions/Current", subpath: "Resources/bin/hotl"},
	},
	"linux": {
		{dir: "/opt", glob: "hfs*", subpath: "bin/hotl"},
	},
}

// Candidate is one possible hotl path, with whether it actually exists.
type Candidate struct {
	Path   string
	Exists bool
}

// Locations returns every candidate hotl path for the current platform,
// newest install first.
func Locations() []Candidate {
	return locationsFor(runtime.GOOS)
}

func locationsFor(goos string) []Candidate {
	var out []Candidate
	for _, loc := range platformLocations[goos] {
		hits, err := filepath.Glob(filepath.Join(loc.dir, loc.glob))
		if err != nil || len(hits) == 0 {
			continue
		}
		sort.Sort(sort.Reverse(sort.StringSlice(hits)))
		for _, hit := range hits {
			pth := filepath.Join(hit, loc.subpath)
			stat, err := os.Stat(pth)
			out = append(out, Candidate{
				Path:   pth,
				Exists: err == nil && !stat.IsDir(),
			})
		}
	}
	return out
}

// Find returns the newest existing hotl on the current platform.
func Find() (string, error) {
	for _, c := range Locations() {
		if c.Exists {
			return c.Path, nil
		}
	}
	return "", Errorf(hdx.ErrConverterRun, "no hotl binary found on this machine; is Houdini installed?")
}
