package gitutil

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	. "github.com/warpfork/go-errcat"
	srcd_git "gopkg.in/src-d/go-git.v4"

	hdx "github.com/BobKerns/houdini-expand"
)

// pointerLines is how many lines of a git-lfs pointer we stage before the
// archive stream begins: version, oid, size.
const pointerLines = 3

// Filter is one git filter's configured command pair.
type Filter struct {
	Name   string
	Clean  string
	Smudge string
}

// LookupFilter reads filter.<name>.{clean,smudge} from git config.  The
// second return is false when neither command is configured.
func LookupFilter(repo *srcd_git.Repository, name string) (Filter, bool, error) {
	clean, err := GetConfig(repo, "filter."+name+".clean")
	if err != nil {
		return Filter{}, false, err
	}
	smudge, err := GetConfig(repo, "filter."+name+".smudge")
	if err != nil {
		return Filter{}, false, err
	}
	f := Filter{Name: name, Clean: clean, Smudge: smudge}
	return f, clean != "" || smudge != "", nil
}

// command expands git's %f placeholder and splits the config string the way
// git does for filter commands.
func (f Filter) command(configured, file string) []string {
	return strings.Fields(strings.ReplaceAll(configured, "%f", file))
}

// ReadPointer consumes the LFS pointer prefix (three lines) from the start
// of a smudge input.
func ReadPointer(br *bufio.Reader) ([]byte, error) {
	var buf bytes.Buffer
	for i := 0; i < pointerLines; i++ {
		line, err := br.ReadBytes('\n')
		buf.Write(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Errorf(hdx.ErrLFS, "reading pointer: %s", err)
		}
	}
	return buf.Bytes(), nil
}

// IsPointer reports whether data starts like a git-lfs pointer file.
func IsPointer(data []byte) bool {
	return bytes.HasPrefix(data, []byte("version https://git-lfs"))
}

// CleanBlob runs the filter's clean command over the staged blob file and
// writes the resulting pointer to w.
func (f Filter) CleanBlob(ctx context.Context, file, blobPath string, w io.Writer) error {
	if f.Clean == "" {
		return Errorf(hdx.ErrLFS, "filter %q has no clean command configured", f.Name)
	}
	in, err := os.Open(blobPath)
	if err != nil {
		return Errorf(hdx.ErrLFS, "opening staged blob: %s", err)
	}
	defer in.Close()
	return f.runCommand(ctx, f.command(f.Clean, file), in, w)
}

// SmudgeBlob pipes a pointer through the filter's smudge command, writing
// the retrieved blob content to w.
func (f Filter) SmudgeBlob(ctx context.Context, file string, pointer []byte, w io.Writer) error {
	if f.Smudge == "" {
		return Errorf(hdx.ErrLFS, "filter %q has no smudge command configured", f.Name)
	}
	return f.runCommand(ctx, f.command(f.Smudge, file), bytes.NewReader(pointer), w)
}

func (f Filter) runCommand(ctx context.Context, argv []string, in io.Reader, out io.Writer) error {
	if len(argv) == 0 {
		return Errorf(hdx.ErrLFS, "filter %q: empty command", f.Name)
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = in
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Errorf(hdx.ErrCancelled, "cancelled")
		}
		return ErrorDetailed(hdx.ErrLFS,
			"filter command "+argv[0]+" failed: "+err.Error(),
			map[string]string{
				"command": strings.Join(argv, " "),
				"stderr":  strings.TrimSpace(stderr.String()),
			})
	}
	return nil
}
