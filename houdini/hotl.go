package houdini

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	. "github.com/warpfork/go-errcat"

	hdx "github.com/BobKerns/houdini-expand"
)

// Hotl drives one hotl binary.  It satisfies session.Converter.
type Hotl struct {
	Path string
	Mon  hdx.Monitor
}

// Expand unpacks the asset blob into dir ("hotl -t dir blob").
func (h Hotl) Expand(ctx context.Context, blob string, dir string) error {
	return h.run(ctx, "-t", dir, blob)
}

// Collapse packs dir back into the asset blob ("hotl -l dir blob").
func (h Hotl) Collapse(ctx context.Context, dir string, blob string) error {
	return h.run(ctx, "-l", dir, blob)
}

func (h Hotl) run(ctx context.Context, args ...string) error {
	h.Mon.Logf(hdx.LogDebug, "exec: %s %s", h.Path, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, h.Path, args...)
	// hotl chatters on stdout; none of it belongs on the filter pipe.
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Errorf(hdx.ErrCancelled, "cancelled")
		}
		return ErrorDetailed(hdx.ErrConverterRun,
			"hotl "+args[0]+" failed: "+err.Error(),
			map[string]string{
				"command": h.Path,
				"output":  strings.TrimSpace(output.String()),
			})
	}
	return nil
}
