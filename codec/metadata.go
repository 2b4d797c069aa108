package codec

import (
	"bufio"
	"io"
	"runtime"
	"time"

	hdx "github.com/BobKerns/houdini-expand"
)

// NewMetadata builds the provenance entry the clean flow writes ahead of the
// root directory header.  srcPath is the working-tree path of the artifact
// being encoded, as git reported it to the filter.
func NewMetadata(srcPath string) MetadataHeader {
	return MetadataHeader{
		FormatVersion: FormatVersion,
		ToolVersion:   hdx.Version,
		ToolCommit:    hdx.Commit,
		Runtime:       runtime.Version(),
		Path:          srcPath,
		Date:          time.Now().UTC().Format(time.RFC3339),
	}
}

// WriteMetadata emits the metadata frame.  It participates in no scope and no
// accumulator; the decoder consumes and ignores it.
func WriteMetadata(w io.Writer, meta MetadataHeader) error {
	_, err := writeFrame(bufio.NewWriter(w), meta)
	return err
}
