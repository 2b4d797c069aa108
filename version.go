package hdx

// Build provenance, stamped into stream metadata entries and `status` output.
// Commit is injected at link time:
//
//	go build -ldflags "-X github.com/BobKerns/houdini-expand.Commit=$(git rev-parse --short HEAD)"

const Version = "0.2.0"

var Commit = ""
