/*
	Helpers for loading contextual config.

	Config here means "things that are the host machine operator's concerns":
	where scratch workspaces live, which hotl binary to run, how chatty to be.
	None of it affects stream contents; two machines with different config
	still produce byte-identical archives for the same asset.

	Values resolve in order: environment variable, then the operator's config
	file, then a built-in default.  The config file is TOML, at
	`$XDG_CONFIG_HOME/houdini-expand/config.toml` (falling back to
	`~/.config/...`); a missing file is not an error.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/warpfork/go-errcat"

	hdx "github.com/BobKerns/houdini-expand"
)

type Config struct {
	// Scratch is the base directory for expand/collapse workspaces.
	// Default is the system temp dir.
	Scratch string `toml:"scratch"`

	// Hotl pins the converter binary, bypassing platform search and any
	// git config.  Empty means "go look for one".
	Hotl string `toml:"hotl"`

	// Debug raises the log threshold floor for all commands.
	Debug bool `toml:"debug"`
}

/*
	Load the operator's config file, if present, and fold in environment
	overrides (`HDX_SCRATCH`, `HDX_HOTL`, `HDX_DEBUG`).

	A missing config file yields the zero config plus env; a file that
	exists but does not parse is an error (silently ignoring operator
	intent is worse than failing loudly).
*/
func Load() (Config, error) {
	var cfg Config
	pth := FilePath()
	if pth != "" {
		if _, err := toml.DecodeFile(pth, &cfg); err != nil && !os.IsNotExist(err) {
			return cfg, Errorf(hdx.ErrUsage, "config file %s: %s", pth, err)
		}
	}
	if v := os.Getenv("HDX_SCRATCH"); v != "" {
		cfg.Scratch = v
	}
	if v := os.Getenv("HDX_HOTL"); v != "" {
		cfg.Hotl = v
	}
	if v := os.Getenv("HDX_DEBUG"); v != "" && v != "0" && v != "false" {
		cfg.Debug = true
	}
	return cfg, nil
}

/*
	Return the path of the operator's config file.

	The default location is `$XDG_CONFIG_HOME/houdini-expand/config.toml`,
	with `$HOME/.config` standing in when XDG_CONFIG_HOME is unset.
	Returns "" when neither resolves (no home dir at all).
*/
func FilePath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "houdini-expand", "config.toml")
}

/*
	Return the base directory for scratch workspaces.

	The default value is the system temp dir; this can be overridden by the
	config file's `scratch` key or the `HDX_SCRATCH` environment variable.
*/
func (cfg Config) ScratchBase() string {
	if cfg.Scratch != "" {
		pth, err := filepath.Abs(cfg.Scratch)
		if err != nil {
			panic(err)
		}
		return pth
	}
	return os.TempDir()
}
