package gitutil

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/warpfork/go-errcat"
	srcd_git "gopkg.in/src-d/go-git.v4"
	format_config "gopkg.in/src-d/go-git.v4/plumbing/format/config"

	hdx "github.com/BobKerns/houdini-expand"
)

/*
	Config keys follow git's dotted form: "section.option" or
	"section.subsection.option" (e.g. "hdafilter.hotl",
	"filter.hda.clean").  Reads check the repo's local config first and
	fall back to the global ~/.gitconfig, matching git's own precedence.
	Writes go to exactly the scope asked for.
*/

// splitKey breaks a dotted config key into section, subsection (may be
// empty), and option name.
func splitKey(key string) (section, subsection, option string, err error) {
	parts := strings.Split(key, ".")
	switch {
	case len(parts) == 2:
		return parts[0], "", parts[1], nil
	case len(parts) >= 3:
		return parts[0], strings.Join(parts[1:len(parts)-1], "."), parts[len(parts)-1], nil
	default:
		return "", "", "", Errorf(hdx.ErrUsage, "config key %q: want section.option or section.subsection.option", key)
	}
}

func rawGet(raw *format_config.Config, key string) (string, error) {
	section, subsection, option, err := splitKey(key)
	if err != nil {
		return "", err
	}
	if subsection == "" {
		return raw.Section(section).Option(option), nil
	}
	return raw.Section(section).Subsection(subsection).Option(option), nil
}

func rawSet(raw *format_config.Config, key, value string) error {
	section, subsection, option, err := splitKey(key)
	if err != nil {
		return err
	}
	if subsection == "" {
		raw.Section(section).SetOption(option, value)
	} else {
		raw.Section(section).Subsection(subsection).SetOption(option, value)
	}
	return nil
}

// GetConfig reads one key, local scope first, then global.  A key that is
// set nowhere yields "".
func GetConfig(repo *srcd_git.Repository, key string) (string, error) {
	if repo != nil {
		cfg, err := repo.Config()
		if err != nil {
			return "", Errorf(hdx.ErrGit, "reading repo config: %s", err)
		}
		if v, err := rawGet(cfg.Raw, key); err != nil || v != "" {
			return v, err
		}
	}
	raw, err := loadGlobal()
	if err != nil {
		return "", err
	}
	return rawGet(raw, key)
}

// SetLocalConfig writes one key into the repo's own config.
func SetLocalConfig(repo *srcd_git.Repository, key, value string) error {
	cfg, err := repo.Config()
	if err != nil {
		return Errorf(hdx.ErrGit, "reading repo config: %s", err)
	}
	if err := rawSet(cfg.Raw, key, value); err != nil {
		return err
	}
	if err := repo.Storer.SetConfig(cfg); err != nil {
		return Errorf(hdx.ErrGit, "writing repo config: %s", err)
	}
	return nil
}

// SetGlobalConfig writes one key into ~/.gitconfig, creating it if absent.
func SetGlobalConfig(key, value string) error {
	pth, err := globalConfigPath()
	if err != nil {
		return err
	}
	raw, err := loadGlobal()
	if err != nil {
		return err
	}
	if err := rawSet(raw, key, value); err != nil {
		return err
	}
	f, err := os.Create(pth)
	if err != nil {
		return Errorf(hdx.ErrGit, "writing %s: %s", pth, err)
	}
	err = format_config.NewEncoder(f).Encode(raw)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return Errorf(hdx.ErrGit, "writing %s: %s", pth, err)
	}
	return nil
}

func globalConfigPath() (string, error) {
	// git itself honors this override; it also keeps tests out of the
	// operator's real config.
	if pth := os.Getenv("GIT_CONFIG_GLOBAL"); pth != "" {
		return pth, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", Errorf(hdx.ErrGit, "no home directory: %s", err)
	}
	return filepath.Join(home, ".gitconfig"), nil
}

func loadGlobal() (*format_config.Config, error) {
	raw := format_config.New()
	pth, err := globalConfigPath()
	if err != nil {
		return nil, err
	}
	f, err := os.Open(pth)
	if os.IsNotExist(err) {
		return raw, nil
	}
	if err != nil {
		return nil, Errorf(hdx.ErrGit, "reading %s: %s", pth, err)
	}
	defer f.Close()
	if err := format_config.NewDecoder(f).Decode(raw); err != nil {
		return nil, Errorf(hdx.ErrGit, "parsing %s: %s", pth, err)
	}
	return raw, nil
}
