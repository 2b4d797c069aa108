package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/alecthomas/kingpin.v2"
	srcd_git "gopkg.in/src-d/go-git.v4"

	hdx "github.com/BobKerns/houdini-expand"
	"github.com/BobKerns/houdini-expand/codec"
	"github.com/BobKerns/houdini-expand/config"
	"github.com/BobKerns/houdini-expand/filter"
	"github.com/BobKerns/houdini-expand/gitutil"
	"github.com/BobKerns/houdini-expand/houdini"
	"gopkg.in/src-d/go-billy.v4/osfs"
)

/*
	Output serialization formats
*/
const (
	FmtJson = "json"
	FmtDumb = "dumb"
)

type baseCLI struct {
	Debug     bool          // Raise log threshold to debug
	Format    string        // Output format, eg. json
	Timeout   time.Duration // Timeout duration eg. "60s"
	FilterCLI struct {
		File string // Path git is filtering (%f substitution)
	}
	PackCLI struct {
		Path string // Directory tree to encode
	}
	UnpackCLI struct {
		Path string // Directory to materialize into
	}
	InstallCLI struct {
		Local bool   // Write repo-local config instead of global
		Hotl  string // Pin this hotl binary instead of searching
	}
}

func configureFilter(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Arg("file", "Path of the file being filtered").
		Required().
		StringVar(&cli.FilterCLI.File)
}

func configureInstall(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Flag("local", "Configure this repository only, not ~/.gitconfig").
		BoolVar(&cli.InstallCLI.Local)
	cmd.Flag("hotl", "Use this hotl binary instead of searching for one").
		StringVar(&cli.InstallCLI.Hotl)
}

/*
	Blocks until a sigint is received, then calls cancel.
*/
func CancelOnInterrupt(cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan
	cancel()
}

func main() {
	ctx := context.Background()
	exitCode := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) hdx.ExitCode {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go CancelOnInterrupt(cancel)

	cli := baseCLI{}

	app := kingpin.New("houdini-expand", "Git filters that store Houdini digital assets expanded")
	app.HelpFlag.Short('h')

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("debug", "Emit debug logging").
		BoolVar(&cli.Debug)
	app.Flag("timeout", "Timeout for command").
		DurationVar(&cli.Timeout)
	app.Flag("format", "Output format").
		Default(FmtDumb).
		EnumVar(&cli.Format, FmtJson, FmtDumb)

	appClean := app.Command("clean", "git clean filter: asset binary on stdin, archive stream on stdout")
	configureFilter(&cli, appClean)

	appSmudge := app.Command("smudge", "git smudge filter: archive stream on stdin, asset binary on stdout")
	configureFilter(&cli, appSmudge)

	appPack := app.Command("pack", "encode a directory tree to stdout")
	appPack.Arg("path", "Directory to encode").
		Required().
		StringVar(&cli.PackCLI.Path)

	appUnpack := app.Command("unpack", "decode a stream from stdin into a directory")
	appUnpack.Arg("path", "Directory to materialize into").
		Required().
		StringVar(&cli.UnpackCLI.Path)

	appInstall := app.Command("install", "configure the hda filter into git")
	configureInstall(&cli, appInstall)

	appStatus := app.Command("status", "show the filter configuration")
	appList := app.Command("list", "list candidate hotl locations")

	var termErr error
	app.Terminate(func(status int) {
		termErr = fmt.Errorf("parsing error: %d\n", status)
	})
	cmd, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return hdx.ExitUsage
	}
	if termErr != nil {
		fmt.Fprintln(stderr, termErr)
		return hdx.ExitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return hdx.ExitUsage
	}
	if cli.Timeout != 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, cli.Timeout)
		defer cancelTimeout()
	}

	threshold := hdx.LogWarn
	if cli.Debug || cfg.Debug {
		threshold = hdx.LogDebug
	}
	mon, monDone := hdx.NewPrinterMonitor(stderr, threshold)

	exitCode := hdx.ExitSuccess
	switch cmd {
	case appClean.FullCommand():
		dgst, err := executeClean(ctx, cli, cfg, mon, stdin, stdout)
		SerializeResult(cli.Format, dgst, err, stdout, stderr)
		exitCode = hdx.ExitCodeForCategory(Category(err))
	case appSmudge.FullCommand():
		// The smudged binary owns stdout; the result report goes to stderr
		// in dumb mode and is suppressed in json mode.
		_, err := executeSmudge(ctx, cli, cfg, mon, stdin, stdout)
		if err != nil {
			fmt.Fprintln(stderr, err)
		}
		exitCode = hdx.ExitCodeForCategory(Category(err))
	case appPack.FullCommand():
		dgst, err := codec.Encode(ctx, osfs.New(cli.PackCLI.Path), stdout, mon)
		SerializeResult(cli.Format, dgst, err, stderr, stderr)
		exitCode = hdx.ExitCodeForCategory(Category(err))
	case appUnpack.FullCommand():
		dgst, err := executeUnpack(ctx, cli, mon, stdin)
		SerializeResult(cli.Format, dgst, err, stdout, stderr)
		exitCode = hdx.ExitCodeForCategory(Category(err))
	case appInstall.FullCommand():
		err := executeInstall(cli, mon)
		if err != nil {
			fmt.Fprintln(stderr, err)
		}
		exitCode = hdx.ExitCodeForCategory(Category(err))
	case appStatus.FullCommand():
		err := executeStatus(cfg, stdout)
		if err != nil {
			fmt.Fprintln(stderr, err)
		}
		exitCode = hdx.ExitCodeForCategory(Category(err))
	case appList.FullCommand():
		executeList(stdout)
	}

	mon.Close()
	<-monDone
	return exitCode
}

func SerializeResult(format string, dgst hdx.DigestHex, resultErr error, stdout io.Writer, stderr io.Writer) {
	result := &hdx.Event_Result{Digest: dgst}
	if resultErr != nil {
		result.Error = resultErr.Error()
	}
	ev := hdx.Event{Result: result}
	switch format {
	case FmtJson:
		marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{}, stdout, hdx.Atlas)
		err := marshaller.Marshal(&ev)
		if err != nil {
			panic(err)
		}
	case FmtDumb:
		if resultErr != nil {
			fmt.Fprintln(stderr, resultErr)
		} else {
			fmt.Fprintln(stdout, dgst)
		}
	default:
		panic(fmt.Errorf("houdini-expand: invalid format %s", format))
	}
}

// newRunner assembles the filter dependencies: operator config, the best
// available converter, and the lfs filter if git has one configured.
func newRunner(cfg config.Config, mon hdx.Monitor) filter.Runner {
	repo := openRepoQuietly(mon)
	r := filter.Runner{Cfg: cfg, Mon: mon}
	if pth := resolveHotl(cfg, repo, mon); pth != "" {
		r.Conv = houdini.Hotl{Path: pth, Mon: mon}
	}
	if lfs, ok, err := gitutil.LookupFilter(repo, "lfs"); err == nil && ok {
		r.LFS = &lfs
	}
	return r
}

func openRepoQuietly(mon hdx.Monitor) *srcd_git.Repository {
	repo, err := gitutil.OpenRepo(".")
	if err != nil {
		mon.Logf(hdx.LogDebug, "not inside a git repository: %s", err)
		return nil
	}
	return repo
}

// resolveHotl picks the converter binary: operator pin (config file or
// HDX_HOTL) first, then the hdafilter.hotl git config key, then the
// platform search.  Empty means none available.
func resolveHotl(cfg config.Config, repo *srcd_git.Repository, mon hdx.Monitor) string {
	if cfg.Hotl != "" {
		return cfg.Hotl
	}
	if v, err := gitutil.GetConfig(repo, houdini.ConfigKeyHotl); err == nil && v != "" {
		return v
	}
	pth, err := houdini.Find()
	if err != nil {
		mon.Logf(hdx.LogDebug, "%s", err)
		return ""
	}
	return pth
}

func executeClean(ctx context.Context, cli baseCLI, cfg config.Config, mon hdx.Monitor, stdin io.Reader, stdout io.Writer) (hdx.DigestHex, error) {
	return newRunner(cfg, mon).Clean(ctx, cli.FilterCLI.File, stdin, stdout)
}

func executeSmudge(ctx context.Context, cli baseCLI, cfg config.Config, mon hdx.Monitor, stdin io.Reader, stdout io.Writer) (hdx.DigestHex, error) {
	return newRunner(cfg, mon).Smudge(ctx, cli.FilterCLI.File, stdin, stdout)
}

func executeUnpack(ctx context.Context, cli baseCLI, mon hdx.Monitor, stdin io.Reader) (hdx.DigestHex, error) {
	if err := os.MkdirAll(cli.UnpackCLI.Path, 0755); err != nil {
		return "", Errorf(hdx.ErrInoperablePath, "creating %s: %s", cli.UnpackCLI.Path, err)
	}
	return codec.Decode(ctx, osfs.New(cli.UnpackCLI.Path), stdin, mon)
}

func executeInstall(cli baseCLI, mon hdx.Monitor) error {
	hotl := cli.InstallCLI.Hotl
	if hotl == "" {
		var err error
		hotl, err = houdini.Find()
		if err != nil {
			return err
		}
	}
	mon.Logf(hdx.LogInfo, "configuring hotl: %s", hotl)

	setConfig := gitutil.SetGlobalConfig
	var repo *srcd_git.Repository
	if cli.InstallCLI.Local {
		var err error
		repo, err = gitutil.OpenRepo(".")
		if err != nil {
			return err
		}
		setConfig = func(key, value string) error {
			return gitutil.SetLocalConfig(repo, key, value)
		}
	}
	pairs := [][2]string{
		{houdini.ConfigKeyHotl, hotl},
		{"filter.hda.clean", "houdini-expand clean %f"},
		{"filter.hda.smudge", "houdini-expand smudge %f"},
		{"filter.hda.required", "true"},
	}
	for _, kv := range pairs {
		if err := setConfig(kv[0], kv[1]); err != nil {
			return err
		}
	}

	// Attribute stanza goes in the worktree's .gitattributes so it travels
	// with the repo (when there is a worktree to put it in).
	if repo == nil {
		repo = openRepoQuietly(mon)
	}
	if repo == nil {
		mon.Logf(hdx.LogWarn, "not inside a git repository; skipping .gitattributes")
		return nil
	}
	root, err := gitutil.WorktreeRoot(repo)
	if err != nil {
		return err
	}
	attrs, err := gitutil.LoadAttributes(filepath.Join(root, ".gitattributes"))
	if err != nil {
		return err
	}
	attrs.Pattern("*.hda").Set("-text", "lockable", "filter=hda", "diff=hda", "merge=hda")
	return attrs.Save()
}

func executeStatus(cfg config.Config, stdout io.Writer) error {
	show := func(key, value string) {
		if value == "" {
			value = "(unset)"
		}
		fmt.Fprintf(stdout, "%-24s %s\n", key+":", value)
	}
	show("version", hdx.Version)
	show("commit", hdx.Commit)
	show("config file", config.FilePath())

	var repo *srcd_git.Repository
	if r, err := gitutil.OpenRepo("."); err == nil {
		repo = r
	}
	show("hotl", resolveHotl(cfg, repo, hdx.Monitor{}))
	for _, key := range []string{
		houdini.ConfigKeyHotl,
		"filter.hda.clean", "filter.hda.smudge", "filter.hda.required",
		"filter.lfs.clean", "filter.lfs.smudge",
	} {
		v, err := gitutil.GetConfig(repo, key)
		if err != nil {
			return err
		}
		show(key, v)
	}

	if repo == nil {
		return nil
	}
	root, err := gitutil.WorktreeRoot(repo)
	if err != nil {
		return err
	}
	for _, pth := range []string{
		filepath.Join(root, ".gitattributes"),
		filepath.Join(root, ".git", "info", "attributes"),
	} {
		attrs, err := gitutil.LoadAttributes(pth)
		if err != nil {
			return err
		}
		for _, pattern := range attrs.Patterns() {
			fmt.Fprintf(stdout, "%s: %s %s\n", pth, pattern, attrs.Pattern(pattern))
		}
	}
	return nil
}

func executeList(stdout io.Writer) {
	candidates := houdini.Locations()
	if len(candidates) == 0 {
		fmt.Fprintln(stdout, "no candidate hotl locations on this platform")
		return
	}
	for _, c := range candidates {
		mark := " "
		if c.Exists {
			mark = "*"
		}
		fmt.Fprintf(stdout, "%s %s\n", mark, c.Path)
	}
}
