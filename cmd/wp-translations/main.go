// Command wp-translations downloads WordPress translations for the packages of
// a Composer project.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/git-pkgs/wp-translations"
	"github.com/git-pkgs/wp-translations/client"
	"github.com/git-pkgs/wp-translations/fetch"
	"github.com/git-pkgs/wp-translations/internal/composer"
	"github.com/git-pkgs/wp-translations/internal/config"
	"github.com/git-pkgs/wp-translations/internal/logging"
)

// Options are the global flags and commands.
type Options struct {
	WorkingDir string `short:"d" long:"working-dir" description:"project root" default:"."`
	Config     string `short:"c" long:"config" description:"configuration file (default: wp-translation-downloader.yaml or composer.json in the project root)"`
	LogLevel   string `long:"log-level" description:"debug, info, warn or error"`
	Verbose    bool   `short:"v" long:"verbose" description:"log debug output"`

	Download   DownloadCommand   `command:"download" description:"download translations for every package in composer.lock"`
	Remove     RemoveCommand     `command:"remove" description:"remove translations of installed packages"`
	Event      EventCommand      `command:"event" description:"handle a single package lifecycle event"`
	CleanCache CleanCacheCommand `command:"clean-cache" description:"delete the lock file"`
}

type DownloadCommand struct{}

type RemoveCommand struct {
	Args struct {
		Packages []string `positional-arg-name:"package" required:"1"`
	} `positional-args:"yes"`
}

type EventCommand struct {
	Operation     string `short:"o" long:"operation" choice:"install" choice:"update" choice:"uninstall" required:"true" description:"lifecycle operation"`
	Name          string `short:"n" long:"name" required:"true" description:"package name"`
	Type          string `short:"t" long:"type" default:"library" description:"composer package type"`
	Version       string `long:"version" description:"installed version"`
	TargetVersion string `long:"target-version" description:"version after an update"`
}

type CleanCacheCommand struct{}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	env, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "reading environment: %v\n", err)
		return 1
	}
	level := opts.LogLevel
	if level == "" {
		level = env.LogLevel
	}
	logger, err := logging.NewWithWriter(stderr, level, opts.Verbose || env.Verbose)
	if err != nil {
		fmt.Fprintf(stderr, "configuring logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(opts, env)
	if err != nil {
		logger.Error("cannot load configuration", zap.Error(err))
		return 1
	}
	cfg.ApplyEnv(env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fetcher := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.WithUserAgent(env.UserAgent)))
	defer func() {
		logger.Debug("archive hosts", zap.Any("breakers", fetcher.BreakerStates()))
		fetcher.Close()
	}()

	d := translations.New(cfg,
		translations.WithClient(client.NewClient(client.WithTimeout(env.Timeout)).WithUserAgent(env.UserAgent)),
		translations.WithFetcher(fetcher),
		translations.WithConsole(stdout),
		translations.WithLogger(logger),
	)

	switch parser.Active.Name {
	case "download":
		if _, err := d.DownloadLocked(ctx); err != nil {
			logger.Error("cannot read installed packages", zap.Error(err))
			return 1
		}
	case "remove":
		ids, err := installedPackages(cfg.ProjectRoot, opts.Remove.Args.Packages)
		if err != nil {
			logger.Error("cannot resolve packages", zap.Error(err))
			return 1
		}
		d.Remove(ctx, ids)
	case "event":
		if !cfg.AutoRun {
			logger.Debug("auto-run is disabled")
			return 0
		}
		d.Handle(ctx, opts.Event.event())
	case "clean-cache":
		if err := d.CleanCache(); err != nil {
			logger.Error("cannot delete lock file", zap.Error(err))
			return 1
		}
		fmt.Fprintf(stdout, "removed %s\n", d.LockFile())
	}
	return 0
}

func loadConfig(opts Options, env config.Env) (*translations.Config, error) {
	path := opts.Config
	if path == "" {
		path = env.ConfigFile
	}
	if path != "" {
		return config.Load(path)
	}

	found, err := config.Find(opts.WorkingDir)
	if err != nil {
		return nil, err
	}
	return config.Load(found)
}

func installedPackages(root string, names []string) ([]translations.Identity, error) {
	locked, err := composer.ReadProjectLock(root)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]translations.Identity, len(locked))
	for _, id := range locked {
		byName[strings.ToLower(id.Name)] = id
	}

	ids := make([]translations.Identity, 0, len(names))
	for _, name := range names {
		id, ok := byName[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("package %q is not in %s", name, composer.LockFileName)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (e EventCommand) event() translations.Event {
	id := translations.NewIdentity(e.Name, e.Type, e.Version)
	evt := translations.Event{Operation: translations.Operation(e.Operation), Package: id}
	if evt.Operation == translations.Update && e.TargetVersion != "" {
		evt.Target = translations.NewIdentity(e.Name, e.Type, e.TargetVersion)
	}
	return evt
}
