package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/mitchellh/cli"
	"github.com/pkg/errors"

	"github.com/andir/mail2pr/pkg/cmd"
	"github.com/andir/mail2pr/pkg/config"
	"github.com/andir/mail2pr/pkg/gc"
	"github.com/andir/mail2pr/pkg/lockfile"
	"github.com/andir/mail2pr/pkg/mail"
	"github.com/andir/mail2pr/pkg/ops"
	"github.com/andir/mail2pr/pkg/worktree"
)

func main() {
	c := cli.NewCLI("mail2pr", "0.0.1")
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"apply": func() (cli.Command, error) {
			return cmd.New(
				"apply",
				"Turn a patch received by mail into a git branch",
				applyF,
			), nil
		},
		"build": func() (cli.Command, error) {
			return cmd.New(
				"build",
				"Package the application from the project and lock file",
				buildF,
			), nil
		},
		"pin": func() (cli.Command, error) {
			return cmd.New(
				"pin",
				"Pin an ecosystem snapshot and rewrite the lock file",
				pinF,
			), nil
		},
		"inspect": func() (cli.Command, error) {
			return cmd.New(
				"inspect",
				"Output information about a built artifact",
				inspectF,
			), nil
		},
		"env": func() (cli.Command, error) {
			return cmd.New(
				"env",
				"Output various environment information",
				envF,
			), nil
		},
		"gc": func() (cli.Command, error) {
			return cmd.New(
				"gc",
				"Remove worktrees and cached snapshots",
				gcF,
			), nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}

func applyF(ctx context.Context, opts struct {
	Repo string `short:"r" long:"repo" description:"path to the target git repository"`
	Base string `short:"b" long:"base" description:"base branch to apply the patch onto"`
	Keep bool   `short:"k" long:"keep" description:"keep the worktree checkout around"`

	Pos struct {
		File string `positional-arg-name:"mailfile" required:"yes"`
	} `positional-args:"yes"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	if opts.Repo != "" {
		cfg.RepoPath = opts.Repo
	}

	if opts.Base != "" {
		cfg.BaseBranch = opts.Base
	}

	var in *os.File

	if opts.Pos.File == "-" {
		in = os.Stdin
	} else {
		in, err = os.Open(opts.Pos.File)
		if err != nil {
			return err
		}

		defer in.Close()
	}

	msg, err := mail.Parse(in)
	if err != nil {
		return err
	}

	w, err := worktree.New(cfg, msg)
	if err != nil {
		return err
	}

	err = w.Setup(ctx)
	if err != nil {
		w.Cleanup(ctx)
		return err
	}

	ops.GetUI(ctx).BranchCreated(w.Branch, w.RepoDir)

	if opts.Keep {
		return nil
	}

	return w.Cleanup(ctx)
}

func buildF(ctx context.Context, opts struct {
	Source string `short:"s" long:"source" description:"source directory holding project and lock file"`
	Out    string `short:"o" long:"out" description:"write the artifact to the given directory"`
	Check  bool   `short:"c" long:"check" description:"validate the project and lock file only"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	source := opts.Source
	if source == "" {
		source = "."
	}

	if opts.Check {
		var pl ops.ProjectLoad

		proj, err := pl.Load(ctx, source)
		if err != nil {
			return err
		}

		fmt.Printf("%s is consistent (%d build deps)\n",
			proj.Descriptor.ID(), len(proj.Descriptor.BuildDeps))

		return nil
	}

	var showLock bool
	cleanup, err := lockfile.Take(ctx, filepath.Join(source, ops.BuildLockFile), func() {
		if !showLock {
			fmt.Printf("Lock detected, waiting...\n")
			showLock = true
		}
	})
	if err != nil {
		return err
	}

	defer cleanup()

	ab := &ops.AppBuild{
		OutputDir: opts.Out,
	}

	res, err := ab.Build(ctx, cfg, source)
	if err != nil {
		return err
	}

	ops.GetUI(ctx).ArtifactWritten(res)

	return nil
}

func pinF(ctx context.Context, opts struct {
	Source string `short:"s" long:"source" description:"source directory holding the project file"`

	Pos struct {
		URL string `positional-arg-name:"url" required:"yes"`
	} `positional-args:"yes"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	source := opts.Source
	if source == "" {
		source = "."
	}

	var sp ops.SnapshotPin

	lock, err := sp.Pin(ctx, cfg, source, opts.Pos.URL)
	if err != nil {
		return err
	}

	ops.GetUI(ctx).SnapshotPinned(lock)

	return nil
}

func inspectF(ctx context.Context, opts struct {
	Pos struct {
		File string `positional-arg-name:"artifact" required:"yes"`
	} `positional-args:"yes"`
}) error {
	f, err := os.Open(opts.Pos.File)
	if err != nil {
		return errors.Wrapf(err, "unable to open artifact")
	}

	defer f.Close()

	var ai ops.ArtifactInspect

	tw := tabwriter.NewWriter(os.Stdout, 2, 2, 1, ' ', 0)
	defer tw.Flush()

	return ai.Show(f, tw)
}

func envF(ctx context.Context, opts struct {
	Debug bool `long:"debug" description:"dump the full configuration"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return errors.Wrapf(err, "unable to create or load configuration directory")
	}

	fmt.Printf("Config Dir: %s\n", cfg.ConfigDir())
	fmt.Printf("Data Dir: %s\n", cfg.DataDir)
	fmt.Printf("Snapshots: %s\n", cfg.SnapshotsPath())
	fmt.Printf("Artifacts: %s\n", cfg.ArtifactsPath())
	fmt.Printf("Worktrees: %s\n", cfg.WorktreesPath())
	fmt.Printf("Target Repo: %s\n", cfg.RepoPath)
	fmt.Printf("Base Branch: %s\n", cfg.BaseBranch)

	id, err := cfg.SignerId()
	if err != nil {
		return errors.Wrapf(err, "unable to calculate user keys")
	}

	fmt.Printf("Signer Id: %s\n", id)

	if opts.Debug {
		spew.Dump(cfg)
	}

	return nil
}

func gcF(ctx context.Context, opts struct {
	All bool `long:"all" description:"also remove materialized snapshots"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	col, err := gc.NewCollector(cfg)
	if err != nil {
		return err
	}

	worktrees, err := col.SweepWorktrees(ctx)
	if err != nil {
		return err
	}

	staging, err := col.SweepStaging(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d worktrees, %d staging dirs\n", len(worktrees), len(staging))

	if opts.All {
		snaps, err := col.SweepSnapshots(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Removed %d snapshots\n", len(snaps))
	}

	return nil
}
