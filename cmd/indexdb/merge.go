package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/indexdb"
	"github.com/hupe1980/indexdb/config"
	"github.com/hupe1980/indexdb/daemon"
)

// openInputs opens index files and every entry of archive files.
func openInputs(e *env, paths []string) ([]*indexdb.Index, error) {
	var out []*indexdb.Index
	fail := func(err error) ([]*indexdb.Index, error) {
		for _, idx := range out {
			_ = idx.Close()
		}
		return nil, err
	}

	for _, path := range paths {
		kind, err := sniff(path)
		if err != nil {
			return fail(err)
		}
		if kind == kindIndex {
			idx, err := indexdb.Open(path, e.indexOptions()...)
			if err != nil {
				return fail(err)
			}
			out = append(out, idx)
			continue
		}
		ar, err := indexdb.OpenArchive(path, e.indexOptions()...)
		if err != nil {
			return fail(err)
		}
		for i := range ar.Len() {
			idx, err := ar.OpenEntry(i)
			if err != nil {
				return fail(err)
			}
			out = append(out, idx)
		}
	}
	return out, nil
}

func mergeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "concurrency", Usage: "Pairwise merges run at once (default: from config)"},
		&cli.Int64Flag{Name: "memory-limit", Usage: "Bytes of source indexes held by running merges (default: from config)"},
	}
}

func mergeOptions(c *cli.Context, e *env) indexdb.MergeOptions {
	opts := indexdb.MergeOptions{
		Concurrency:      e.cfg.Merge.Concurrency,
		MemoryLimitBytes: e.cfg.Merge.MemoryLimitBytes,
	}
	if c.IsSet("concurrency") {
		opts.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("memory-limit") {
		opts.MemoryLimitBytes = c.Int64("memory-limit")
	}
	return opts
}

func mergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge indexes and archive entries into one index",
		ArgsUsage: "INPUT...",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, TakesFile: true, Usage: "Index file to write"},
		}, mergeFlags()...),
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "--output FILE INPUT..."); err != nil {
				return err
			}
			e := getEnv(c)
			inputs, err := openInputs(e, c.Args().Slice())
			if err != nil {
				return err
			}
			merged, err := indexdb.MergeAll(c.Context, inputs, mergeOptions(c, e))
			if err != nil {
				return err
			}
			defer merged.Close()

			if err := merged.WriteFile(c.String("output")); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "merged %d indexes into %s\n", len(inputs), c.String("output"))
			return nil
		},
	}
}

// producerArgs substitutes the unit and output path into the configured args.
func producerArgs(args []string, in, out string) []string {
	r := strings.NewReplacer("{in}", in, "{out}", out)
	res := make([]string, len(args))
	for i, a := range args {
		res[i] = r.Replace(a)
	}
	return res
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Run the configured producer on every unit and combine the results",
		ArgsUsage: "UNIT...",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, TakesFile: true, Usage: "Index or archive file to write"},
			&cli.BoolFlag{Name: "archive", Usage: "Write one archive entry per unit instead of merging"},
			&cli.StringFlag{Name: "command", Usage: "Producer command (default: from config)"},
			&cli.IntFlag{Name: "workers", Usage: "Concurrent producer processes (default: from config)"},
		}, mergeFlags()...),
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "--output FILE UNIT..."); err != nil {
				return err
			}
			e := getEnv(c)
			prod := e.cfg.Producer
			if c.IsSet("command") {
				prod.Command = c.String("command")
			}
			if c.IsSet("workers") {
				prod.Workers = c.Int("workers")
			}
			if prod.Command == "" {
				return fmt.Errorf("no producer command configured")
			}

			tmp, err := os.MkdirTemp("", "indexdb-build-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmp)

			units := c.Args().Slice()
			var names []string
			if c.Bool("archive") {
				if names, err = entryNames(units); err != nil {
					return err
				}
			}
			outs, err := produce(c, e, prod, units, tmp)
			if err != nil {
				return err
			}

			if c.Bool("archive") {
				aw := indexdb.NewArchiveWriter(e.indexOptions()...)
				for i, name := range names {
					if err := aw.AddFile(name, outs[i]); err != nil {
						return err
					}
				}
				if err := aw.WriteFile(c.String("output")); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "archived %d units into %s\n", len(units), c.String("output"))
				return nil
			}

			inputs, err := openInputs(e, outs)
			if err != nil {
				return err
			}
			merged, err := indexdb.MergeAll(c.Context, inputs, mergeOptions(c, e))
			if err != nil {
				return err
			}
			defer merged.Close()
			if err := merged.WriteFile(c.String("output")); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "built %d units into %s\n", len(units), c.String("output"))
			return nil
		},
	}
}

// entryNames names archive entries by unit path relative to the deepest
// directory containing every unit, using forward slashes.
func entryNames(units []string) ([]string, error) {
	abs := make([]string, len(units))
	for i, u := range units {
		p, err := filepath.Abs(u)
		if err != nil {
			return nil, err
		}
		abs[i] = p
	}

	root := filepath.Dir(abs[0])
	for _, p := range abs[1:] {
		for !within(root, p) {
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	names := make([]string, len(abs))
	seen := make(map[string]string, len(abs))
	for i, p := range abs {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, err
		}
		name := filepath.ToSlash(rel)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("units %s and %s map to the same archive entry %q", prev, units[i], name)
		}
		seen[name] = units[i]
		names[i] = name
	}
	return names, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// produce runs the producer once per unit and returns the index paths written.
func produce(c *cli.Context, e *env, prod config.ProducerConfig, units []string, dir string) ([]string, error) {
	opts := []daemon.Option{daemon.WithLogger(e.logger), daemon.WithTimeout(prod.Timeout())}
	if prod.Workers > 0 {
		opts = append(opts, daemon.WithSize(prod.Workers))
	}
	pool := daemon.NewPool(prod.Command, opts...)

	ins := make([]string, len(units))
	outs := make([]string, len(units))
	for i, unit := range units {
		in, err := filepath.Abs(unit)
		if err != nil {
			return nil, err
		}
		ins[i] = in
		outs[i] = filepath.Join(dir, strconv.Itoa(i)+".idx")
	}

	g, ctx := errgroup.WithContext(c.Context)
	for i, unit := range units {
		in, out := ins[i], outs[i]
		g.Go(func() error {
			code, err := pool.Run(ctx, dir, producerArgs(prod.Args, in, out))
			if err != nil {
				return fmt.Errorf("produce %s: %w", unit, err)
			}
			if code != 0 {
				return fmt.Errorf("produce %s: exit status %d", unit, code)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}
