package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/indexdb"
)

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Create, list, extract and verify archives",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Pack index files into an archive",
				ArgsUsage: "[NAME=]FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, TakesFile: true, Usage: "Archive file to write"},
					&cli.StringFlag{Name: "hash", Value: string(indexdb.HashSHA256), Usage: "Entry hash algorithm (sha256, blake3)"},
				},
				Action: archiveCreate,
			},
			{
				Name:      "list",
				Usage:     "List archive entries",
				ArgsUsage: "ARCHIVE",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "ARCHIVE"); err != nil {
						return err
					}
					return printArchive(c.App.Writer, getEnv(c), c.Args().First())
				},
			},
			{
				Name:      "extract",
				Usage:     "Write archive entries to index files",
				ArgsUsage: "ARCHIVE [ENTRY...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: ".", TakesFile: true, Usage: "Directory to extract into"},
				},
				Action: archiveExtract,
			},
			{
				Name:      "verify",
				Usage:     "Check every entry against its content hash",
				ArgsUsage: "ARCHIVE",
				Action:    archiveVerify,
			},
		},
	}
}

// entrySpec splits "name=path"; a bare path is named after its base name.
func entrySpec(arg string) (name, path string) {
	if name, path, ok := strings.Cut(arg, "="); ok && name != "" {
		return name, path
	}
	return strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg)), arg
}

func archiveCreate(c *cli.Context) error {
	if err := requireArgs(c, 1, "--output FILE [NAME=]FILE..."); err != nil {
		return err
	}
	alg := indexdb.HashAlgorithm(c.String("hash"))
	switch alg {
	case indexdb.HashSHA256, indexdb.HashBLAKE3:
	default:
		return fmt.Errorf("unknown hash algorithm %q", alg)
	}

	e := getEnv(c)
	aw := indexdb.NewArchiveWriter(append(e.indexOptions(), indexdb.WithHashAlgorithm(alg))...)
	for _, arg := range c.Args().Slice() {
		name, path := entrySpec(arg)
		if err := aw.AddFile(name, path); err != nil {
			return err
		}
	}
	if err := aw.WriteFile(c.String("output")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d entries to %s\n", aw.Len(), c.String("output"))
	return nil
}

func archiveExtract(c *cli.Context) error {
	if err := requireArgs(c, 1, "[--dir DIR] ARCHIVE [ENTRY...]"); err != nil {
		return err
	}
	ar, err := indexdb.OpenArchive(c.Args().First(), getEnv(c).indexOptions()...)
	if err != nil {
		return err
	}

	names := c.Args().Tail()
	if len(names) == 0 {
		for _, ent := range ar.Entries() {
			names = append(names, ent.Name)
		}
	}

	dir := c.String("dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range names {
		i := ar.IndexOf(name)
		if i < 0 {
			return fmt.Errorf("%w: archive entry %q", indexdb.ErrNotFound, name)
		}
		data, err := ar.ReadEntry(c.Context, i)
		if err != nil {
			return err
		}
		path, err := extractPath(dir, name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, path)
	}
	return nil
}

// extractPath maps an entry name to a file below dir. Slash-separated names
// become subdirectories and ".idx" is appended unless already present.
func extractPath(dir, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("archive entry %q escapes the extract directory", name)
	}
	if !strings.HasSuffix(rel, ".idx") {
		rel += ".idx"
	}
	return filepath.Join(dir, rel), nil
}

func archiveVerify(c *cli.Context) error {
	if err := requireArgs(c, 1, "ARCHIVE"); err != nil {
		return err
	}
	ar, err := indexdb.OpenArchive(c.Args().First(), getEnv(c).indexOptions()...)
	if err != nil {
		return err
	}
	var failed int
	for i, ent := range ar.Entries() {
		status := "ok"
		if err := ar.VerifyEntry(c.Context, i); err != nil {
			status = err.Error()
			failed++
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", ent.Name, status)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d entries failed verification", failed, ar.Len())
	}
	return nil
}
