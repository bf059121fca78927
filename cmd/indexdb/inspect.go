package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/indexdb"
)

type fileKind int

const (
	kindIndex fileKind = iota
	kindArchive
)

// sniff tells index files from archives by their signature.
func sniff(path string) (fileKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sig := make([]byte, len(indexdb.IndexSignature))
	if _, err := io.ReadFull(f, sig); err != nil {
		return 0, fmt.Errorf("%s: %w: file too short", path, indexdb.ErrCorruptData)
	}
	switch string(sig) {
	case indexdb.IndexSignature:
		return kindIndex, nil
	case indexdb.ArchiveSignature:
		return kindArchive, nil
	default:
		return 0, fmt.Errorf("%s: %w: neither an index nor an archive", path, indexdb.ErrCorruptData)
	}
}

// eachIndex calls fn for the index at path, or for the entries of the archive
// at path. entry restricts an archive to one entry.
func eachIndex(e *env, path, entry string, fn func(name string, idx *indexdb.Index) error) error {
	kind, err := sniff(path)
	if err != nil {
		return err
	}
	if kind == kindIndex {
		if entry != "" {
			return fmt.Errorf("%s is an index, not an archive", path)
		}
		idx, err := indexdb.Open(path, e.indexOptions()...)
		if err != nil {
			return err
		}
		defer idx.Close()
		return fn("", idx)
	}

	ar, err := indexdb.OpenArchive(path, e.indexOptions()...)
	if err != nil {
		return err
	}
	for i, ent := range ar.Entries() {
		if entry != "" && ar.IndexOf(entry) != i {
			continue
		}
		idx, err := ar.OpenEntry(i)
		if err != nil {
			return err
		}
		err = fn(ent.Name, idx)
		if cerr := idx.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	if entry != "" && ar.IndexOf(entry) < 0 {
		return fmt.Errorf("%w: archive entry %q", indexdb.ErrNotFound, entry)
	}
	return nil
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() < n {
		return fmt.Errorf("usage: %s %s %s", c.App.Name, c.Command.Name, usage)
	}
	return nil
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Summarize an index or archive",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "FILE"); err != nil {
				return err
			}
			path := c.Args().First()
			kind, err := sniff(path)
			if err != nil {
				return err
			}
			if kind == kindArchive {
				return printArchive(c.App.Writer, getEnv(c), path)
			}
			return eachIndex(getEnv(c), path, "", func(_ string, idx *indexdb.Index) error {
				printIndex(c.App.Writer, idx)
				return nil
			})
		},
	}
}

func printIndex(w io.Writer, idx *indexdb.Index) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DICTIONARY\tENTRIES\tBYTES")
	for _, name := range idx.DictionaryNames() {
		d, _ := idx.Dictionary(name)
		fmt.Fprintf(tw, "%s\t%d\t%d\n", name, d.Len(), d.SizeBytes())
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TABLE\tROWS\tCOLUMNS")
	for _, name := range idx.TableNames() {
		t, _ := idx.Table(name)
		cols := make([]string, 0, t.ColumnCount())
		for _, col := range t.Columns() {
			cols = append(cols, col.String())
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", name, t.Len(), strings.Join(cols, ", "))
	}
	tw.Flush()
}

func printArchive(w io.Writer, e *env, path string) error {
	ar, err := indexdb.OpenArchive(path, e.indexOptions()...)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tOFFSET\tLENGTH\tHASH")
	for _, ent := range ar.Entries() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", ent.Name, ent.Offset, ent.Length, ent.Hash)
	}
	return tw.Flush()
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print dictionary entries and table rows",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "entry", Usage: "Archive entry to dump (default: all)"},
			&cli.StringFlag{Name: "dict", Usage: "Only dump this dictionary"},
			&cli.StringFlag{Name: "table", Usage: "Only dump this table"},
			&cli.BoolFlag{Name: "raw", Usage: "Print IDs instead of resolving bound columns"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "[--entry NAME] [--dict NAME] [--table NAME] FILE"); err != nil {
				return err
			}
			w := c.App.Writer
			dict, table := c.String("dict"), c.String("table")
			all := dict == "" && table == ""

			return eachIndex(getEnv(c), c.Args().First(), c.String("entry"), func(entry string, idx *indexdb.Index) error {
				prefix := ""
				if entry != "" {
					prefix = entry + ":"
				}
				for _, name := range idx.DictionaryNames() {
					if !all && name != dict {
						continue
					}
					d, _ := idx.Dictionary(name)
					cur, err := d.Begin()
					if err != nil {
						return err
					}
					for id, b := range cur.All() {
						fmt.Fprintf(w, "%s%s\t%d\t%s\n", prefix, name, id, b)
					}
				}
				for _, name := range idx.TableNames() {
					if !all && name != table {
						continue
					}
					t, _ := idx.Table(name)
					if err := dumpTable(w, prefix, idx, t, c.Bool("raw")); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func dumpTable(w io.Writer, prefix string, idx *indexdb.Index, t *indexdb.Table, raw bool) error {
	cols := t.Columns()
	dicts := make([]*indexdb.Dictionary, len(cols))
	if !raw {
		for i, col := range cols {
			if col.Dictionary != "" {
				dicts[i], _ = idx.Dictionary(col.Dictionary)
			}
		}
	}

	cur, err := t.Begin()
	if err != nil {
		return err
	}
	fields := make([]string, len(cols))
	for row := range cur.All() {
		for i, id := range row {
			fields[i] = formatValue(dicts[i], id)
		}
		fmt.Fprintf(w, "%s%s\t%s\n", prefix, t.Name(), strings.Join(fields, "\t"))
	}
	return nil
}

func formatValue(d *indexdb.Dictionary, id indexdb.ID) string {
	if d != nil {
		if b, ok := d.Lookup(id); ok {
			return string(b)
		}
	}
	return strconv.FormatUint(uint64(id), 10)
}

func grepCommand() *cli.Command {
	return &cli.Command{
		Name:      "grep",
		Usage:     "Search dictionary entries with a regular expression (smart-case)",
		ArgsUsage: "FILE PATTERN",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "entry", Usage: "Archive entry to search (default: all)"},
			&cli.StringSliceFlag{Name: "dict", Usage: "Dictionaries to search (default: all)"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2, "[--entry NAME] [--dict NAME]... FILE PATTERN"); err != nil {
				return err
			}
			p, err := indexdb.NewPattern(c.Args().Get(1))
			if err != nil {
				return err
			}
			only := make(map[string]bool)
			for _, d := range c.StringSlice("dict") {
				only[d] = true
			}

			w := c.App.Writer
			return eachIndex(getEnv(c), c.Args().First(), c.String("entry"), func(entry string, idx *indexdb.Index) error {
				prefix := ""
				if entry != "" {
					prefix = entry + ":"
				}
				for _, name := range idx.DictionaryNames() {
					if len(only) > 0 && !only[name] {
						continue
					}
					d, _ := idx.Dictionary(name)
					ids, err := d.Match(p)
					if err != nil {
						return err
					}
					for _, id := range ids {
						b, _ := d.Lookup(id)
						fmt.Fprintf(w, "%s%s\t%d\t%s\n", prefix, name, id, b)
					}
				}
				return nil
			})
		},
	}
}
