package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/indexdb/config"
	"github.com/hupe1980/indexdb/internal/resource"
	"github.com/hupe1980/indexdb/publish"
)

// publisher opens the configured store.
func publisher(c *cli.Context) (*publish.Publisher, error) {
	e := getEnv(c)
	store, err := config.OpenStore(c.Context, e.cfg.Store)
	if err != nil {
		return nil, err
	}
	rc := resource.NewController(resource.Config{
		IOLimitBytesPerSec: e.cfg.Store.IOLimitBytesPerSec,
	})
	return publish.New(store,
		publish.WithCompression(e.cfg.Store.Compression),
		publish.WithResourceController(rc),
		publish.WithLogger(e.logger),
		publish.WithVerify(c.Bool("verify")),
	)
}

func nameFlag() cli.Flag {
	return &cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Release name"}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Upload an archive and make it the live release",
		ArgsUsage: "ARCHIVE",
		Flags: []cli.Flag{
			nameFlag(),
			&cli.BoolFlag{Name: "verify", Usage: "Verify entry hashes before uploading"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "--name NAME ARCHIVE"); err != nil {
				return err
			}
			pub, err := publisher(c)
			if err != nil {
				return err
			}
			rel, err := pub.Publish(c.Context, c.String("name"), c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s\t%d entries\t%d bytes\n", rel.Key, rel.Entries, rel.Size)
			return nil
		},
	}
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download the live archive of a release",
		Flags: []cli.Flag{
			nameFlag(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, TakesFile: true, Usage: "Archive file to write"},
		},
		Action: func(c *cli.Context) error {
			pub, err := publisher(c)
			if err != nil {
				return err
			}
			key, err := pub.Fetch(c.Context, c.String("name"), c.String("output"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s\t%s\n", key, c.String("output"))
			return nil
		},
	}
}

func releasesCommand() *cli.Command {
	return &cli.Command{
		Name:  "releases",
		Usage: "List the published archives of a release, oldest first",
		Flags: []cli.Flag{nameFlag()},
		Action: func(c *cli.Context) error {
			pub, err := publisher(c)
			if err != nil {
				return err
			}
			keys, err := pub.Releases(c.Context, c.String("name"))
			if err != nil {
				return err
			}
			current, _ := pub.Current(c.Context, c.String("name"))
			for _, key := range keys {
				mark := " "
				if key == current {
					mark = "*"
				}
				fmt.Fprintf(c.App.Writer, "%s %s\n", mark, key)
			}
			return nil
		},
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete old archives of a release",
		Flags: []cli.Flag{
			nameFlag(),
			&cli.IntFlag{Name: "keep", Value: 3, Usage: "Newest archives to keep"},
		},
		Action: func(c *cli.Context) error {
			pub, err := publisher(c)
			if err != nil {
				return err
			}
			deleted, err := pub.Prune(c.Context, c.String("name"), c.Int("keep"))
			for _, key := range deleted {
				fmt.Fprintln(c.App.Writer, "deleted", key)
			}
			return err
		},
	}
}
