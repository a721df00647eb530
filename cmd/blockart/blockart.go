package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tmpim/blockart"
	"github.com/tmpim/blockart/palettedb"
	"github.com/tmpim/blockart/server"
	"github.com/urfave/cli/v2"
)

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

// loadSynthesizer builds the palette, index and resolver once for a run.
func loadSynthesizer(c *cli.Context, logger *log.Logger) (*blockart.Synthesizer, error) {
	var records []blockart.Record
	var aliases *blockart.AliasTable
	var err error

	if dbPath := c.String("db"); dbPath != "" {
		db, err := palettedb.Open(dbPath, logger)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		if records, err = db.Records(); err != nil {
			return nil, err
		}
		if aliases, err = db.Aliases(); err != nil {
			return nil, err
		}
	} else {
		if records, err = blockart.LoadPaletteFile(c.String("palette")); err != nil {
			return nil, err
		}
	}

	// A palette database carries its own aliases unless a file is asked for.
	if path := c.String("aliases"); path != "" && (c.String("db") == "" || c.IsSet("aliases")) {
		if aliases, err = blockart.LoadAliasFile(path); err != nil {
			return nil, err
		}
		if aliases == nil {
			logger.Println("Warning: alias file", path, "not found, using identity mapping")
		}
	}

	palette, err := blockart.LoadPalette(records, logger)
	if err != nil {
		return nil, err
	}

	index, err := blockart.BuildIndex(palette, blockart.DefaultWeights)
	if err != nil {
		return nil, err
	}

	mode, err := blockart.ParseAliasMode(c.String("alias-mode"))
	if err != nil {
		return nil, err
	}

	return blockart.NewSynthesizer(index, blockart.SynthOptions{
		Resolver: blockart.Resolver{
			Table:    aliases,
			Mode:     mode,
			Sentinel: c.String("sentinel"),
		},
		Workers: c.Int("workers"),
		Logger:  logger,
	}), nil
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func commandFormat(c *cli.Context) blockart.CommandFormat {
	return blockart.CommandFormat{
		Verb:      c.String("verb"),
		Namespace: c.String("namespace"),
	}
}

func origin(c *cli.Context) blockart.Point {
	return blockart.Point{X: c.Int("x"), Y: c.Int("y"), Z: c.Int("z")}
}

var paletteFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "palette",
		EnvVars: []string{"BLOCKART_PALETTE"},
		Value:   "data/block_colors.json",
		Usage:   "path to block colour JSON",
	},
	&cli.StringFlag{
		Name:    "aliases",
		EnvVars: []string{"BLOCKART_ALIASES"},
		Value:   "data/texture_to_block.json",
		Usage:   "path to texture to block alias JSON (optional)",
	},
	&cli.StringFlag{
		Name:    "db",
		EnvVars: []string{"BLOCKART_DB"},
		Usage:   "read palette and aliases from a palette database instead",
	},
	&cli.StringFlag{
		Name:  "alias-mode",
		Value: "identity",
		Usage: "how unmapped textures resolve (identity or sentinel)",
	},
	&cli.StringFlag{
		Name:  "sentinel",
		Value: blockart.DefaultSentinel,
		Usage: "block used for unmapped textures in sentinel mode",
	},
	&cli.IntFlag{
		Name:  "workers",
		Usage: "number of rows matched concurrently (0 = number of CPUs)",
	},
}

var placementFlags = []cli.Flag{
	&cli.IntFlag{Name: "x", Value: 0, Usage: "starting X coordinate"},
	&cli.IntFlag{Name: "y", Value: 64, Usage: "starting Y coordinate"},
	&cli.IntFlag{Name: "z", Value: 0, Usage: "starting Z coordinate"},
	&cli.StringFlag{
		Name:  "axis",
		Value: "upright",
		Usage: "mosaic orientation (upright or flat)",
	},
	&cli.StringFlag{Name: "verb", Value: "setblock", Usage: "command verb"},
	&cli.StringFlag{Name: "namespace", Value: "minecraft", Usage: "block namespace"},
}

var sizeFlags = []cli.Flag{
	&cli.IntFlag{Name: "width", Value: 128, Usage: "width of mosaic in blocks (multiple of 16)"},
	&cli.IntFlag{Name: "height", Usage: "height of mosaic in blocks (default: keep aspect ratio)"},
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

func mosaicAction(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	start := time.Now()
	logger := newLogger(c)

	synth, err := loadSynthesizer(c, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	policy, err := blockart.ParseAxisPolicy(c.String("axis"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	img, err := blockart.LoadImage(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err, 1)
	}

	spec, err := blockart.NewGridSpec(img.Bounds(), c.Int("width"), c.Int("height"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	grid, err := synth.Synthesize(c.Context, img, spec)
	if err != nil {
		return cli.Exit(err, 1)
	}

	output := c.Args().Get(1)
	if err := blockart.SaveImage(output, grid.Image()); err != nil {
		return cli.Exit(err, 1)
	}
	log.Printf("Mosaic saved to %s (%s)", output, spec)

	if path := c.String("commands"); path != "" {
		n, err := blockart.SaveCommands(path, blockart.Emit(grid, origin(c), policy), commandFormat(c))
		if err != nil {
			return cli.Exit(err, 1)
		}
		log.Printf("%d %s commands saved to %s", n, c.String("verb"), path)
	}

	logger.Println("That took " + time.Since(start).String() + ".")
	return nil
}

func commandsAction(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)

	synth, err := loadSynthesizer(c, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	policy, err := blockart.ParseAxisPolicy(c.String("axis"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	img, err := blockart.LoadImage(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err, 1)
	}

	spec, err := blockart.NewGridSpec(img.Bounds(), c.Int("width"), c.Int("height"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	grid, err := synth.Synthesize(c.Context, img, spec)
	if err != nil {
		return cli.Exit(err, 1)
	}

	path := c.Args().Get(1)
	n, err := blockart.SaveCommands(path, blockart.Emit(grid, origin(c), policy), commandFormat(c))
	if err != nil {
		return cli.Exit(err, 1)
	}
	log.Printf("%d %s commands saved to %s", n, c.String("verb"), path)
	return nil
}

func paletteGenerateAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: blockart palette generate [options] TEXTURE_DIR", 1)
	}

	logger := newLogger(c)

	method, err := blockart.ParseSampleMethod(c.String("method"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	if dbPath := c.String("db"); dbPath != "" {
		db, err := palettedb.Open(dbPath, logger)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer db.Close()

		result, err := db.Scan(c.Context, c.Args().First(), method)
		if err != nil {
			return cli.Exit(err, 1)
		}
		log.Printf("Sampled %d textures (%d unchanged, %d without visible pixels, %d removed) into %s",
			result.Sampled, result.Unchanged, result.Invisible, result.Removed, dbPath)
		return nil
	}

	records, err := blockart.GeneratePalette(c.Context, c.Args().First(), method, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	output := c.String("output")
	f, err := createFile(output)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	if err := blockart.WriteRecords(f, records); err != nil {
		return cli.Exit(err, 1)
	}

	log.Printf("Saved %d block colors to %s", len(records), output)
	return nil
}

func paletteCheckAction(c *cli.Context) error {
	records, err := blockart.LoadPaletteFile(c.String("palette"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	invalid := blockart.InvalidRecords(records)
	for _, rec := range invalid {
		fmt.Printf("Skipping invalid entry %s: %s\n", rec.ID, rec.Reason)
	}
	log.Printf("%d of %d entries are valid", len(records)-len(invalid), len(records))
	return nil
}

func aliasesAction(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	files, err := blockart.ListTextures(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}

	names := make([]string, len(files))
	for i, file := range files {
		names[i] = blockart.TextureID(file)
	}

	mapping := blockart.GenerateAliases(names, nil)

	if dbPath := c.String("db"); dbPath != "" {
		db, err := palettedb.Open(dbPath, newLogger(c))
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer db.Close()

		if err := db.SetAliases(mapping); err != nil {
			return cli.Exit(err, 1)
		}
		log.Printf("Stored %d aliases in %s", len(mapping), dbPath)
		return nil
	}

	output := c.String("output")
	f, err := createFile(output)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	if err := blockart.WriteAliases(f, mapping); err != nil {
		return cli.Exit(err, 1)
	}

	log.Printf("Generated texture-to-block mapping with %d entries to %s", len(mapping), output)
	return nil
}

func matchAction(c *cli.Context) error {
	if c.NArg() < 3 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	var rgb [3]uint8
	for i := range rgb {
		v, err := strconv.Atoi(c.Args().Get(i))
		if err != nil || v < 0 || v > 255 {
			return cli.Exit("colour components must be integers between 0 and 255", 1)
		}
		rgb[i] = uint8(v)
	}

	synth, err := loadSynthesizer(c, newLogger(c))
	if err != nil {
		return cli.Exit(err, 1)
	}

	col := blockart.RGB{R: rgb[0], G: rgb[1], B: rgb[2]}
	cell := synth.MatchColor(col)
	fmt.Printf("Closest block to (%d, %d, %d) -> %s (texture %s, distance=%.2f)\n",
		col.R, col.G, col.B, cell.Block, cell.Matched, cell.Distance)
	return nil
}

func serveAction(c *cli.Context) error {
	logger := newLogger(c)

	synth, err := loadSynthesizer(c, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	policy, err := blockart.ParseAxisPolicy(c.String("axis"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	srv := server.New(synth, server.Options{
		Format:        commandFormat(c),
		DefaultWidth:  c.Int("width"),
		DefaultOrigin: origin(c),
		DefaultPolicy: policy,
		Logger:        log.New(os.Stderr, "", log.LstdFlags),
	})

	log.Println("blockart: listening on", c.String("addr"))
	return srv.Start(c.String("addr"))
}

func main() {
	log.SetFlags(0)

	app := cli.NewApp()

	app.Name = "blockart"
	app.Usage = "Convert images into block mosaics and placement commands"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "mosaic",
			Usage:     "Generate a mosaic preview and optional command file",
			ArgsUsage: "INPUT OUTPUT",
			Flags: concat(paletteFlags, sizeFlags, placementFlags, []cli.Flag{
				&cli.StringFlag{Name: "commands", Usage: "optional path to save commands"},
			}),
			Action: mosaicAction,
		},
		{
			Name:      "commands",
			Usage:     "Generate only the command file for an image",
			ArgsUsage: "INPUT OUTPUT",
			Flags:     concat(paletteFlags, sizeFlags, placementFlags),
			Action:    commandsAction,
		},
		{
			Name:  "palette",
			Usage: "Build or check block colour palettes",
			Subcommands: []*cli.Command{
				{
					Name:      "generate",
					Usage:     "Sample block textures into a palette",
					ArgsUsage: "TEXTURE_DIR",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "data/block_colors.json", Usage: "palette JSON to write"},
						&cli.StringFlag{Name: "db", EnvVars: []string{"BLOCKART_DB"}, Usage: "store samples in a palette database instead"},
						&cli.StringFlag{Name: "method", Value: "average", Usage: "sampling method (average, dominant or median; dominant varies between runs)"},
					},
					Action: paletteGenerateAction,
				},
				{
					Name:  "check",
					Usage: "List palette entries that will be skipped",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "palette", EnvVars: []string{"BLOCKART_PALETTE"}, Value: "data/block_colors.json", Usage: "path to block colour JSON"},
					},
					Action: paletteCheckAction,
				},
			},
		},
		{
			Name:      "aliases",
			Usage:     "Guess the block for every texture",
			ArgsUsage: "TEXTURE_DIR",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "data/texture_to_block.json", Usage: "alias JSON to write"},
				&cli.StringFlag{Name: "db", EnvVars: []string{"BLOCKART_DB"}, Usage: "store aliases in a palette database instead"},
			},
			Action: aliasesAction,
		},
		{
			Name:      "match",
			Usage:     "Find the closest block to a colour",
			ArgsUsage: "R G B",
			Flags:     paletteFlags,
			Action:    matchAction,
		},
		{
			Name:  "serve",
			Usage: "Serve mosaics over HTTP",
			Flags: concat(paletteFlags, placementFlags, []cli.Flag{
				&cli.IntFlag{Name: "width", Value: 128, Usage: "default width of mosaic in blocks"},
				&cli.StringFlag{Name: "addr", EnvVars: []string{"BLOCKART_ADDR"}, Value: ":9999", Usage: "listen address"},
			}),
			Action: serveAction,
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
