// Command sitemapgen pre-renders the site's sitemap documents to disk and
// carries the offline gazetteer tooling.
//
// Usage:
//
//	sitemapgen generate [--flat] [--out public]
//	sitemapgen validate [dir]
//	sitemapgen collisions [--fail]
//	sitemapgen resolve --input cities.json --admin1 admin1CodesASCII.txt \
//	  --countries country_codes.csv [--output data/resolved_cities.json]
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/wetbulb-sitemap/internal/config"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
)

// env is the state shared by every subcommand, filled in before the
// subcommand runs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := 1
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			code = exit.ExitCode()
		}
		os.Exit(code)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	e := &env{stdout: stdout, stderr: stderr}

	return &cli.App{
		Name:      "sitemapgen",
		Usage:     "generate and check wetbulb35 sitemaps",
		Writer:    stdout,
		ErrWriter: stderr,
		Before:    e.setup,
		// Exit codes are applied by main so newApp stays usable in tests.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "write every sitemap document, the index and robots.txt",
				Action: e.generate,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "output directory (default SITEMAP_OUTPUT_DIR)",
					},
					&cli.BoolFlag{
						Name:  "flat",
						Usage: "partition all locations regardless of country",
					},
					&cli.BoolFlag{
						Name:  "no-publish",
						Usage: "skip Kafka artifact notifications",
					},
				},
			},
			{
				Name:      "validate",
				Usage:     "check every XML file in a directory against the sitemap schemas",
				ArgsUsage: "[dir]",
				Action:    e.validate,
			},
			{
				Name:   "collisions",
				Usage:  "list records that normalize to the same location path",
				Action: e.collisions,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fail",
						Usage: "exit non-zero when any collision is found",
					},
				},
			},
			{
				Name:   "resolve",
				Usage:  "resolve country and region codes of a GeoNames city export",
				Action: e.resolve,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Usage: "population-filtered GeoNames city array", Required: true},
					&cli.StringFlag{Name: "admin1", Usage: "admin1CodesASCII.txt", Required: true},
					&cli.StringFlag{Name: "countries", Usage: "country code CSV with Code and Name columns", Required: true},
					&cli.StringFlag{Name: "output", Usage: "resolved gazetteer (default GAZETTEER_PATH)"},
				},
			},
		},
	}
}

func (e *env) setup(*cli.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	e.cfg = cfg
	// Results go to stdout, so logs go to stderr.
	e.logger = observability.NewWriterLogger(e.stderr, cfg.LogLevel, cfg.LogFormat)
	return nil
}
