package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/wetbulb-sitemap/internal/adapter/filesystem"
	"github.com/couchcryptid/wetbulb-sitemap/internal/adapter/kafka"
	"github.com/couchcryptid/wetbulb-sitemap/internal/gazetteer"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
	"github.com/couchcryptid/wetbulb-sitemap/internal/pipeline"
	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

func (e *env) generate(c *cli.Context) error {
	out := c.String("out")
	if out == "" {
		out = e.cfg.OutputDir
	}

	var publisher pipeline.Publisher
	if e.cfg.PublishEnabled() && !c.Bool("no-publish") {
		p := kafka.NewPublisher(e.cfg.KafkaBrokers, e.cfg.KafkaTopic, e.logger)
		defer func() { _ = p.Close() }()
		publisher = p
	}

	g := pipeline.New(
		gazetteer.NewLoader(e.cfg.GazetteerPath, e.logger),
		sitemap.NewLinks(e.cfg.SiteBaseURL, e.cfg.PathOrder),
		filesystem.NewSink(out, e.logger),
		publisher,
		clockwork.NewRealClock(),
		e.logger,
		observability.NewUnregisteredMetrics(),
		pipeline.Settings{
			PageSize:     e.cfg.PageSize,
			FlatPageSize: e.cfg.FlatPageSize,
			Concurrency:  e.cfg.BatchSize,
		},
	)

	report, err := g.Generate(c.Context, pipeline.Options{Flat: c.Bool("flat")})
	printReport(e.stdout, out, report)
	if err != nil {
		return cli.Exit(fmt.Sprintf("generate: %v", err), 1)
	}
	if err := report.Err(); err != nil {
		return cli.Exit(fmt.Sprintf("generate: %d task(s) failed: %v", len(report.Failed), err), 1)
	}
	if report.PublishErr != nil {
		return cli.Exit(fmt.Sprintf("generate: publish artifacts: %v", report.PublishErr), 1)
	}
	return nil
}

func printReport(w io.Writer, out string, report pipeline.Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Kind", "URLs"})
	table.SetAutoFormatHeaders(false)
	for _, a := range report.Written {
		table.Append([]string{a.File, a.Kind, strconv.Itoa(a.URLCount)})
	}
	table.Render()

	fmt.Fprintf(w, "\n%d document(s) written to %s\n", len(report.Written), out)
	fmt.Fprintf(w, "skipped: %d malformed, %d unpublishable; %d slug collision(s)\n",
		report.Malformed, report.Unpublishable, report.Collisions)
	for _, f := range report.Failed {
		name := f.Country
		if name == "" {
			name = "(shared)"
		}
		fmt.Fprintf(w, "FAILED %s: %v\n", name, f.Err)
	}
}
