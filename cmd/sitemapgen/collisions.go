package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/wetbulb-sitemap/internal/gazetteer"
	"github.com/couchcryptid/wetbulb-sitemap/internal/observability"
	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

func (e *env) collisions(c *cli.Context) error {
	p := sitemap.NewPartitioner(
		gazetteer.NewLoader(e.cfg.GazetteerPath, e.logger),
		sitemap.NewLinks(e.cfg.SiteBaseURL, e.cfg.PathOrder),
		e.cfg.FlatPageSize,
		e.logger,
		observability.NewUnregisteredMetrics(),
	)

	found, stats, err := p.Collisions(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("collisions: %v", err), 1)
	}

	table := tablewriter.NewWriter(e.stdout)
	table.SetHeader([]string{"Path", "First", "Second", "Distance km"})
	table.SetAutoFormatHeaders(false)
	for _, col := range found {
		table.Append([]string{
			col.Path,
			describeRecord(col.First),
			describeRecord(col.Second),
			strconv.FormatFloat(col.DistanceKm, 'f', 1, 64),
		})
	}
	table.Render()

	fmt.Fprintf(e.stdout, "\n%d record(s) published, %d collision(s)\n", stats.Published, len(found))
	if c.Bool("fail") && len(found) > 0 {
		return cli.Exit(fmt.Sprintf("collisions: %d found", len(found)), 1)
	}
	return nil
}

func describeRecord(r sitemap.CollisionRecord) string {
	return fmt.Sprintf("#%d %s (%s)", r.Index, r.Name, r.Geohash)
}
