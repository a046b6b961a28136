package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/wetbulb-sitemap/internal/adapter/filesystem"
	"github.com/couchcryptid/wetbulb-sitemap/internal/gazetteer"
)

func (e *env) resolve(c *cli.Context) error {
	output := c.String("output")
	if output == "" {
		output = e.cfg.GazetteerPath
	}

	tables, err := loadCodeTables(c.String("countries"), c.String("admin1"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve: %v", err), 1)
	}

	in, err := os.Open(c.String("input"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve: %v", err), 1)
	}
	defer in.Close()

	resolver := gazetteer.NewResolver(tables, e.logger)
	sink := filesystem.NewSink(filepath.Dir(output), e.logger)

	var stats gazetteer.ResolveStats
	err = sink.WriteDocument(c.Context, filepath.Base(output), func(w io.Writer) error {
		var rerr error
		stats, rerr = resolver.Resolve(c.Context, in, w)
		return rerr
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve: %v", err), 1)
	}

	fmt.Fprintf(e.stdout, "%d record(s) written to %s (%d unresolved countries, %d unresolved regions)\n",
		stats.Records, output, stats.UnresolvedCountries, stats.UnresolvedRegions)
	return nil
}

func loadCodeTables(countriesPath, admin1Path string) (*gazetteer.CodeTables, error) {
	countries, err := os.Open(countriesPath)
	if err != nil {
		return nil, err
	}
	defer countries.Close()

	admin1, err := os.Open(admin1Path)
	if err != nil {
		return nil, err
	}
	defer admin1.Close()

	return gazetteer.LoadCodeTables(countries, admin1)
}
