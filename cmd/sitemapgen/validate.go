package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/wetbulb-sitemap/internal/sitemap"
)

func (e *env) validate(c *cli.Context) error {
	dir := e.cfg.OutputDir
	if c.NArg() > 0 {
		dir = c.Args().First()
	}

	validator, err := sitemap.NewValidator()
	if err != nil {
		return cli.Exit(fmt.Sprintf("load schemas: %v", err), 1)
	}

	table := tablewriter.NewWriter(e.stdout)
	table.SetHeader([]string{"File", "Result"})
	table.SetAutoFormatHeaders(false)

	var checked, failed int
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".xml") {
			return nil
		}
		rel, _ := filepath.Rel(dir, path)

		doc, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		checked++
		if verr := validator.Validate(doc); verr != nil {
			failed++
			table.Append([]string{rel, describeInvalid(verr)})
			e.logger.Warn("invalid sitemap document", "path", path, "error", verr)
			return nil
		}
		table.Append([]string{rel, "ok"})
		return nil
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("validate %s: %v", dir, err), 1)
	}

	table.Render()
	fmt.Fprintf(e.stdout, "\n%d file(s) checked, %d invalid\n", checked, failed)

	switch {
	case checked == 0:
		return cli.Exit(fmt.Sprintf("validate: no XML files in %s", dir), 1)
	case failed > 0:
		return cli.Exit(fmt.Sprintf("validate: %d invalid file(s)", failed), 1)
	}
	return nil
}

func describeInvalid(err error) string {
	var verr *sitemap.ValidationError
	if errors.As(err, &verr) && len(verr.Violations) > 0 {
		msg := verr.Violations[0]
		if n := len(verr.Violations) - 1; n > 0 {
			msg += fmt.Sprintf(" (+%d more)", n)
		}
		return msg
	}
	return err.Error()
}
