package sitemap

import (
	"bytes"
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/jacoelho/xsd"
	xsderrors "github.com/jacoelho/xsd/errors"
)

//go:embed schemas/*.xsd
var schemaFiles embed.FS

// Validator checks documents against the sitemap 0.9 schemas.
type Validator struct {
	urlset *xsd.Schema
	index  *xsd.Schema
}

// NewValidator compiles the embedded urlset and sitemapindex schemas.
func NewValidator() (*Validator, error) {
	fsys, err := fs.Sub(schemaFiles, "schemas")
	if err != nil {
		return nil, err
	}
	urlset, err := xsd.Load(fsys, "sitemap.xsd")
	if err != nil {
		return nil, err
	}
	index, err := xsd.Load(fsys, "siteindex.xsd")
	if err != nil {
		return nil, err
	}
	return &Validator{urlset: urlset, index: index}, nil
}

// ValidationError lists every schema violation found in one document.
type ValidationError struct {
	Root       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s fails to validate: %s", e.Root, strings.Join(e.Violations, "; "))
}

// Validate checks doc against the schema selected by its root element.
func (v *Validator) Validate(doc []byte) error {
	root, err := rootElement(doc)
	if err != nil {
		return err
	}

	var schema *xsd.Schema
	switch root {
	case "urlset":
		schema = v.urlset
	case "sitemapindex":
		schema = v.index
	default:
		return fmt.Errorf("unexpected root element %q", root)
	}

	if err := schema.Validate(bytes.NewReader(doc)); err != nil {
		if violations, ok := xsderrors.AsValidations(err); ok {
			msgs := make([]string, 0, len(violations))
			for _, viol := range violations {
				msgs = append(msgs, viol.Error())
			}
			return &ValidationError{Root: root, Violations: msgs}
		}
		return fmt.Errorf("validate %s: %w", root, err)
	}
	return nil
}

func rootElement(doc []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return "", errors.New("document has no root element")
		}
		if err != nil {
			return "", fmt.Errorf("parse document: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Space != Namespace {
				return "", fmt.Errorf("root element %q is not in the sitemap namespace", start.Name.Local)
			}
			return start.Name.Local, nil
		}
	}
}
