package sitemap

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
)

// Namespace is the sitemap protocol namespace shared by urlset and
// sitemapindex documents.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ContentType is sent with every served sitemap document.
const ContentType = "application/xml; charset=utf-8"

// ChangeFreq is the crawler hint for how often a page changes.
type ChangeFreq string

const (
	Hourly  ChangeFreq = "hourly"
	Daily   ChangeFreq = "daily"
	Monthly ChangeFreq = "monthly"
)

// Priority is a page priority in [0, 1], rendered with one decimal place.
type Priority float64

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(p), 'f', 1, 64), nil
}

// URL is one <url> entry of a urlset.
type URL struct {
	XMLName    xml.Name   `xml:"url"`
	Loc        string     `xml:"loc"`
	LastMod    string     `xml:"lastmod,omitempty"`
	ChangeFreq ChangeFreq `xml:"changefreq,omitempty"`
	Priority   Priority   `xml:"priority"`
}

// Ref is one <sitemap> entry of a sitemapindex.
type Ref struct {
	XMLName xml.Name `xml:"sitemap"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

// Writer streams a single sitemap document. Entries are encoded as they are
// written; nothing is retained after encoding.
type Writer struct {
	enc    *xml.Encoder
	root   string
	count  int
	closed bool
}

// NewURLSetWriter starts a <urlset> document on w.
func NewURLSetWriter(w io.Writer) (*Writer, error) {
	return newWriter(w, "urlset")
}

// NewIndexWriter starts a <sitemapindex> document on w.
func NewIndexWriter(w io.Writer) (*Writer, error) {
	return newWriter(w, "sitemapindex")
}

func newWriter(w io.Writer, root string) (*Writer, error) {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return nil, err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	start := xml.StartElement{
		Name: xml.Name{Local: root},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: Namespace}},
	}
	if err := enc.EncodeToken(start); err != nil {
		return nil, err
	}
	return &Writer{enc: enc, root: root}, nil
}

// WriteURL appends a <url> entry.
func (sw *Writer) WriteURL(u URL) error {
	if sw.root != "urlset" {
		return errors.New("sitemap: url entry in " + sw.root)
	}
	return sw.encode(u)
}

// WriteRef appends a <sitemap> entry.
func (sw *Writer) WriteRef(r Ref) error {
	if sw.root != "sitemapindex" {
		return errors.New("sitemap: sitemap entry in " + sw.root)
	}
	return sw.encode(r)
}

func (sw *Writer) encode(v any) error {
	if sw.closed {
		return errors.New("sitemap: write after close")
	}
	if err := sw.enc.Encode(v); err != nil {
		return err
	}
	sw.count++
	return nil
}

// Count returns the number of entries written so far.
func (sw *Writer) Count() int { return sw.count }

// Close ends the root element and flushes buffered output.
func (sw *Writer) Close() error {
	if sw.closed {
		return nil
	}
	sw.closed = true
	if err := sw.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: sw.root}}); err != nil {
		return err
	}
	if err := sw.enc.Flush(); err != nil {
		return err
	}
	return nil
}

// EncodeURLSet writes a complete urlset document.
func EncodeURLSet(w io.Writer, urls []URL) error {
	sw, err := NewURLSetWriter(w)
	if err != nil {
		return err
	}
	for _, u := range urls {
		if err := sw.WriteURL(u); err != nil {
			return err
		}
	}
	return sw.Close()
}

// EncodeIndex writes a complete sitemapindex document.
func EncodeIndex(w io.Writer, refs []Ref) error {
	sw, err := NewIndexWriter(w)
	if err != nil {
		return err
	}
	for _, r := range refs {
		if err := sw.WriteRef(r); err != nil {
			return err
		}
	}
	return sw.Close()
}
