package gazetteer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/couchcryptid/wetbulb-sitemap/internal/domain"
)

const readBufferSize = 64 * 1024

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one element of the gazetteer array. Err is set when the element is
// valid JSON but does not decode into a record; such entries are skipped by
// consumers and never shift positions of the others.
type Entry struct {
	Index  int
	Record domain.RawRecord
	Err    error
}

// Loader reads the resolved gazetteer file. The file is treated as immutable.
type Loader struct {
	path   string
	logger *slog.Logger
}

// NewLoader creates a Loader for the JSON array at path.
func NewLoader(path string, logger *slog.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Path returns the gazetteer file location.
func (l *Loader) Path() string { return l.path }

// LoadAll parses the whole file into memory. A missing or corrupt file yields
// an empty slice and an error wrapping domain.ErrDataUnavailable.
func (l *Loader) LoadAll(ctx context.Context) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		l.logger.Error("gazetteer unavailable", "path", l.path, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}

	it := jsoniter.ParseBytes(json, data)
	records := make([]domain.RawRecord, 0, len(data)/128)
	err = decodeArray(ctx, it, func(e Entry) bool {
		if e.Err != nil {
			l.logger.Warn("skipping undecodable record", "record_index", e.Index, "error", e.Err)
			return true
		}
		records = append(records, e.Record)
		return true
	})
	if err != nil {
		l.logger.Error("gazetteer corrupt", "path", l.path, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	return records, nil
}

// Stream parses the file incrementally and yields entries in file order.
// Memory use is bounded by the read buffer plus one record. An open failure
// yields a single domain.ErrDataUnavailable error; a parse failure mid-file
// yields a *domain.StreamError and ends the sequence.
func (l *Loader) Stream(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		f, err := os.Open(l.path)
		if err != nil {
			yield(Entry{}, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err))
			return
		}
		defer f.Close()

		it := jsoniter.Parse(json, bufio.NewReaderSize(f, readBufferSize), readBufferSize)
		stopped := false
		err = decodeArray(ctx, it, func(e Entry) bool {
			if !yield(e, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(Entry{}, err)
		}
	}
}

// decodeArray walks a top-level JSON array, decoding each element on its own
// so that a bad element does not poison the rest of the stream.
func decodeArray(ctx context.Context, it *jsoniter.Iterator, fn func(Entry) bool) error {
	return eachElement(ctx, it, func(index int, raw []byte) bool {
		e := Entry{Index: index}
		if err := json.Unmarshal(raw, &e.Record); err != nil {
			e.Record = domain.RawRecord{}
			e.Err = &domain.MalformedRecordError{Index: index, Fields: []string{"decode: " + err.Error()}}
		}
		return fn(e)
	})
}

// eachElement hands the raw bytes of every top-level array element to fn.
// Any syntax error or premature end of input is a *domain.StreamError.
func eachElement(ctx context.Context, it *jsoniter.Iterator, fn func(index int, raw []byte) bool) error {
	if next := it.WhatIsNext(); next != jsoniter.ArrayValue {
		if it.Error != nil {
			return &domain.StreamError{Index: -1, Err: it.Error}
		}
		return &domain.StreamError{Index: -1, Err: errors.New("gazetteer is not a JSON array")}
	}

	index := 0
	for it.ReadArray() {
		if err := ctx.Err(); err != nil {
			return &domain.StreamError{Index: index, Err: err}
		}

		raw := it.SkipAndReturnBytes()
		if it.Error != nil {
			return &domain.StreamError{Index: index, Err: it.Error}
		}
		if !fn(index, raw) {
			return nil
		}
		index++
	}

	switch {
	case it.Error == nil:
		return nil
	case errors.Is(it.Error, io.EOF):
		return &domain.StreamError{Index: index, Err: io.ErrUnexpectedEOF}
	default:
		return &domain.StreamError{Index: index, Err: it.Error}
	}
}
