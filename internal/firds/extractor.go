// Package firds extracts financial instrument records from ESMA FIRDS
// DLTINS documents.
//
// The document is streamed: ExtractRoot positions a decoder on the record
// collection by following the schema's named path, and Collection.Records
// decodes one record subtree at a time, so memory stays flat regardless of
// how many records the collection holds.
//
//	coll, err := firds.ExtractRoot(path, firds.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer coll.Close()
//	for row, err := range coll.Records() {
//	    ...
//	}
package firds

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	apperrors "firdscli/internal/errors"
	"firdscli/pkg/contracts/domain"
)

// Option configures ExtractRoot
type Option func(*options)

type options struct {
	schema           Schema
	logger           *slog.Logger
	skipMalformed    bool
	progressInterval time.Duration
}

// WithSchema replaces the DLTINS layout
func WithSchema(s Schema) Option {
	return func(o *options) { o.schema = s }
}

// WithLogger sets the logger for progress and skipped records
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSkipMalformed makes structurally broken records be logged and counted
// instead of ending the iteration with a *RecordError
func WithSkipMalformed(skip bool) Option {
	return func(o *options) { o.skipMalformed = skip }
}

// WithProgressInterval sets how often progress is logged; zero disables it
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) { o.progressInterval = d }
}

// Stats counts what an iteration has seen so far
type Stats struct {
	Records int
	Yielded int
	Skipped int
}

// Collection is a handle on the record collection of one open document. Its
// records can be iterated exactly once.
type Collection struct {
	path     string
	file     *os.File
	dec      *xml.Decoder
	start    xml.StartElement
	opts     options
	consumed bool
	stats    Stats
}

// ExtractRoot opens the document at path and navigates to the record
// collection. Any deviation from the schema's path is a parsing error
// wrapping a *NavigationError.
func ExtractRoot(path string, opts ...Option) (*Collection, error) {
	o := options{
		schema:           DLTINS,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		progressInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("cannot open document %s", path), err)
	}

	dec := xml.NewDecoder(bufio.NewReaderSize(f, 1<<20))
	dec.CharsetReader = charset.NewReaderLabel

	c := &Collection{
		path: path,
		file: f,
		dec:  dec,
		opts: o,
	}

	start, err := c.navigate()
	if err != nil {
		f.Close()
		return nil, apperrors.NewParsingError(fmt.Sprintf("cannot locate record collection in %s", path), err)
	}
	c.start = start

	o.logger.Info("record_collection_located",
		slog.String("path", path),
		slog.String("collection", start.Name.Local),
		slog.Int64("offset", dec.InputOffset()))

	return c, nil
}

// navigate consumes tokens up to the collection's start element
func (c *Collection) navigate() (xml.StartElement, error) {
	schema := c.opts.schema

	root, err := c.nextStart()
	if err != nil {
		return xml.StartElement{}, err
	}
	if schema.RootName != "" && root.Name.Local != schema.RootName {
		return xml.StartElement{}, &NavigationError{Expected: schema.RootName, Found: root.Name.Local}
	}

	current := root
	for i, step := range schema.CollectionPath {
		child, found, err := c.childAt(step.Index)
		if err != nil {
			return xml.StartElement{}, err
		}
		navErr := &NavigationError{
			Step:     i + 1,
			Parent:   schema.PathString(i),
			Index:    step.Index,
			Expected: step.Name,
		}
		if !found {
			return xml.StartElement{}, navErr
		}
		if child.Name.Local != step.Name {
			navErr.Found = child.Name.Local
			return xml.StartElement{}, navErr
		}
		current = child
	}
	return current, nil
}

// nextStart returns the document element, skipping the prolog
func (c *Collection) nextStart() (xml.StartElement, error) {
	for {
		tok, err := c.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return xml.StartElement{}, fmt.Errorf("document has no root element")
			}
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// childAt advances to the index-th child element of the element just opened,
// skipping the subtrees before it. Only elements take a position: comments,
// processing instructions and character data between them are not counted.
// found is false when the element closes first.
func (c *Collection) childAt(index int) (xml.StartElement, bool, error) {
	pos := 0
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return xml.StartElement{}, false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if pos == index {
				return t, true, nil
			}
			pos++
			if err := c.dec.Skip(); err != nil {
				return xml.StartElement{}, false, err
			}
		case xml.EndElement:
			return xml.StartElement{}, false, nil
		}
	}
}

// Records returns the lazy, single-use sequence of rows. The header children
// are skipped and every following child yields one row in document order.
// Iterating again yields a parsing error wrapping ErrCollectionConsumed.
// Errors end the sequence and are parsing errors wrapping the XML syntax
// error or a *RecordError.
func (c *Collection) Records() iter.Seq2[domain.InstrumentRow, error] {
	return func(yield func(domain.InstrumentRow, error) bool) {
		if c.consumed {
			yield(domain.InstrumentRow{}, apperrors.NewParsingError("cannot iterate records", ErrCollectionConsumed))
			return
		}
		c.consumed = true

		logger := c.opts.logger
		schema := c.opts.schema
		progress := rate.Sometimes{Interval: c.opts.progressInterval}
		headers := schema.HeaderChildren

		for {
			tok, err := c.dec.Token()
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				yield(domain.InstrumentRow{}, apperrors.NewParsingError(
					fmt.Sprintf("malformed document %s after %d records", c.path, c.stats.Records), err))
				return
			}

			switch t := tok.(type) {
			case xml.StartElement:
				if headers > 0 {
					headers--
					if err := c.dec.Skip(); err != nil {
						yield(domain.InstrumentRow{}, apperrors.NewParsingError("malformed collection header", err))
						return
					}
					continue
				}

				c.stats.Records++
				var record node
				if err := c.dec.DecodeElement(&record, &t); err != nil {
					yield(domain.InstrumentRow{}, apperrors.NewParsingError(
						fmt.Sprintf("malformed record %d in %s", c.stats.Records, c.path), err))
					return
				}

				row, reason := schema.project(&record)
				if reason != "" {
					recErr := &RecordError{
						Index:   c.stats.Records,
						Element: t.Name.Local,
						Offset:  c.dec.InputOffset(),
						Reason:  reason,
					}
					if c.opts.skipMalformed {
						c.stats.Skipped++
						logger.Warn("record_skipped",
							slog.Int("record", recErr.Index),
							slog.Int64("offset", recErr.Offset),
							slog.String("reason", reason))
						continue
					}
					yield(domain.InstrumentRow{}, apperrors.NewParsingError("malformed instrument record", recErr))
					return
				}

				c.stats.Yielded++
				if c.opts.progressInterval > 0 {
					progress.Do(func() {
						logger.Info("extraction_progress",
							slog.Int("records", c.stats.Records),
							slog.Int64("offset", c.dec.InputOffset()))
					})
				}
				if !yield(row, nil) {
					return
				}

			case xml.EndElement:
				logger.Info("extraction_complete",
					slog.String("path", c.path),
					slog.Int("records", c.stats.Records),
					slog.Int("rows", c.stats.Yielded),
					slog.Int("skipped", c.stats.Skipped))
				return
			}
		}
	}
}

// Stats returns the counters of the iteration so far
func (c *Collection) Stats() Stats {
	return c.stats
}

// Path returns the document path
func (c *Collection) Path() string {
	return c.path
}

// Close releases the document file
func (c *Collection) Close() error {
	return c.file.Close()
}
