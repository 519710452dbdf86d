// Package feed finds data package links in the ESMA FIRDS register feed.
package feed

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"

	apperrors "firdscli/internal/errors"
	"firdscli/internal/fetch"
)

// ErrNoMatchingLink is wrapped by the NOT_FOUND error returned when no
// download link satisfies the predicate
var ErrNoMatchingLink = errors.New("no matching download link")

const (
	linkElement   = "str"
	linkAttribute = "name"
	linkName      = "download_link"
)

// Predicate selects a download link
type Predicate func(link string) bool

// FilenamePrefix matches links whose last path segment starts with prefix
func FilenamePrefix(prefix string) Predicate {
	return func(link string) bool {
		return strings.HasPrefix(Filename(link), prefix)
	}
}

// Filename returns the last path segment of a link
func Filename(link string) string {
	return link[strings.LastIndex(link, "/")+1:]
}

// Locate returns the first download link in document order that satisfies
// pred. A document without a match yields a NOT_FOUND error wrapping
// ErrNoMatchingLink; a document that cannot be parsed yields a PARSING error.
func Locate(ctx context.Context, r io.Reader, pred Predicate) (string, error) {
	var found string
	err := walkLinks(ctx, r, func(link string) bool {
		if pred(link) {
			found = link
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", apperrors.NewNotFoundError("download link", ErrNoMatchingLink)
	}
	return found, nil
}

// All returns every download link in document order
func All(ctx context.Context, r io.Reader) ([]string, error) {
	var links []string
	err := walkLinks(ctx, r, func(link string) bool {
		links = append(links, link)
		return true
	})
	return links, err
}

// walkLinks calls visit for each download link until visit returns false.
// The feed is decoded leniently: HTML entities, unclosed void elements and
// unquoted attributes are accepted.
func walkLinks(ctx context.Context, r io.Reader, visit func(string) bool) error {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	sawElement := false
	for {
		if err := ctx.Err(); err != nil {
			return apperrors.NewCancelledError("feed parsing cancelled", err)
		}

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if !sawElement {
				return apperrors.NewParsingError("feed document is empty", io.ErrUnexpectedEOF)
			}
			return nil
		}
		if err != nil {
			return apperrors.NewParsingError("malformed feed document", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true
		if !isDownloadLink(start) {
			continue
		}

		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return apperrors.NewParsingError("malformed download link", err)
		}
		link := strings.TrimSpace(text)
		if link == "" {
			continue
		}
		if !visit(link) {
			return nil
		}
	}
}

func isDownloadLink(start xml.StartElement) bool {
	if !strings.EqualFold(start.Name.Local, linkElement) {
		return false
	}
	for _, attr := range start.Attr {
		if attr.Name.Local == linkAttribute && attr.Value == linkName {
			return true
		}
	}
	return false
}

// Locator fetches the feed and selects a link from it
type Locator struct {
	client fetch.Getter
	logger *slog.Logger
}

// NewLocator creates a Locator fetching through client
func NewLocator(client fetch.Getter, logger *slog.Logger) *Locator {
	return &Locator{client: client, logger: logger}
}

// Fetch downloads the feed at feedURL and returns the first link matching
// pred, resolved against feedURL when relative
func (l *Locator) Fetch(ctx context.Context, feedURL string, pred Predicate) (string, error) {
	body, err := l.client.Get(ctx, feedURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	link, err := Locate(ctx, body, pred)
	if err != nil {
		return "", err
	}

	resolved, err := resolve(feedURL, link)
	if err != nil {
		return "", err
	}

	l.logger.InfoContext(ctx, "download_link_selected",
		slog.String("feed", feedURL),
		slog.String("link", resolved),
		slog.String("file", Filename(resolved)))

	return resolved, nil
}

// List downloads the feed and returns all of its links
func (l *Locator) List(ctx context.Context, feedURL string) ([]string, error) {
	body, err := l.client.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	links, err := All(ctx, body)
	if err != nil {
		return nil, err
	}
	for i, link := range links {
		if links[i], err = resolve(feedURL, link); err != nil {
			return nil, err
		}
	}
	return links, nil
}

func resolve(base, link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", apperrors.NewParsingError(fmt.Sprintf("invalid download link %q", link), err)
	}
	if ref.IsAbs() {
		return link, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", apperrors.NewParsingError(fmt.Sprintf("invalid feed URL %q", base), err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}
