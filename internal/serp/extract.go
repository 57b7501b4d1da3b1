package serp

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// ErrInvalidSelector is returned when a Selectors field does not compile.
var ErrInvalidSelector = errors.New("serp: invalid selector")

// Selectors are the CSS selectors that locate result parts in a SERP. They
// track the search engine's markup, which changes without notice, so they
// live in config rather than code.
type Selectors struct {
	// Block matches one self-contained result.
	Block string `mapstructure:"block"`
	// Link, Title and Snippet are matched inside a Block; the first match wins.
	Link    string `mapstructure:"link"`
	Title   string `mapstructure:"title"`
	Snippet string `mapstructure:"snippet"`
}

// DefaultSelectors matches Google's classic desktop result markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Block:   "div.g",
		Link:    "a[href]",
		Title:   "h3",
		Snippet: `div[style="-webkit-line-clamp:2"]`,
	}
}

// withDefaults fills empty fields from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Block == "" {
		s.Block = d.Block
	}
	if s.Link == "" {
		s.Link = d.Link
	}
	if s.Title == "" {
		s.Title = d.Title
	}
	if s.Snippet == "" {
		s.Snippet = d.Snippet
	}
	return s
}

// Extractor turns one SERP body into candidate results.
type Extractor interface {
	Extract(body io.Reader) (iter.Seq[Result], error)
}

// SelectorExtractor is an Extractor driven by a Selectors set.
type SelectorExtractor struct {
	sel Selectors
}

// NewExtractor validates sel and returns an extractor for it. Empty fields
// fall back to DefaultSelectors.
func NewExtractor(sel Selectors) (*SelectorExtractor, error) {
	sel = sel.withDefaults()
	for name, s := range map[string]string{
		"block":   sel.Block,
		"link":    sel.Link,
		"title":   sel.Title,
		"snippet": sel.Snippet,
	} {
		if _, err := cascadia.Compile(s); err != nil {
			return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidSelector, name, s, err)
		}
	}
	return &SelectorExtractor{sel: sel}, nil
}

// Selectors returns the active selector set.
func (e *SelectorExtractor) Selectors() Selectors {
	return e.sel
}

// Extract parses body and returns the results in document order. A block
// missing its link, title or a non-empty snippet is skipped.
func (e *SelectorExtractor) Extract(body io.Reader) (iter.Seq[Result], error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("serp: parse page: %w", err)
	}
	blocks := doc.Find(e.sel.Block)

	return func(yield func(Result) bool) {
		for i := range blocks.Nodes {
			r, ok := e.extractBlock(blocks.Eq(i))
			if !ok {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}, nil
}

func (e *SelectorExtractor) extractBlock(block *goquery.Selection) (Result, bool) {
	link := block.Find(e.sel.Link).First()
	href, ok := link.Attr("href")
	if !ok {
		return Result{}, false
	}

	title := block.Find(e.sel.Title).First()
	if title.Length() == 0 {
		return Result{}, false
	}

	snippet := block.Find(e.sel.Snippet).First()
	if snippet.Length() == 0 {
		return Result{}, false
	}
	description := snippet.Text()
	if description == "" {
		return Result{}, false
	}

	return Result{URL: href, Title: title.Text(), Description: description}, true
}
