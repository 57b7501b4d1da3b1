// Package output renders search results for the command line.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/FranksOps/serpent/internal/serp"
)

// Formats understood by New.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Writer emits results one at a time. Implementations are safe for
// concurrent use so batch workers can share one.
type Writer interface {
	Write(r serp.Result) error
	Flush() error
}

// New returns a Writer for format. In text format, advanced selects the full
// result representation instead of the bare URL.
func New(w io.Writer, format string, advanced bool) (Writer, error) {
	switch format {
	case "", FormatText:
		return &textWriter{w: w, advanced: advanced}, nil
	case FormatJSON:
		return &jsonWriter{enc: json.NewEncoder(w)}, nil
	case FormatCSV:
		return &csvWriter{w: csv.NewWriter(w)}, nil
	}
	return nil, fmt.Errorf("output: unknown format %q", format)
}

type textWriter struct {
	mu       sync.Mutex
	w        io.Writer
	advanced bool
}

func (t *textWriter) Write(r serp.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := r.URL
	if t.advanced {
		line = r.String()
	}
	if _, err := fmt.Fprintln(t.w, line); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (t *textWriter) Flush() error { return nil }

type jsonWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (j *jsonWriter) Write(r serp.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(r); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (j *jsonWriter) Flush() error { return nil }

type csvWriter struct {
	mu     sync.Mutex
	w      *csv.Writer
	header bool
}

func (c *csvWriter) Write(r serp.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.header {
		if err := c.w.Write([]string{"url", "title", "description"}); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		c.header = true
	}
	if err := c.w.Write([]string{r.URL, r.Title, r.Description}); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (c *csvWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}
