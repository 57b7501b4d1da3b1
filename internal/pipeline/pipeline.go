// Package pipeline runs many queries through a shared serp client with a
// bounded pool of workers.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/FranksOps/serpent/internal/output"
	"github.com/FranksOps/serpent/internal/serp"
	"golang.org/x/sync/errgroup"
)

// Searcher is the part of *serp.Client the pipeline uses.
type Searcher interface {
	Search(ctx context.Context, term string, opts serp.SearchOptions) iter.Seq2[serp.Result, error]
	SearchDesired(ctx context.Context, term string, opts serp.DesiredOptions) iter.Seq2[serp.Result, error]
}

// Pipeline fans queries out to Concurrency workers. Each query runs the
// plain paginator, or the filtered one when Desired is set.
type Pipeline struct {
	Searcher    Searcher
	Output      output.Writer
	Concurrency int
	Options     serp.SearchOptions
	Desired     *serp.DesiredOptions
	Logger      *slog.Logger
}

// Outcome is the result of one query. A failed query does not stop the
// others.
type Outcome struct {
	Query   string
	Results int
	Err     error
}

// Run processes queries and returns one Outcome per query, in input order.
// It fails early only when output cannot be written or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, queries []string) ([]Outcome, error) {
	if p.Searcher == nil {
		return nil, errors.New("pipeline: searcher is nil")
	}
	if p.Output == nil {
		return nil, errors.New("pipeline: output is nil")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := p.Concurrency
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]Outcome, len(queries))
	jobs := make(chan int)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range queries {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case jobs <- i:
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			for i := range jobs {
				o, err := p.runQuery(gCtx, queries[i])
				outcomes[i] = o
				if err != nil {
					return err
				}
				if o.Err != nil {
					logger.Warn("query failed", "query", o.Query, "results", o.Results, "err", o.Err)
				} else {
					logger.Info("query done", "query", o.Query, "results", o.Results)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	if err := p.Output.Flush(); err != nil {
		return outcomes, fmt.Errorf("pipeline: %w", err)
	}
	return outcomes, nil
}

// runQuery returns a non-nil error only for output failures.
func (p *Pipeline) runQuery(ctx context.Context, query string) (Outcome, error) {
	o := Outcome{Query: query}

	var seq iter.Seq2[serp.Result, error]
	if p.Desired != nil {
		seq = p.Searcher.SearchDesired(ctx, query, *p.Desired)
	} else {
		seq = p.Searcher.Search(ctx, query, p.Options)
	}

	for r, err := range seq {
		if err != nil {
			o.Err = err
			break
		}
		if err := p.Output.Write(r); err != nil {
			return o, fmt.Errorf("pipeline: %w", err)
		}
		o.Results++
	}
	return o, nil
}

// ReadQueries reads one query per line, skipping blank lines and lines
// starting with '#'.
func ReadQueries(r io.Reader) ([]string, error) {
	var queries []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: read queries: %w", err)
	}
	return queries, nil
}
