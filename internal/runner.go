package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/ogero/allocine-weekly/internal/common"
	"github.com/ogero/allocine-weekly/internal/posters"
	"github.com/ogero/allocine-weekly/pkg/allocine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CycleRunner runs one fetch cycle: clear the poster cache, fetch and parse the weekly page,
// keep the most awaited movies and download their posters.
type CycleRunner struct {
	allocine allocine.Allocine
	cache    *posters.Cache
	fetcher  *posters.Fetcher
	topN     int
}

// NewCycleRunner creates a CycleRunner keeping topN movies per cycle.
func NewCycleRunner(a allocine.Allocine, cache *posters.Cache, fetcher *posters.Fetcher, topN int) *CycleRunner {
	return &CycleRunner{
		allocine: a,
		cache:    cache,
		fetcher:  fetcher,
		topN:     topN,
	}
}

// Run executes a cycle. Errors wrap allocine.ErrConnection, allocine.ErrExtraction or allocine.ErrParse;
// anything unexpected is reported as allocine.ErrParse.
func (r *CycleRunner) Run(ctx context.Context) (movies []allocine.Movie, err error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.CycleRunner.Run")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			movies = nil
			err = fmt.Errorf("%w: unexpected error: %v", allocine.ErrParse, rec)
		}
		if err != nil {
			span.RecordError(err)
		}
	}()

	common.Log.InfoContext(ctx, "Starting scrape of Allocine weekly releases")

	if _, err := r.cache.Clear(); err != nil {
		common.Log.WarnContext(ctx, "Failed to posters.Cache.Clear", "err", err)
	}

	page, err := r.allocine.GetWeeklyPage(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to allocine.Allocine.GetWeeklyPage: %w", err))
	}

	entities, err := allocine.ExtractEntities(page)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to allocine.ExtractEntities: %w", err))
	}

	parsed, err := allocine.ParseMovies(entities)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to allocine.ParseMovies: %w", err))
	}
	for _, skipped := range parsed.Skipped {
		switch skipped.Reason {
		case allocine.ReasonNotObject, allocine.ReasonMissingFields:
			common.Log.DebugContext(ctx, "Skipping entity", "key", skipped.Key, "reason", skipped.Reason)
		default:
			common.Log.WarnContext(ctx, "Failed to parse movie", "key", skipped.Key, "reason", skipped.Reason)
		}
	}
	if len(parsed.Movies) == 0 {
		common.Log.WarnContext(ctx, "No movies found in jsEntities")
	}

	top := allocine.Rank(parsed.Movies, r.topN)
	common.Log.InfoContext(ctx, "Keeping most awaited movies", "kept", len(top), "total", len(parsed.Movies))
	for i, m := range top {
		common.Log.InfoContext(ctx, fmt.Sprintf("#%d: %s (%d want to see)", i+1, m.Title, m.WantToSeeCount))
	}
	span.SetAttributes(
		attribute.Int("movies.total", len(parsed.Movies)),
		attribute.Int("movies.kept", len(top)),
	)

	return r.fetcher.FetchAll(ctx, top), nil
}

func classify(err error) error {
	if errors.Is(err, allocine.ErrConnection) ||
		errors.Is(err, allocine.ErrExtraction) ||
		errors.Is(err, allocine.ErrParse) {
		return err
	}
	return fmt.Errorf("%w: unexpected error: %w", allocine.ErrParse, err)
}
