package posters

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ogero/allocine-weekly/internal/cache"
	"github.com/ogero/allocine-weekly/internal/common"
	"github.com/ogero/allocine-weekly/pkg/allocine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// memoTTL keeps poster bytes for a week, the lifetime of a weekly selection.
const memoTTL = 7 * 24 * time.Hour

// PosterGetter downloads poster images.
type PosterGetter interface {
	GetPoster(ctx context.Context, posterURL string) ([]byte, error)
}

// Fetcher downloads the posters of ranked movies into a Cache.
type Fetcher struct {
	cache  *Cache
	getter PosterGetter
	memo   *cache.Store
}

// NewFetcher creates a Fetcher. memo is optional; when set, poster bytes are reused across cycles.
func NewFetcher(c *Cache, getter PosterGetter, memo *cache.Store) *Fetcher {
	return &Fetcher{
		cache:  c,
		getter: getter,
		memo:   memo,
	}
}

// FetchAll downloads the poster of every movie, ranked from 1 in slice order, and returns a copy of
// movies with LocalPosterPath set where the poster was cached. Failures are logged and isolated.
func (f *Fetcher) FetchAll(ctx context.Context, movies []allocine.Movie) []allocine.Movie {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "posters.Fetcher.FetchAll")
	defer span.End()

	common.Log.InfoContext(ctx, "Downloading posters to cache", "count", len(movies))

	result := slices.Clone(movies)

	g := new(errgroup.Group)
	g.SetLimit(max(len(result), 1))
	for i := range result {
		rank := i + 1
		movie := &result[i]

		if movie.PosterURL == "" {
			common.Log.DebugContext(ctx, "Skipping poster download, no poster url", "rank", rank, "title", movie.Title)
			common.PosterDownloadsTotalIncr(ctx, "skipped")
			continue
		}

		g.Go(func() error {
			path, size, err := f.fetchOne(ctx, rank, movie.PosterURL)
			if err != nil {
				common.Log.WarnContext(ctx, "Failed to download poster", "rank", rank, "title", movie.Title, "err", err)
				common.PosterDownloadsTotalIncr(ctx, "failure")
				return nil
			}

			movie.LocalPosterPath = path
			common.Log.InfoContext(ctx, "Downloaded poster", "rank", rank, "title", movie.Title, "kb", size/1024)
			common.PosterDownloadsTotalIncr(ctx, "success")
			return nil
		})
	}
	_ = g.Wait()

	downloaded := 0
	for _, m := range result {
		if m.LocalPosterPath != "" {
			downloaded++
		}
	}
	span.SetAttributes(attribute.Int("posters.downloaded", downloaded))

	return result
}

func (f *Fetcher) fetchOne(ctx context.Context, rank int, posterURL string) (string, int, error) {
	data, err := f.download(ctx, posterURL)
	if err != nil {
		return "", 0, err
	}

	path, err := f.cache.WritePoster(rank, data)
	if err != nil {
		f.forget(ctx, posterURL)
		return "", 0, fmt.Errorf("failed to posters.Cache.WritePoster: %w", err)
	}

	return path, len(data), nil
}

func (f *Fetcher) download(ctx context.Context, posterURL string) ([]byte, error) {
	if f.memo == nil {
		data, err := f.getter.GetPoster(ctx, posterURL)
		if err != nil {
			return nil, fmt.Errorf("failed to allocine.Allocine.GetPoster: %w", err)
		}
		return data, nil
	}

	data, hit, err := cache.Memoize(f.memo, memoKey(posterURL), memoTTL, func() (*[]byte, error) {
		data, err := f.getter.GetPoster(ctx, posterURL)
		if err != nil {
			return nil, fmt.Errorf("failed to allocine.Allocine.GetPoster: %w", err)
		}
		return &data, nil
	})
	result := "miss"
	if hit {
		result = "hit"
	}
	common.CacheGetsTotalIncr(ctx, "poster", result)
	if err != nil {
		return nil, err
	}

	return *data, nil
}

// forget drops the memoized bytes of a poster that could not be cached, so the next cycle
// downloads it again.
func (f *Fetcher) forget(ctx context.Context, posterURL string) {
	if f.memo == nil {
		return
	}
	if err := f.memo.Delete(memoKey(posterURL)); err != nil {
		common.Log.WarnContext(ctx, "Failed to cache.Store.Delete", "url", posterURL, "err", err)
	}
}

func memoKey(posterURL string) string {
	return "poster : " + posterURL
}
