package allocine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ogero/allocine-weekly/pkg/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WeeklyURL is the page listing the current week's releases.
const WeeklyURL = "https://www.allocine.fr/film/sorties-semaine/"

// TopN is the number of most awaited releases kept per cycle.
const TopN = 3

const (
	requestTimeout = 30 * time.Second
	maxPageSize    = 16 << 20
	maxPosterSize  = 10 << 20
)

var (
	// ErrConnection reports a transport failure or a non-success status while talking to Allocine.
	ErrConnection = errors.New("allocine connection error")
	// ErrExtraction reports that the embedded jsEntities blob is absent or undecodable.
	ErrExtraction = errors.New("allocine extraction error")
	// ErrParse reports an unexpected structural failure while turning entities into movies.
	ErrParse = errors.New("allocine parse error")
)

// Movie is one weekly release normalized from the page entities.
type Movie struct {
	// ID is the Allocine entity id, never empty.
	ID string `json:"id"`
	// Title defaults to "Unknown" when the entity has none.
	Title string `json:"title"`
	// PosterURL is the remote poster image, never empty.
	PosterURL string `json:"posterUrl"`
	// ReleaseDate is kept as published by Allocine.
	ReleaseDate string `json:"releaseDate"`
	// WantToSeeCount is the popularity counter used for ranking.
	WantToSeeCount int `json:"wantToSeeCount"`
	// LocalPosterPath is set once the poster has been cached on disk.
	LocalPosterPath string `json:"-"`
}

// Allocine defines the methods to retrieve data from Allocine.
type Allocine interface {
	// GetWeeklyPage downloads the weekly releases page, normalized to UTF-8.
	GetWeeklyPage(ctx context.Context) ([]byte, error)
	// GetPoster downloads a poster image.
	GetPoster(ctx context.Context, posterURL string) ([]byte, error)
}

// NewAllocine creates a new Allocine client reading the weekly page at pageURL.
// An empty pageURL falls back to WeeklyURL.
func NewAllocine(pageURL string) Allocine {
	if pageURL == "" {
		pageURL = WeeklyURL
	}

	rt := transport.NewClientTransport(
		transport.WithAcceptLanguage("fr-FR,fr;q=0.9,en;q=0.8"),
		transport.WithUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"),
	)

	return &allocine{
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: rt,
		},
		pageURL: pageURL,
	}
}

type allocine struct {
	httpClient *http.Client
	pageURL    string
}

// GetWeeklyPage downloads the weekly releases page, normalized to UTF-8.
func (a *allocine) GetWeeklyPage(ctx context.Context) ([]byte, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "allocine.Allocine.GetWeeklyPage")
	defer span.End()

	body, contentType, err := a.get(ctx, a.pageURL, maxPageSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("page.size", len(body)))

	page, err := toUTF8(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode page charset: %w", ErrConnection, err)
	}

	return page, nil
}

// GetPoster downloads a poster image.
func (a *allocine) GetPoster(ctx context.Context, posterURL string) ([]byte, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "allocine.Allocine.GetPoster")
	defer span.End()
	span.SetAttributes(attribute.String("poster.url", posterURL))

	body, _, err := a.get(ctx, posterURL, maxPosterSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty poster body", ErrConnection)
	}

	return body, nil
}

func (a *allocine) get(ctx context.Context, u string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to http.NewRequestWithContext: %w", ErrConnection, err)
	}

	res, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to http.Client.Do: %w", ErrConnection, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: invalid status code: %d", ErrConnection, res.StatusCode)
	}

	body, err := readAllLimited(res.Body, limit)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read body: %w", ErrConnection, err)
	}

	return body, res.Header.Get("Content-Type"), nil
}
