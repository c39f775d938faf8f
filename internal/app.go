package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/ogero/allocine-weekly/internal/common"
	"github.com/ogero/allocine-weekly/pkg/allocine"
	"github.com/ogero/allocine-weekly/pkg/stremio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CatalogID is the id of the Stremio catalog listing the weekly releases.
const CatalogID = "allocine-weekly"

const stremioIDPrefix = "allocine:"

var manifest = stremio.Manifest{
	ID:          "fr.allocine.weekly.go",
	Version:     "0.1.0",
	Name:        "Allocine Weekly Releases",
	Description: "Most awaited movies released this week on Allocine",
	Types:       []string{"movie"},
	Catalogs: []stremio.CatalogItem{
		{ID: CatalogID, Type: "movie", Name: "Allocine - Sorties de la semaine"},
	},
	IDPrefixes: []string{stremioIDPrefix},
	Resources:  []string{"catalog"},
}

// MovieEntry is a published movie as listed to browsing clients.
type MovieEntry struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	ReleaseDate    string `json:"releaseDate,omitempty"`
	WantToSeeCount int    `json:"wantToSeeCount"`
	Rank           int    `json:"rank"`
	Thumbnail      string `json:"thumbnail"`
}

// App represents the main application structure that holds the releases service and addon host information.
type App struct {
	ReleasesService ReleasesService
	AddonHost       string
}

/*
NewApp creates a new instance of the App struct.

Parameters:
  - releasesService: The service publishing the weekly releases.
  - addonHost: The public base URL used to build poster links.

Returns:
  - A pointer to the newly created App instance.
*/
func NewApp(releasesService ReleasesService, addonHost string) (*App, error) {
	if releasesService == nil {
		return nil, errors.New("nil releases service")
	}
	return &App{
		ReleasesService: releasesService,
		AddonHost:       addonHost,
	}, nil
}

// Routes registers the app handlers on r.
func (a *App) Routes(r chi.Router) {
	r.Get("/manifest.json", a.ManifestHandler)
	r.Get("/catalog/{type}/{id}.json", a.CatalogHandler)
	r.Get("/movies", a.MoviesHandler)
	r.Get("/movies/{id}", a.MovieHandler)
	r.Get("/poster/{id}", a.PosterHandler)
	r.Post("/refresh", a.RefreshHandler)
	r.Get("/status", a.StatusHandler)
	r.Handle("/connection/websocket", http.HandlerFunc(a.WebsocketHandler))
}

func (a *App) thumbnailURL(id string) string {
	return fmt.Sprintf("%s/poster/%s.jpg", a.AddonHost, id)
}

func (a *App) entries() []MovieEntry {
	movies := a.ReleasesService.Movies()
	entries := make([]MovieEntry, 0, len(movies))
	for i, m := range movies {
		entries = append(entries, a.entry(m, i+1))
	}
	return entries
}

func (a *App) entry(m allocine.Movie, rank int) MovieEntry {
	return MovieEntry{
		ID:             m.ID,
		Title:          m.Title,
		ReleaseDate:    m.ReleaseDate,
		WantToSeeCount: m.WantToSeeCount,
		Rank:           rank,
		Thumbnail:      a.thumbnailURL(m.ID),
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	ctx := r.Context()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

/*
ManifestHandler serves the manifest for the addon.

This method writes the manifest as a JSON response to the HTTP writer.
*/
func (a *App) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	common.Log.DebugContext(r.Context(), "ManifestHandler")

	writeJSON(w, r, http.StatusOK, manifest)
}

/*
CatalogHandler serves the Stremio catalog of the weekly releases.

Only the movie type and CatalogID are known, anything else is not found.
*/
func (a *App) CatalogHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	common.Log.DebugContext(ctx, "CatalogHandler")

	if chi.URLParam(r, "type") != "movie" || chi.URLParam(r, "id") != CatalogID {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	entries := a.entries()
	catalog := stremio.Catalog{Metas: make([]stremio.MetaPreview, 0, len(entries))}
	for _, e := range entries {
		catalog.Metas = append(catalog.Metas, stremio.MetaPreview{
			ID:          stremioIDPrefix + e.ID,
			Type:        "movie",
			Name:        e.Title,
			Poster:      e.Thumbnail,
			PosterShape: "poster",
			ReleaseInfo: e.ReleaseDate,
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, r, http.StatusOK, catalog)
}

// MoviesHandler lists the published movies in rank order.
func (a *App) MoviesHandler(w http.ResponseWriter, r *http.Request) {
	common.Log.DebugContext(r.Context(), "MoviesHandler")

	writeJSON(w, r, http.StatusOK, a.entries())
}

// MovieHandler looks up a published movie by id.
func (a *App) MovieHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "MovieHandler")

	paramsID := chi.URLParam(r, "id")
	if err := common.ValidateMovieID(paramsID); err != nil {
		common.Log.WarnContext(ctx, "Failed to common.ValidateMovieID", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("param.id", paramsID))

	for i, m := range a.ReleasesService.Movies() {
		if m.ID == paramsID {
			writeJSON(w, r, http.StatusOK, a.entry(m, i+1))
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
}

/*
PosterHandler streams the cached poster of a published movie.

The id may carry a .jpg suffix. It answers not found when the movie is unknown, its poster was not
downloaded, or the cached file is gone.
*/
func (a *App) PosterHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "PosterHandler")

	movieID, err := common.PosterMovieID(chi.URLParam(r, "id"))
	if err != nil {
		common.Log.WarnContext(ctx, "Failed to common.PosterMovieID", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("param.id", movieID))

	movie, ok := a.ReleasesService.Movie(movieID)
	if !ok || movie.LocalPosterPath == "" {
		common.Log.WarnContext(ctx, "Poster not found for movie", "id", movieID)
		http.Error(w, "Poster not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(movie.LocalPosterPath)
	if errors.Is(err, fs.ErrNotExist) {
		common.Log.WarnContext(ctx, "Poster file does not exist", "path", movie.LocalPosterPath)
		http.Error(w, "Poster file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to os.Open", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to os.File.Stat", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, movieID+".jpg", info.ModTime(), f)
}

// RefreshHandler triggers a refresh and answers with the refreshed movies.
func (a *App) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.InfoContext(ctx, "Manual refresh triggered")

	if _, err := a.ReleasesService.Refresh(ctx); err != nil {
		common.Log.ErrorContext(ctx, "Failed to ReleasesService.Refresh", "err", err)
		span.RecordError(err)
		writeJSON(w, r, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, r, http.StatusOK, a.entries())
}

// StatusHandler reports the refresh state.
func (a *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, a.ReleasesService.Status())
}

// WebsocketHandler handles WebSocket connections
func (a *App) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	common.Log.DebugContext(ctx, "WebsocketHandler")

	a.ReleasesService.ServeHTTP(w, r)
}
