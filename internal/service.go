package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/ogero/allocine-weekly/internal/common"
	"github.com/ogero/allocine-weekly/internal/scheduler"
	"github.com/ogero/allocine-weekly/pkg/allocine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Status summarizes the refresh state of the service.
type Status struct {
	// Movies is the number of published movies.
	Movies int `json:"movies"`
	// LastSuccess is when the published movies were fetched.
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	// LastError is the error of the latest refresh, empty when it succeeded.
	LastError string `json:"lastError,omitempty"`
	// NextRun is when the next automatic refresh is armed for.
	NextRun *time.Time `json:"nextRun,omitempty"`
	// Scheduler is the scheduler state.
	Scheduler string `json:"scheduler"`
}

// Runner runs one fetch cycle.
type Runner interface {
	Run(ctx context.Context) ([]allocine.Movie, error)
}

// ReleasesService publishes the weekly releases and keeps them fresh.
type ReleasesService interface {
	// Handler serves the websocket endpoint where refreshed releases are pushed.
	http.Handler
	// Start performs the first refresh.
	Start(ctx context.Context) error
	// Refresh runs a fetch cycle, or joins the one in flight, and publishes its result on success.
	Refresh(ctx context.Context) ([]allocine.Movie, error)
	// Movies returns the published movies in rank order.
	Movies() []allocine.Movie
	// Movie looks up a published movie by id.
	Movie(id string) (allocine.Movie, bool)
	// Status reports the refresh state.
	Status() Status
	// Shutdown stops automatic refreshes and the websocket node. A running refresh completes.
	Shutdown(ctx context.Context) error
}

type releasesService struct {
	websocketChannel string
	runner           Runner
	scheduler        *scheduler.Scheduler
	clock            func() time.Time

	node             *centrifuge.Node
	websocketHandler *centrifuge.WebsocketHandler

	refreshGroup singleflight.Group

	mu          sync.RWMutex
	movies      []allocine.Movie
	lastSuccess time.Time
	lastErr     error
}

// NewReleasesService creates a ReleasesService running cycles with runner and arming sched after
// every successful one.
func NewReleasesService(websocketChannel string, runner Runner, sched *scheduler.Scheduler, clock func() time.Time) (ReleasesService, error) {
	if clock == nil {
		clock = time.Now
	}

	svc := &releasesService{
		websocketChannel: websocketChannel,
		runner:           runner,
		scheduler:        sched,
		clock:            clock,
	}

	node, err := centrifuge.New(centrifuge.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to centrifuge.New: %w", err)
	}
	svc.node = node

	node.OnConnecting(func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
		return centrifuge.ConnectReply{}, nil
	})

	node.OnConnect(func(client *centrifuge.Client) {
		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			if e.Channel != websocketChannel {
				cb(centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied)
				return
			}

			b, err := json.Marshal(svc.Movies())
			if err != nil {
				cb(centrifuge.SubscribeReply{}, centrifuge.ErrorInternal)
				return
			}

			cb(centrifuge.SubscribeReply{
				Options: centrifuge.SubscribeOptions{Data: b},
			}, nil)
		})
	})

	if err := node.Run(); err != nil {
		return nil, fmt.Errorf("failed to centrifuge.Node.Run: %w", err)
	}

	svc.websocketHandler = centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		ReadBufferSize:     1024,
		UseWriteBufferPool: true,
	})

	return svc, nil
}

// Start performs the first refresh.
func (s *releasesService) Start(ctx context.Context) error {
	_, err := s.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch initial data from Allocine: %w", err)
	}
	return nil
}

// Refresh runs a fetch cycle, or joins the one in flight, and publishes its result on success.
// The cycle is not canceled when ctx is; ctx only bounds how long the caller waits.
func (s *releasesService) Refresh(ctx context.Context) ([]allocine.Movie, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.ReleasesService.Refresh")
	defer span.End()

	ch := s.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		span.SetAttributes(attribute.Bool("refresh.shared", res.Shared))
		if res.Err != nil {
			span.RecordError(res.Err)
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]allocine.Movie)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *releasesService) refresh(ctx context.Context) ([]allocine.Movie, error) {
	common.Log.InfoContext(ctx, "Starting Allocine data update")

	movies, err := s.runner.Run(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		common.CyclesTotalIncr(ctx, "failure")
		switch {
		case errors.Is(err, allocine.ErrConnection):
			common.Log.ErrorContext(ctx, "Failed to connect to Allocine", "err", err)
		case errors.Is(err, allocine.ErrExtraction):
			common.Log.ErrorContext(ctx, "Failed to extract Allocine data", "err", err)
		default:
			common.Log.ErrorContext(ctx, "Failed to parse Allocine data", "err", err)
		}
		return nil, err
	}

	s.mu.Lock()
	s.movies = movies
	s.lastSuccess = s.clock()
	s.lastErr = nil
	s.mu.Unlock()

	common.CyclesTotalIncr(ctx, "success")
	common.Log.InfoContext(ctx, "Successfully scraped movies from Allocine", "count", len(movies))

	s.scheduler.ScheduleNext(s.onTimer)

	if err := s.broadcast(movies); err != nil {
		common.Log.WarnContext(ctx, "Failed to internal.ReleasesService.broadcast", "err", err)
	}

	return movies, nil
}

func (s *releasesService) onTimer() {
	if _, err := s.Refresh(context.Background()); err != nil {
		common.Log.Warn("Scheduled refresh failed, automatic refreshes stop until a refresh succeeds", "err", err)
	}
}

func (s *releasesService) broadcast(movies []allocine.Movie) error {
	b, err := json.Marshal(movies)
	if err != nil {
		return fmt.Errorf("failed to json.Marshal: %w", err)
	}

	_, err = s.node.Publish(s.websocketChannel, b)
	if err != nil {
		return fmt.Errorf("failed to centrifuge.Node.Publish: %w", err)
	}

	return nil
}

// Movies returns the published movies in rank order.
func (s *releasesService) Movies() []allocine.Movie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.movies)
}

// Movie looks up a published movie by id.
func (s *releasesService) Movie(id string) (allocine.Movie, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.movies {
		if m.ID == id {
			return m, true
		}
	}
	return allocine.Movie{}, false
}

// Status reports the refresh state.
func (s *releasesService) Status() Status {
	s.mu.RLock()
	status := Status{
		Movies:    len(s.movies),
		Scheduler: s.scheduler.State().String(),
	}
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		status.LastSuccess = &t
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	s.mu.RUnlock()

	if next := s.scheduler.Next(); !next.IsZero() {
		status.NextRun = &next
	}

	return status
}

// Shutdown stops automatic refreshes and the websocket node. A running refresh completes.
func (s *releasesService) Shutdown(ctx context.Context) error {
	s.scheduler.Shutdown()

	if err := s.node.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to centrifuge.Node.Shutdown: %w", err)
	}

	return nil
}

// ServeHTTP handles incoming HTTP requests via a websocket handler
func (s *releasesService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	newCtx := centrifuge.SetCredentials(ctx, &centrifuge.Credentials{})
	r = r.WithContext(newCtx)

	s.websocketHandler.ServeHTTP(w, r)
}
