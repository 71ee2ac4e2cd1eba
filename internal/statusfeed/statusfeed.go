// Package statusfeed serves the progress of a conversion session over HTTP.
//
// Routes:
//
//	GET /jobs        summary and job snapshot as JSON
//	GET /jobs/{id}   one job as JSON
//	GET /events      websocket stream of events, replayed from the start
package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	topdf "github.com/alnah/go-topdf"
)

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Source is the read side of a session.
type Source interface {
	Jobs() []topdf.Job
	Summary() topdf.Summary
	Subscribe() iter.Seq[topdf.Event]
}

var _ Source = (*topdf.Session)(nil)

// JobView is the JSON form of a job.
type JobView struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Output     string    `json:"output,omitempty"`
	Format     string    `json:"format,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Started    time.Time `json:"started,omitzero"`
	Finished   time.Time `json:"finished,omitzero"`
	DurationMS int64     `json:"durationMs,omitempty"`
}

// EventView is the JSON form of an event.
type EventView struct {
	JobID   string    `json:"jobId"`
	Source  string    `json:"source"`
	Output  string    `json:"output,omitempty"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Snapshot is the body of GET /jobs.
type Snapshot struct {
	Summary topdf.Summary `json:"summary"`
	Jobs    []JobView     `json:"jobs"`
}

// NewJobView converts a job for JSON output.
func NewJobView(j topdf.Job) JobView {
	v := JobView{
		ID:         j.ID,
		Source:     j.Source,
		Output:     j.Output,
		Status:     j.Status.String(),
		Started:    j.Started,
		Finished:   j.Finished,
		DurationMS: j.Duration().Milliseconds(),
	}
	if j.Format != 0 {
		v.Format = j.Format.String()
	}
	if j.Err != nil {
		v.Error = j.Err.Error()
	}
	for _, w := range j.Warnings {
		v.Warnings = append(v.Warnings, w.Error())
	}
	return v
}

// NewEventView converts an event for JSON output.
func NewEventView(e topdf.Event) EventView {
	v := EventView{
		JobID:   e.JobID,
		Source:  e.Source,
		Output:  e.Output,
		Status:  e.Status.String(),
		Message: e.Message,
		Time:    e.Time,
	}
	if e.Err != nil {
		v.Error = e.Err.Error()
	}
	return v
}

// Handler returns the feed's router.
func Handler(src Source, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{
		src:    src,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed binds to a local address chosen by the user.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/jobs", h.handleJobs)
	r.Get("/jobs/{id}", h.handleJob)
	r.Get("/events", h.handleEvents)
	return r
}

type handler struct {
	src      Source
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func (h *handler) handleJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.src.Jobs()
	snap := Snapshot{Summary: h.src.Summary(), Jobs: make([]JobView, 0, len(jobs))}
	for _, j := range jobs {
		snap.Jobs = append(snap.Jobs, NewJobView(j))
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *handler) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, j := range h.src.Jobs() {
		if j.ID == id {
			h.writeJSON(w, http.StatusOK, NewJobView(j))
			return
		}
	}
	http.Error(w, "job not found", http.StatusNotFound)
}

func (h *handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// Drain client frames so close and ping control messages are handled.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for ev := range h.src.Subscribe() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(NewEventView(ev)); err != nil {
			h.logger.Debug("websocket client gone", "error", err)
			return
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"))
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("writing response", "error", err)
	}
}

// Server is a running feed.
type Server struct {
	srv *http.Server
	ln  net.Listener
	err chan error
}

// Start listens on addr and serves the feed in the background.
// Use ":0" to pick a free port and Addr to read it back.
func Start(addr string, src Source, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		srv: &http.Server{
			Handler:           Handler(src, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		ln:  ln,
		err: make(chan error, 1),
	}
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.err <- err
	}()
	logger.Info("status feed listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops accepting connections and waits briefly for open streams.
// Websocket connections are hijacked and not tracked by Shutdown; they end
// when their session finishes.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.err
}
