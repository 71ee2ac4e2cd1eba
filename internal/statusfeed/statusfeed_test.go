package statusfeed

// Notes:
// - Most tests use a static Source so responses are exact; one test runs a
//   real session over small text files to exercise replay end to end.

import (
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	topdf "github.com/alnah/go-topdf"
	"github.com/alnah/go-topdf/internal/fontres"
	"github.com/alnah/go-topdf/internal/format"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type staticSource struct {
	jobs   []topdf.Job
	events []topdf.Event
}

func (s staticSource) Jobs() []topdf.Job { return s.jobs }

func (s staticSource) Summary() topdf.Summary {
	sum := topdf.Summary{Total: len(s.jobs)}
	for _, j := range s.jobs {
		switch j.Status {
		case topdf.StatusSucceeded:
			sum.Succeeded++
		case topdf.StatusFailed:
			sum.Failed++
		}
	}
	return sum
}

func (s staticSource) Subscribe() iter.Seq[topdf.Event] { return slices.Values(s.events) }

func sampleSource() staticSource {
	return staticSource{
		jobs: []topdf.Job{
			{
				ID: "j1", Source: "/in/report.csv", Output: "/in/report.pdf", Format: format.Csv,
				Status: topdf.StatusSucceeded, Started: t0, Finished: t0.Add(250 * time.Millisecond),
			},
			{
				ID: "j2", Source: "/in/broken.docx", Output: "/in/broken.pdf",
				Status: topdf.StatusFailed, Err: errors.New("docx: not a zip archive"),
			},
		},
		events: []topdf.Event{
			{JobID: "j1", Source: "/in/report.csv", Status: topdf.StatusPending, Message: "queued", Time: t0},
			{JobID: "j1", Source: "/in/report.csv", Status: topdf.StatusRunning, Message: "started", Time: t0},
			{JobID: "j2", Source: "/in/broken.docx", Status: topdf.StatusFailed, Err: errors.New("boom"), Time: t0},
		},
	}
}

// ---------------------------------------------------------------------------
// TestHandler_Jobs - JSON snapshot routes
// ---------------------------------------------------------------------------

func TestHandler_Jobs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(Handler(sampleSource(), quietLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/jobs")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Summary.Total != 2 || snap.Summary.Succeeded != 1 || snap.Summary.Failed != 1 {
		t.Errorf("Summary = %+v", snap.Summary)
	}
	if len(snap.Jobs) != 2 {
		t.Fatalf("len(Jobs) = %d, want 2", len(snap.Jobs))
	}
	ok, bad := snap.Jobs[0], snap.Jobs[1]
	if ok.Status != "succeeded" || ok.Format != "csv" || ok.DurationMS != 250 || ok.Error != "" {
		t.Errorf("succeeded job = %+v", ok)
	}
	if bad.Status != "failed" || bad.Error != "docx: not a zip archive" || bad.Format != "" {
		t.Errorf("failed job = %+v", bad)
	}
}

func TestHandler_JobByID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(Handler(sampleSource(), quietLogger()))
	t.Cleanup(srv.Close)

	tests := []struct {
		path       string
		wantStatus int
		wantSource string
	}{
		{path: "/jobs/j2", wantStatus: http.StatusOK, wantSource: "/in/broken.docx"},
		{path: "/jobs/nope", wantStatus: http.StatusNotFound},
		{path: "/unknown", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantSource == "" {
				return
			}
			var v JobView
			if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
				t.Fatal(err)
			}
			if v.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", v.Source, tt.wantSource)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestHandler_Events - Websocket stream
// ---------------------------------------------------------------------------

func readEvents(t *testing.T, baseURL string) []EventView {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.Close() }()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var got []EventView
	for {
		var ev EventView
		err := conn.ReadJSON(&ev)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return got
		}
		if err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		got = append(got, ev)
	}
}

func TestHandler_Events(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(Handler(sampleSource(), quietLogger()))
	defer srv.Close()

	got := readEvents(t, srv.URL)
	want := []EventView{
		{JobID: "j1", Source: "/in/report.csv", Status: "pending", Message: "queued", Time: t0},
		{JobID: "j1", Source: "/in/report.csv", Status: "running", Message: "started", Time: t0},
		{JobID: "j2", Source: "/in/broken.docx", Status: "failed", Error: "boom", Time: t0},
	}
	if !slices.EqualFunc(got, want, func(a, b EventView) bool { return a == b }) {
		t.Errorf("events =\n%+v\nwant\n%+v", got, want)
	}
}

func TestHandler_Events_NotWebsocket(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(Handler(sampleSource(), quietLogger()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStart_LiveSession(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("content of "+name), 0o600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	conv, err := topdf.NewConverter(
		topdf.WithFontResolver(fontres.New(fontres.Options{SkipSystem: true, Logger: quietLogger()})),
		topdf.WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}
	session := topdf.Submit(paths, topdf.WithConverter(conv), topdf.WithConcurrency(2))

	srv, err := Start("127.0.0.1:0", session, quietLogger())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	events := readEvents(t, "http://"+srv.Addr())
	session.Wait()
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Each job is queued, started, then finishes.
	if len(events) != 3*len(paths) {
		t.Fatalf("got %d events, want %d", len(events), 3*len(paths))
	}
	succeeded := 0
	for _, ev := range events {
		if ev.Status == "succeeded" {
			succeeded++
		}
	}
	if succeeded != len(paths) {
		t.Errorf("succeeded events = %d, want %d", succeeded, len(paths))
	}
}
