package topdf

// Notes:
// - Cancellation tests use a renderer that blocks until released, so the
//   set of running jobs is known when Cancel is called.
// - Every test waits for its session; none leaks worker goroutines.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/alnah/go-topdf/internal/document"
	"github.com/alnah/go-topdf/internal/fontres"
	"github.com/alnah/go-topdf/internal/pdfcheck"
)

// blockingRenderer reports each render on started and waits for release.
type blockingRenderer struct {
	started chan string
	release chan struct{}
}

func newBlockingRenderer() *blockingRenderer {
	return &blockingRenderer{started: make(chan string), release: make(chan struct{})}
}

func (b *blockingRenderer) Render(doc *document.Document, _ fontres.ProfileSet) ([]byte, []error, error) {
	b.started <- doc.Title
	<-b.release
	return fakePDF, nil, nil
}

func jobBySource(t *testing.T, jobs []Job, name string) Job {
	t.Helper()

	for _, j := range jobs {
		if filepath.Base(j.Source) == name {
			return j
		}
	}
	t.Fatalf("no job for %s", name)
	return Job{}
}

// ---------------------------------------------------------------------------
// TestSubmit - Batch outcomes
// ---------------------------------------------------------------------------

func TestSubmit_MixedBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := []string{
		writeFixture(t, dir, "report.csv", reportCSV),
		writeFixture(t, dir, "notes.md", notesMD),
		writeFixture(t, dir, "broken.docx", "PK\x03\x04 truncated"),
	}

	jobs := Submit(paths, WithConverter(newTestConverter(t))).Wait()

	report := jobBySource(t, jobs, "report.csv")
	notes := jobBySource(t, jobs, "notes.md")
	broken := jobBySource(t, jobs, "broken.docx")

	for _, j := range []Job{report, notes} {
		if j.Status != StatusSucceeded {
			t.Errorf("%s: Status = %v (%v), want succeeded", j.Source, j.Status, j.Err)
		}
	}
	if report.Output != filepath.Join(dir, "report.pdf") || notes.Output != filepath.Join(dir, "notes.pdf") {
		t.Errorf("outputs = %s, %s; want beside sources", report.Output, notes.Output)
	}
	if broken.Status != StatusFailed || !errors.Is(broken.Err, ErrParse) {
		t.Errorf("broken.docx: Status = %v, Err = %v; want failed parse", broken.Status, broken.Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken.pdf")); !os.IsNotExist(err) {
		t.Error("broken.pdf was written")
	}

	data, err := os.ReadFile(report.Output)
	if err != nil {
		t.Fatal(err)
	}
	text, err := pdfcheck.Text(data)
	if err != nil {
		t.Fatal(err)
	}
	for _, record := range strings.Split(strings.TrimSpace(reportCSV), "\n") {
		for _, cell := range strings.Split(record, ",") {
			if !strings.Contains(text, cell) {
				t.Errorf("report.pdf lacks cell %q", cell)
			}
		}
	}
}

func TestSubmit_OneBadJobOfMany(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bad  func(t *testing.T, dir string) string
	}{
		{name: "missing file", bad: func(_ *testing.T, dir string) string { return filepath.Join(dir, "absent.txt") }},
		{name: "corrupt file", bad: func(t *testing.T, dir string) string {
			return writeFixture(t, dir, "bad.json", "{{{")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			var paths []string
			for i := range 7 {
				paths = append(paths, writeFixture(t, dir, fmt.Sprintf("f%d.txt", i), fmt.Sprintf("file %d", i)))
			}
			paths = slices.Insert(paths, 3, tt.bad(t, dir))

			s := Submit(paths, WithConverter(newTestConverter(t)), WithConcurrency(3))
			s.Wait()
			sum := s.Summary()
			if sum.Total != 8 || sum.Failed != 1 || sum.Succeeded != 7 {
				t.Errorf("Summary = %+v, want 1 failed and 7 succeeded", sum)
			}
		})
	}
}

func TestSubmit_Empty(t *testing.T) {
	t.Parallel()

	s := Submit(nil)
	if jobs := s.Wait(); len(jobs) != 0 {
		t.Errorf("jobs = %v, want none", jobs)
	}
	for ev := range s.Subscribe() {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestSubmit_PanicFailsOnlyThatJob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	conv := newTestConverter(t)
	conv.renderer = renderFunc(func(doc *document.Document, _ fontres.ProfileSet) ([]byte, error) {
		if doc.Title == "boom" {
			panic("renderer exploded")
		}
		return fakePDF, nil
	})
	paths := []string{
		writeFixture(t, dir, "ok.txt", "fine"),
		writeFixture(t, dir, "boom.txt", "explodes"),
	}

	jobs := Submit(paths, WithConverter(conv)).Wait()
	if j := jobBySource(t, jobs, "boom.txt"); j.Status != StatusFailed || !errors.Is(j.Err, ErrInternal) {
		t.Errorf("boom.txt: %v %v, want internal failure", j.Status, j.Err)
	}
	if j := jobBySource(t, jobs, "ok.txt"); j.Status != StatusSucceeded {
		t.Errorf("ok.txt: %v %v, want success", j.Status, j.Err)
	}
}

func TestSubmit_JobMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := []string{writeFixture(t, dir, "a.md", "# A"), writeFixture(t, dir, "b.txt", "b")}
	jobs := Submit(paths, WithConverter(newTestConverter(t))).Wait()

	seen := make(map[string]bool)
	for _, j := range jobs {
		if len(j.ID) != 36 || seen[j.ID] {
			t.Errorf("ID %q is not a fresh UUID", j.ID)
		}
		seen[j.ID] = true
		if j.Started.IsZero() || j.Finished.IsZero() {
			t.Errorf("%s: missing timestamps", j.Source)
		}
	}
	if jobs[0].Format.String() != "markdown" || jobs[1].Format.String() != "text" {
		t.Errorf("formats = %v, %v", jobs[0].Format, jobs[1].Format)
	}
}

// ---------------------------------------------------------------------------
// TestSubmit_Outputs - Output directory and collisions
// ---------------------------------------------------------------------------

func TestSubmit_Outputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		policy    CollisionPolicy
		outputDir bool
		existing  bool
		want      []string
	}{
		{name: "beside sources", want: []string{"a.pdf", "a-2.pdf", "b.pdf"}},
		{name: "existing file overwritten by default", existing: true, want: []string{"a.pdf", "a-2.pdf", "b.pdf"}},
		{name: "existing file kept with suffix policy", policy: CollisionSuffix, existing: true, want: []string{"a-2.pdf", "a-3.pdf", "b.pdf"}},
		{name: "output directory created", outputDir: true, want: []string{"a.pdf", "a-2.pdf", "b.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			paths := []string{
				writeFixture(t, dir, "a.md", "# from markdown"),
				writeFixture(t, dir, "a.txt", "from text"),
				writeFixture(t, dir, "b.txt", "b"),
			}
			outDir := dir
			opts := []SubmitOption{WithConverter(newTestConverter(t))}
			if tt.outputDir {
				outDir = filepath.Join(dir, "nested", "out")
				opts = append(opts, WithOutputDir(outDir))
			}
			if tt.policy != "" {
				opts = append(opts, WithCollisionPolicy(tt.policy))
			}
			if tt.existing {
				writeFixture(t, dir, "a.pdf", "old")
			}

			jobs := Submit(paths, opts...).Wait()
			for i, j := range jobs {
				if want := filepath.Join(outDir, tt.want[i]); j.Output != want {
					t.Errorf("job %d Output = %s, want %s", i, j.Output, want)
				}
				if j.Status != StatusSucceeded {
					t.Errorf("job %d: %v %v", i, j.Status, j.Err)
				}
				if !fileExists(j.Output) {
					t.Errorf("%s not written", j.Output)
				}
			}
			if tt.existing && tt.policy == CollisionSuffix {
				data, _ := os.ReadFile(filepath.Join(dir, "a.pdf"))
				if string(data) != "old" {
					t.Error("existing file was modified")
				}
			}
		})
	}
}

func TestSubmit_RerunReplacesOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFixture(t, dir, "report.csv", "name,qty\napples,3\n")
	conv := newTestConverter(t)

	for run := range 3 {
		jobs := Submit([]string{src}, WithConverter(conv)).Wait()
		if want := filepath.Join(dir, "report.pdf"); jobs[0].Output != want {
			t.Fatalf("run %d Output = %s, want %s", run, jobs[0].Output, want)
		}
		if jobs[0].Status != StatusSucceeded {
			t.Fatalf("run %d: %v %v", run, jobs[0].Status, jobs[0].Err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("directory holds %d entries, want report.csv and report.pdf", len(entries))
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// ---------------------------------------------------------------------------
// TestSession_Subscribe - Event stream
// ---------------------------------------------------------------------------

func TestSession_Subscribe(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for i := range 5 {
		paths = append(paths, writeFixture(t, dir, fmt.Sprintf("f%d.txt", i), "x"))
	}
	paths = append(paths, filepath.Join(dir, "missing.txt"))

	s := Submit(paths, WithConverter(newTestConverter(t)), WithConcurrency(2))

	// Several concurrent subscribers, one of them starting after the end.
	var wg sync.WaitGroup
	streams := make([][]Event, 3)
	for i := range 2 {
		wg.Go(func() {
			for ev := range s.Subscribe() {
				streams[i] = append(streams[i], ev)
			}
		})
	}
	wg.Wait()
	for ev := range s.Subscribe() {
		streams[2] = append(streams[2], ev)
	}

	for i, events := range streams {
		if len(events) != 3*len(paths) {
			t.Errorf("stream %d has %d events, want %d", i, len(events), 3*len(paths))
		}
		if !slices.EqualFunc(events, streams[0], func(a, b Event) bool { return a.JobID == b.JobID && a.Status == b.Status }) {
			t.Errorf("stream %d differs from stream 0", i)
		}
	}

	// Per job: pending, running, terminal, in that order.
	last := make(map[string]Status)
	for _, ev := range streams[0] {
		prev, ok := last[ev.JobID]
		switch {
		case !ok && ev.Status != StatusPending:
			t.Errorf("%s: first event %v, want pending", ev.Source, ev.Status)
		case ok && ev.Status <= prev:
			t.Errorf("%s: %v after %v", ev.Source, ev.Status, prev)
		case ok && prev.Terminal():
			t.Errorf("%s: event after terminal status", ev.Source)
		}
		last[ev.JobID] = ev.Status
	}
	for id, st := range last {
		if !st.Terminal() {
			t.Errorf("job %s ended in %v", id, st)
		}
	}
}

func TestSession_Subscribe_EarlyBreak(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := Submit([]string{writeFixture(t, dir, "a.txt", "a"), writeFixture(t, dir, "b.txt", "b")},
		WithConverter(newTestConverter(t)))

	for range s.Subscribe() {
		break
	}
	if sum := s.Wait(); len(sum) != 2 {
		t.Fatalf("jobs = %d", len(sum))
	}
}

// ---------------------------------------------------------------------------
// TestSession_Cancel - Cancellation
// ---------------------------------------------------------------------------

func cancelFixture(t *testing.T, n int) (*Session, *blockingRenderer) {
	t.Helper()

	dir := t.TempDir()
	var paths []string
	for i := range n {
		paths = append(paths, writeFixture(t, dir, fmt.Sprintf("f%d.txt", i), "x"))
	}
	conv := newTestConverter(t)
	br := newBlockingRenderer()
	conv.renderer = br
	return Submit(paths, WithConverter(conv), WithConcurrency(2)), br
}

func TestSession_Cancel(t *testing.T) {
	t.Parallel()

	s, br := cancelFixture(t, 6)
	running := []string{<-br.started, <-br.started}

	s.Cancel()
	s.Cancel()
	close(br.release)
	jobs := s.Wait()

	sum := summarize(jobs)
	if sum.Succeeded != 2 || sum.Cancelled != 4 || sum.Failed != 4 {
		t.Fatalf("Summary = %+v, want 2 succeeded and 4 cancelled", sum)
	}
	for _, j := range jobs {
		started := slices.Contains(running, strings.TrimSuffix(filepath.Base(j.Source), ".txt"))
		if started && j.Status != StatusSucceeded {
			t.Errorf("%s was running but ended %v", j.Source, j.Status)
		}
		if !started && (!errors.Is(j.Err, ErrCancelled) || !j.Started.IsZero()) {
			t.Errorf("%s: Err = %v, Started = %v; want cancelled before start", j.Source, j.Err, j.Started)
		}
	}

	// Nothing starts once cancelled.
	cancelledSeen := false
	for ev := range s.Subscribe() {
		if errors.Is(ev.Err, ErrCancelled) {
			cancelledSeen = true
		}
		if cancelledSeen && ev.Status == StatusRunning {
			t.Errorf("%s started after cancellation", ev.Source)
		}
	}
}

func TestSession_CancelByContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for i := range 4 {
		paths = append(paths, writeFixture(t, dir, fmt.Sprintf("f%d.txt", i), "x"))
	}
	conv := newTestConverter(t)
	br := newBlockingRenderer()
	conv.renderer = br

	ctx, cancel := context.WithCancel(context.Background())
	s := Submit(paths, WithConverter(conv), WithConcurrency(1), WithContext(ctx))
	<-br.started
	cancel()

	// Cancellation runs asynchronously; wait for the queued jobs to fail.
	for ev := range s.Subscribe() {
		if errors.Is(ev.Err, ErrCancelled) {
			break
		}
	}
	close(br.release)

	sum := summarize(s.Wait())
	if sum.Succeeded != 1 || sum.Cancelled != 3 {
		t.Errorf("Summary = %+v, want 1 succeeded and 3 cancelled", sum)
	}
}

func TestSession_CancelAfterDone(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := Submit([]string{writeFixture(t, dir, "a.txt", "a")}, WithConverter(newTestConverter(t)))
	s.Wait()
	s.Cancel()

	if sum := s.Summary(); sum.Succeeded != 1 || sum.Cancelled != 0 {
		t.Errorf("Summary = %+v, want the finished job untouched", sum)
	}
}
