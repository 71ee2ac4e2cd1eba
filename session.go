package topdf

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-topdf/internal/fileutil"
	"github.com/alnah/go-topdf/internal/format"
)

// SubmitOption configures a batch.
type SubmitOption func(*submitConfig)

type submitConfig struct {
	outputDir   string
	concurrency int
	collision   CollisionPolicy
	converter   *Converter
	ctx         context.Context
}

// WithOutputDir writes every PDF into dir instead of beside its source.
func WithOutputDir(dir string) SubmitOption {
	return func(c *submitConfig) {
		c.outputDir = dir
	}
}

// WithConcurrency bounds the number of jobs running at once. Zero or less
// uses GOMAXPROCS.
func WithConcurrency(n int) SubmitOption {
	return func(c *submitConfig) {
		c.concurrency = n
	}
}

// WithCollisionPolicy sets how taken output paths are handled.
func WithCollisionPolicy(p CollisionPolicy) SubmitOption {
	return func(c *submitConfig) {
		c.collision = p
	}
}

// WithConverter sets the converter used by every job.
func WithConverter(conv *Converter) SubmitOption {
	return func(c *submitConfig) {
		c.converter = conv
	}
}

// WithContext cancels the session when ctx is done.
func WithContext(ctx context.Context) SubmitOption {
	return func(c *submitConfig) {
		c.ctx = ctx
	}
}

// Session is a running batch. Jobs are taken in submission order by a
// fixed set of workers; every status change is appended to an event log
// that subscribers replay and follow.
type Session struct {
	conv *Converter

	mu        sync.Mutex
	cond      *sync.Cond
	jobs      []Job
	queue     []int
	events    []Event
	remaining int
	cancelled bool
	done      chan struct{}
}

// Submit starts converting paths and returns immediately. Output paths
// are fixed here, before any job runs. A default converter that cannot be
// built fails every job.
func Submit(paths []string, opts ...SubmitOption) *Session {
	cfg := submitConfig{collision: CollisionOverwrite, ctx: context.Background()}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		conv:      cfg.converter,
		jobs:      make([]Job, len(paths)),
		queue:     make([]int, 0, len(paths)),
		remaining: len(paths),
		done:      make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	var setupErr error
	if s.conv == nil {
		s.conv, setupErr = NewConverter()
	}

	claimed := make(map[string]bool, len(paths))
	taken := func(p string) bool {
		if claimed[p] {
			return true
		}
		return cfg.collision != CollisionOverwrite && fileutil.FileExists(p)
	}

	s.mu.Lock()
	for i, src := range paths {
		out := fileutil.Disambiguate(fileutil.OutputPath(src, cfg.outputDir, ".pdf"), taken)
		claimed[out] = true
		kind, _ := format.Detect(src, nil)
		s.jobs[i] = Job{
			ID:     newJobID(),
			Source: src,
			Output: out,
			Format: kind,
		}
		s.publish(i, "queued")
		s.queue = append(s.queue, i)
	}
	s.mu.Unlock()

	if len(paths) == 0 {
		close(s.done)
		return s
	}
	if setupErr != nil {
		s.failQueued(setupErr)
		return s
	}

	if cfg.ctx.Err() != nil {
		s.Cancel()
		return s
	}
	if cfg.ctx.Done() != nil {
		stop := context.AfterFunc(cfg.ctx, s.Cancel)
		go func() {
			<-s.done
			stop()
		}()
	}

	for range ResolvePoolSize(cfg.concurrency, len(paths)) {
		go s.worker()
	}
	return s
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Session) worker() {
	for {
		i, ok := s.next()
		if !ok {
			return
		}
		s.run(i)
	}
}

// next dequeues the oldest pending job and marks it running.
func (s *Session) next() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || len(s.queue) == 0 {
		return -1, false
	}
	i := s.queue[0]
	s.queue = s.queue[1:]
	s.jobs[i].Status = StatusRunning
	s.jobs[i].Started = s.now()
	s.publish(i, "started")
	return i, true
}

func (s *Session) run(i int) {
	s.mu.Lock()
	src, dst := s.jobs[i].Source, s.jobs[i].Output
	s.mu.Unlock()

	res, err := s.convert(src, dst)

	s.mu.Lock()
	defer s.mu.Unlock()
	j := &s.jobs[i]
	j.Finished = s.now()
	j.Warnings = res.Warnings
	if res.Format != format.Unknown {
		j.Format = res.Format
	}
	if err != nil {
		j.Status = StatusFailed
		j.Err = err
		s.conv.logger.Debug("job failed", "id", j.ID, "source", src, "error", err)
		s.publish(i, err.Error())
	} else {
		j.Status = StatusSucceeded
		s.conv.logger.Debug("job succeeded", "id", j.ID, "source", src, "output", dst, "duration", j.Duration())
		s.publish(i, "written "+filepath.Base(dst))
	}
	s.finishOne()
}

// convert runs one job, turning a panic into that job's failure.
func (s *Session) convert(src, dst string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = internalError(r)
		}
	}()
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Result{}, &IOError{Op: "write", Path: dst, Err: err}
		}
	}
	return s.conv.ConvertFile(context.Background(), src, dst)
}

// Cancel stops the batch: jobs not yet started fail with ErrCancelled,
// running jobs finish. Calling it again has no effect.
func (s *Session) Cancel() {
	s.failQueued(ErrCancelled)
}

func (s *Session) failQueued(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return
	}
	s.cancelled = true
	now := s.now()
	for _, i := range s.queue {
		s.jobs[i].Status = StatusFailed
		s.jobs[i].Err = reason
		s.jobs[i].Finished = now
		s.publish(i, reason.Error())
		s.finishOne()
	}
	s.queue = nil
}

func (s *Session) now() time.Time {
	if s.conv != nil {
		return s.conv.now()
	}
	return time.Now()
}

// publish records a status change of job i. The caller holds s.mu.
func (s *Session) publish(i int, msg string) {
	j := s.jobs[i]
	s.events = append(s.events, Event{
		JobID:   j.ID,
		Source:  j.Source,
		Output:  j.Output,
		Status:  j.Status,
		Err:     j.Err,
		Message: msg,
		Time:    s.now(),
	})
	s.cond.Broadcast()
}

// finishOne counts a job as terminal. The caller holds s.mu.
func (s *Session) finishOne() {
	s.remaining--
	if s.remaining == 0 {
		close(s.done)
		s.cond.Broadcast()
	}
}

// Subscribe returns the session's events: every event since submission,
// then live ones as they happen. The sequence ends once every job is
// terminal. Any number of subscribers may iterate concurrently; a slow
// subscriber never delays the workers.
func (s *Session) Subscribe() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		next := 0
		for {
			s.mu.Lock()
			for next >= len(s.events) && s.remaining > 0 {
				s.cond.Wait()
			}
			batch := slices.Clone(s.events[next:])
			finished := s.remaining == 0
			s.mu.Unlock()

			for _, ev := range batch {
				if !yield(ev) {
					return
				}
			}
			next += len(batch)
			if finished {
				return
			}
		}
	}
}

// Done is closed once every job is terminal.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until every job is terminal and returns the final jobs.
func (s *Session) Wait() []Job {
	<-s.done
	return s.Jobs()
}

// Jobs returns a snapshot of all jobs in submission order.
func (s *Session) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.jobs)
}

// Summary counts the current jobs by status.
func (s *Session) Summary() Summary {
	return summarize(s.Jobs())
}
