// Package scheduler serializes every backend operation onto one goroutine.
// Front ends submit requests and read responses; they never touch the
// backend directly.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"clashtui/internal/backend"
	"clashtui/internal/errs"
	"clashtui/internal/logging"
)

// DefaultQueueSize bounds both channels when no size is configured.
const DefaultQueueSize = 16

// ErrStopped is returned by Submit once the loop has acknowledged OpStop.
var ErrStopped = errors.New("scheduler stopped")

// Op names a backend operation
type Op string

// Operations
const (
	OpSelect    Op = "select"
	OpUpdate    Op = "update"
	OpUpdateAll Op = "update_all"
	OpGenerate  Op = "generate"
	OpImport    Op = "import"
	OpRemove    Op = "remove"
	OpList      Op = "list"
	OpTemplates Op = "templates"
	OpPreview   Op = "preview"
	// OpTick polls the daemon. It never fails; see Run.
	OpTick Op = "tick"
	// OpStop ends the loop after it is acknowledged.
	OpStop Op = "stop"
)

// Options carries per-operation arguments
type Options struct {
	// URL is the subscription link for OpImport; empty imports a local file.
	URL    string
	Update backend.UpdateOptions
}

// Request is one unit of work
type Request struct {
	ID   uuid.UUID
	Op   Op
	Name string
	Opts Options
}

// NewRequest builds a request with a fresh ID
func NewRequest(op Op, name string) Request {
	return Request{ID: uuid.New(), Op: op, Name: name}
}

// Response answers exactly one Request.
//
// Value by Op: OpUpdateAll []backend.UpdateResult, OpGenerate profile.Profile,
// OpList []backend.ProfileInfo, OpTemplates []string, OpPreview []byte,
// OpTick backend.Status. Other operations carry no value.
type Response struct {
	ID    uuid.UUID
	Op    Op
	Value any
	Err   error
}

// Scheduler runs backend operations one at a time in submission order.
type Scheduler struct {
	backend   *backend.Backend
	requests  chan Request
	responses chan Response
	stopped   chan struct{}
	logger    *logging.Logger
}

// New creates a scheduler over b. queueSize bounds both channels.
func New(b *backend.Backend, queueSize int, logger *logging.Logger) *Scheduler {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Scheduler{
		backend:   b,
		requests:  make(chan Request, queueSize),
		responses: make(chan Response, queueSize),
		stopped:   make(chan struct{}),
		logger:    logger,
	}
}

// Submit enqueues req, assigning an ID when it has none. It blocks while the
// queue is full.
func (s *Scheduler) Submit(ctx context.Context, req Request) (uuid.UUID, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	select {
	case <-s.stopped:
		return uuid.Nil, ErrStopped
	default:
	}

	select {
	case s.requests <- req:
		return req.ID, nil
	case <-s.stopped:
		return uuid.Nil, ErrStopped
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// Responses returns the channel every response is delivered on
func (s *Scheduler) Responses() <-chan Response {
	return s.responses
}

// Do submits req and waits for its response. Responses to other requests that
// arrive first are dropped, so Do must be the only reader of Responses.
func (s *Scheduler) Do(ctx context.Context, req Request) (Response, error) {
	id, err := s.Submit(ctx, req)
	if err != nil {
		return Response{}, err
	}
	for {
		select {
		case resp := <-s.responses:
			if resp.ID == id {
				return resp, nil
			}
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
}

// Run processes requests until OpStop is handled or ctx is cancelled. Every
// request yields exactly one response. A failed OpTick is answered with an
// unknown status and no error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler.started", "Command loop started", map[string]interface{}{
		"queue_size": cap(s.requests),
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler.context_cancelled", "Command loop cancelled", nil)
			return ctx.Err()

		case req := <-s.requests:
			start := time.Now()
			resp := s.handle(ctx, req)

			if resp.Err != nil {
				s.logger.Warn("scheduler.op.failed", "Operation failed", map[string]interface{}{
					"op":    string(req.Op),
					"name":  req.Name,
					"kind":  errs.KindOf(resp.Err).String(),
					"error": resp.Err.Error(),
				})
			} else if req.Op != OpTick {
				s.logger.Debug("scheduler.op.done", "Operation finished", map[string]interface{}{
					"op":          string(req.Op),
					"name":        req.Name,
					"duration_ms": time.Since(start).Milliseconds(),
				})
			}

			select {
			case s.responses <- resp:
			case <-ctx.Done():
				return ctx.Err()
			}

			if req.Op == OpStop {
				close(s.stopped)
				s.drain()
				s.logger.Info("scheduler.stopped", "Command loop stopped", nil)
				return nil
			}
		}
	}
}

// drain answers every request still queued after OpStop with ErrStopped.
// A response that finds the response queue full is dropped.
func (s *Scheduler) drain() {
	for {
		select {
		case req := <-s.requests:
			resp := Response{ID: req.ID, Op: req.Op, Err: ErrStopped}
			select {
			case s.responses <- resp:
			default:
				s.logger.Warn("scheduler.drain.dropped", "Response queue full; dropping stop notice", map[string]interface{}{
					"op":   string(req.Op),
					"name": req.Name,
				})
			}
		default:
			return
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID, Op: req.Op}
	b := s.backend

	switch req.Op {
	case OpSelect:
		resp.Err = b.Select(ctx, req.Name)
	case OpUpdate:
		resp.Err = b.Update(ctx, req.Name, req.Opts.Update)
	case OpUpdateAll:
		resp.Value = b.UpdateAll(ctx, req.Opts.Update)
	case OpGenerate:
		resp.Value, resp.Err = b.Generate(ctx, req.Name)
	case OpImport:
		resp.Err = b.Import(ctx, req.Name, req.Opts.URL)
	case OpRemove:
		resp.Err = b.Remove(ctx, req.Name)
	case OpList:
		resp.Value = b.List()
	case OpTemplates:
		resp.Value, resp.Err = b.Templates()
	case OpPreview:
		resp.Value, resp.Err = b.Preview(req.Name)
	case OpTick:
		st, err := b.Status(ctx)
		if err != nil {
			s.logger.Debug("scheduler.tick.unknown", "Daemon status unknown", map[string]interface{}{
				"error": err.Error(),
			})
			st = backend.Status{State: backend.StateUnknown, Current: st.Current}
		}
		resp.Value = st
	case OpStop:
	default:
		resp.Err = errs.New(errs.KindInvalid, "unknown operation %q", req.Op)
	}
	return resp
}
