// Package worker implements the single-threaded dispatcher that owns all
// driver sessions.
//
// OPC DA sessions are thread-affine: every call on a session must come from
// the OS thread that created it. The dispatcher pins one goroutine to its OS
// thread, performs the backend's one-time thread initialization there, and
// serializes all driver work through a bounded request queue. Callers never
// touch a session directly; they submit typed requests and wait on per-request
// reply channels.
package worker

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/internal/logging"
	"github.com/wends155/opc-cli-sub000/internal/metrics"
	"github.com/wends155/opc-cli-sub000/types"
)

const (
	// requestQueueSize bounds the dispatcher's inbox. Submissions beyond it
	// block the caller, which is the desired backpressure.
	requestQueueSize = 32

	readGroupName  = "opc-cli-read"
	writeGroupName = "opc-cli-write"

	// groupUpdateRateMS is the update rate requested for the throwaway
	// groups used by batch reads and writes.
	groupUpdateRateMS = 1000

	defaultMaxBrowseDepth = 50
)

// Config configures a dispatcher worker.
type Config struct {
	// Connector opens driver sessions. Required.
	Connector driver.Connector

	// Logger receives dispatcher logs. Defaults to a no-op logger.
	Logger types.Logger

	// Metrics receives dispatcher metrics. Defaults to a no-op collector.
	Metrics types.MetricsCollector

	// MaxBrowseDepth caps hierarchical namespace recursion. Defaults to 50.
	MaxBrowseDepth int
}

// Worker is the dispatcher. All driver calls happen on its single locked
// goroutine; the exported methods are safe for concurrent use.
type Worker struct {
	requests chan request
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	logger  types.Logger
	metrics types.MetricsCollector
}

// state is the worker goroutine's private view: the session cache and the
// collaborators the engines need. Nothing outside the worker goroutine may
// touch it.
type state struct {
	connector driver.Connector
	logger    types.Logger
	metrics   types.MetricsCollector
	maxDepth  int
	sessions  map[string]driver.Server
}

// request is one unit of work executed on the worker goroutine.
type request interface {
	execute(s *state)
}

// Start launches the dispatcher and blocks until its thread initialization
// handshake completes.
//
// If the backend's per-thread initialization fails, the worker goroutine
// exits and Start returns an error wrapping types.ErrDriverInit.
func Start(cfg Config) (*Worker, error) {
	if cfg.Connector == nil {
		return nil, fmt.Errorf("worker: connector is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNopMetrics()
	}
	if cfg.MaxBrowseDepth <= 0 {
		cfg.MaxBrowseDepth = defaultMaxBrowseDepth
	}

	w := &Worker{
		requests: make(chan request, requestQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}

	initErr := make(chan error, 1)
	go w.run(cfg, initErr)

	if err := <-initErr; err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrDriverInit, err)
	}

	return w, nil
}

// run is the worker goroutine body. The goroutine stays locked to its OS
// thread for its whole life so the thread dies with it, which is what
// apartment-style runtimes expect.
func (w *Worker) run(cfg Config, initErr chan<- error) {
	runtime.LockOSThread()
	defer close(w.done)

	if ti, ok := cfg.Connector.(driver.ThreadInitializer); ok {
		release, err := ti.InitThread()
		if err != nil {
			initErr <- err
			return
		}
		defer release()
	}
	initErr <- nil

	s := &state{
		connector: cfg.Connector,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		maxDepth:  cfg.MaxBrowseDepth,
		sessions:  make(map[string]driver.Server),
	}
	defer s.releaseAll()

	w.logger.Info("dispatcher started", "queue_size", requestQueueSize)

	for {
		select {
		case <-w.stop:
			w.logger.Info("dispatcher stopping")
			return
		case req := <-w.requests:
			req.execute(s)
		}
	}
}

// Close shuts the dispatcher down and waits for the worker goroutine to
// release its sessions and exit. Safe to call more than once.
func (w *Worker) Close() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

// Done returns a channel closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// submit enqueues a request, failing fast when the worker is gone.
func (w *Worker) submit(ctx context.Context, req request) error {
	select {
	case w.requests <- req:
		return nil
	case <-w.done:
		return types.ErrWorkerTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await collects a reply, distinguishing worker death from caller
// cancellation. Reply channels are buffered so an abandoned wait never blocks
// the worker; conversely a reply racing worker shutdown is still delivered.
func await[R any](ctx context.Context, w *Worker, reply <-chan R) (R, error) {
	var zero R
	select {
	case rep := <-reply:
		return rep, nil
	case <-w.done:
		select {
		case rep := <-reply:
			return rep, nil
		default:
			return zero, types.ErrWorkerShutDown
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

type listServersReply struct {
	servers []string
	err     error
}

type listServersReq struct {
	reply chan listServersReply
}

func (r *listServersReq) execute(s *state) {
	servers, err := s.connector.EnumerateServers()
	r.reply <- listServersReply{servers: servers, err: err}
}

// ListServers enumerates available server ProgIDs.
func (w *Worker) ListServers(ctx context.Context) ([]string, error) {
	req := &listServersReq{reply: make(chan listServersReply, 1)}
	if err := w.submit(ctx, req); err != nil {
		return nil, err
	}
	rep, err := await(ctx, w, req.reply)
	if err != nil {
		return nil, err
	}

	return rep.servers, rep.err
}

type browseReply struct {
	tags []string
	err  error
}

type browseReq struct {
	server   string
	maxTags  int
	progress *types.Progress
	reply    chan browseReply
}

func (r *browseReq) execute(s *state) {
	tags, err := dispatchWithRetry(s, r.server, "browse_tags", func(sess driver.Server) ([]string, error) {
		return browseTags(s, sess, r.maxTags, r.progress)
	})
	r.reply <- browseReply{tags: tags, err: err}
}

// BrowseTags discovers fully qualified tag IDs on the named server, up to
// maxTags. Discovered IDs are streamed into progress as they are found, so a
// caller that stops waiting can still harvest a partial result from it.
func (w *Worker) BrowseTags(ctx context.Context, server string, maxTags int, progress *types.Progress) ([]string, error) {
	req := &browseReq{
		server:   server,
		maxTags:  maxTags,
		progress: progress,
		reply:    make(chan browseReply, 1),
	}
	if err := w.submit(ctx, req); err != nil {
		return nil, err
	}
	rep, err := await(ctx, w, req.reply)
	if err != nil {
		return nil, err
	}

	return rep.tags, rep.err
}

type readReply struct {
	values []types.TagValue
	err    error
}

type readReq struct {
	server string
	tagIDs []string
	reply  chan readReply
}

func (r *readReq) execute(s *state) {
	values, err := dispatchWithRetry(s, r.server, "read_tag_values", func(sess driver.Server) ([]types.TagValue, error) {
		return readTagValues(s, sess, r.tagIDs)
	})
	r.reply <- readReply{values: values, err: err}
}

// ReadTagValues reads the given tags in one batch. The result has exactly one
// TagValue per requested tag, in request order; per-item failures surface in
// the corresponding slot rather than as an error.
func (w *Worker) ReadTagValues(ctx context.Context, server string, tagIDs []string) ([]types.TagValue, error) {
	req := &readReq{server: server, tagIDs: tagIDs, reply: make(chan readReply, 1)}
	if err := w.submit(ctx, req); err != nil {
		return nil, err
	}
	rep, err := await(ctx, w, req.reply)
	if err != nil {
		return nil, err
	}

	return rep.values, rep.err
}

type writeReply struct {
	result types.WriteResult
	err    error
}

type writeReq struct {
	server string
	tagID  string
	value  types.Value
	reply  chan writeReply
}

func (r *writeReq) execute(s *state) {
	result, err := dispatchWithRetry(s, r.server, "write_tag_value", func(sess driver.Server) (types.WriteResult, error) {
		return writeTagValue(s, sess, r.tagID, r.value)
	})
	r.reply <- writeReply{result: result, err: err}
}

// WriteTagValue writes one value to one tag. A server-side per-item rejection
// is reported in the WriteResult, not as an error.
func (w *Worker) WriteTagValue(ctx context.Context, server, tagID string, value types.Value) (types.WriteResult, error) {
	req := &writeReq{server: server, tagID: tagID, value: value, reply: make(chan writeReply, 1)}
	if err := w.submit(ctx, req); err != nil {
		return types.WriteResult{}, err
	}
	rep, err := await(ctx, w, req.reply)
	if err != nil {
		return types.WriteResult{}, err
	}

	return rep.result, rep.err
}

// session returns the cached session for a server, connecting on first use.
func (s *state) session(name string) (driver.Server, error) {
	if sess, ok := s.sessions[name]; ok {
		return sess, nil
	}
	sess, err := s.connector.Connect(name)
	if err != nil {
		return nil, err
	}
	s.sessions[name] = sess
	s.logger.Debug("session cached", "server", name)

	return sess, nil
}

// evict drops a server's cached session, releasing it when the driver
// supports release.
func (s *state) evict(name string) {
	sess, ok := s.sessions[name]
	if !ok {
		return
	}
	delete(s.sessions, name)
	if c, ok := sess.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("session release failed", "server", name, "error", err)
		}
	}
}

func (s *state) releaseAll() {
	for name := range s.sessions {
		s.evict(name)
	}
}

// dispatchWithRetry runs op against the server's cached session. On a
// connection-class fault it evicts the stale session, reconnects, and retries
// exactly once; the fresh session stays cached whatever the retry returns.
// Any other fault is returned as-is with no retry.
func dispatchWithRetry[R any](s *state, serverName, opName string, op func(driver.Server) (R, error)) (R, error) {
	var zero R

	sess, err := s.session(serverName)
	if err != nil {
		return zero, err
	}

	res, err := op(sess)
	if err == nil || !types.IsConnectionFault(err) {
		return res, err
	}

	s.logger.Warn("connection fault, reconnecting",
		"server", serverName, "op", opName, "error", err)
	s.metrics.IncReconnect()

	s.evict(serverName)
	sess, connErr := s.connector.Connect(serverName)
	if connErr != nil {
		return zero, connErr
	}
	s.sessions[serverName] = sess

	return op(sess)
}
