package opcda

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/internal/logging"
	"github.com/wends155/opc-cli-sub000/internal/metrics"
	"github.com/wends155/opc-cli-sub000/internal/worker"
	"github.com/wends155/opc-cli-sub000/types"
)

// BrowseResult is the outcome of a namespace browse.
type BrowseResult struct {
	// Tags are the discovered fully qualified tag identifiers.
	Tags []string

	// Partial reports that the browse timed out and Tags holds whatever had
	// been discovered by then, rather than the complete namespace.
	Partial bool
}

// Client is the OPC DA client.
//
// It owns a dispatcher goroutine pinned to one OS thread; all driver sessions
// live on that thread and every operation is serialized through it. The
// client itself is safe for concurrent use from multiple goroutines:
//
//	client, err := opcda.NewClient(connector)
//	defer client.Close()
//
//	go func() { client.ReadTagValues(ctx, server, tags) }()
//	go func() { client.ListServers(ctx) }()
//
// Every operation is bounded by its configured timeout. When the timeout
// fires the caller gets an answer immediately while the dispatcher finishes
// the abandoned call in the background; its late reply is discarded.
//
// # Lifecycle
//
// Close() shuts the dispatcher down, releases all cached sessions, and waits
// for the worker thread to exit. After Close the client cannot be reused:
// operations return ErrWorkerTerminated.
type Client struct {
	config *ClientConfig
	worker *worker.Worker
	closed atomic.Bool
}

// NewClient creates an OPC DA client over the given connector.
//
// The dispatcher thread is started and initialized synchronously: if the
// backend's per-thread setup fails (e.g. the COM apartment cannot be
// entered), NewClient fails with an error wrapping ErrDriverInit and no
// client is returned.
//
// Parameters:
//   - connector: The transport backend (required); see driver/sim and driver/dcom
//   - opts: Optional configuration options
//
// Returns:
//   - *Client: A new client
//   - error: Validation error or dispatcher initialization failure
func NewClient(connector driver.Connector, opts ...Option) (*Client, error) {
	if connector == nil {
		return nil, errors.New("opcda: connector is required")
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	// Ensure collaborators are never nil
	if config.Metrics == nil {
		config.Metrics = metrics.NewNopMetrics()
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	w, err := worker.Start(worker.Config{
		Connector:      connector,
		Logger:         config.Logger,
		Metrics:        config.Metrics,
		MaxBrowseDepth: config.MaxBrowseDepth,
	})
	if err != nil {
		return nil, err
	}

	return &Client{config: config, worker: w}, nil
}

// Close shuts down the dispatcher and releases all cached sessions. Safe to
// call more than once.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.worker.Close()
}

// ListServers enumerates the OPC DA servers available through the connector.
func (c *Client) ListServers(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ListTimeout)
	defer cancel()

	start := time.Now()
	c.config.Metrics.IncOpTotal(types.OpListServers)

	servers, err := c.worker.ListServers(ctx)
	c.config.Metrics.ObserveOpDuration(types.OpListServers, time.Since(start).Seconds())
	if err != nil {
		return nil, c.opError(types.OpListServers, "list servers", err)
	}

	return servers, nil
}

// BrowseTags discovers tag identifiers on the named server, bounded by the
// configured tag cap and browse timeout.
//
// On timeout the browse is not a total loss: the result carries the tags
// harvested up to that point with Partial set. The abandoned traversal winds
// down on the dispatcher in the background.
func (c *Client) BrowseTags(ctx context.Context, server string) (BrowseResult, error) {
	return c.BrowseTagsWithProgress(ctx, server, types.NewProgress())
}

// BrowseTagsWithProgress is BrowseTags with a caller-supplied progress sink,
// for UIs that poll discovery counts while the browse runs.
//
// The progress sink must be fresh for each call; reusing one across calls
// would leak earlier results into a later harvest.
func (c *Client) BrowseTagsWithProgress(ctx context.Context, server string, progress *types.Progress) (BrowseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.BrowseTimeout)
	defer cancel()

	start := time.Now()
	c.config.Metrics.IncOpTotal(types.OpBrowseTags)

	tags, err := c.worker.BrowseTags(ctx, server, c.config.MaxBrowseTags, progress)
	c.config.Metrics.ObserveOpDuration(types.OpBrowseTags, time.Since(start).Seconds())

	switch {
	case err == nil:
		return BrowseResult{Tags: tags}, nil

	case errors.Is(err, context.DeadlineExceeded):
		harvested := progress.Snapshot()
		if len(harvested) == 0 {
			// Nothing was discovered before the deadline; an empty partial
			// result would be indistinguishable from an empty namespace.
			return BrowseResult{}, c.opError(types.OpBrowseTags, "browse tags", err)
		}

		c.config.Metrics.IncTimeout(types.OpBrowseTags)
		c.config.Metrics.IncPartialBrowse()
		c.config.Logger.Warn("browse timed out, returning partial result",
			"server", server, "tags", len(harvested))

		return BrowseResult{Tags: harvested, Partial: true}, nil

	default:
		return BrowseResult{}, c.opError(types.OpBrowseTags, "browse tags", err)
	}
}

// ReadTagValues reads the given tags in one batch.
//
// The result has exactly one TagValue per requested tag, in request order.
// Tags the server rejects or fails to read keep their position with the
// failure reason decoded into the quality field.
func (c *Client) ReadTagValues(ctx context.Context, server string, tagIDs []string) ([]types.TagValue, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ReadTimeout)
	defer cancel()

	start := time.Now()
	c.config.Metrics.IncOpTotal(types.OpRead)

	values, err := c.worker.ReadTagValues(ctx, server, tagIDs)
	c.config.Metrics.ObserveOpDuration(types.OpRead, time.Since(start).Seconds())
	if err != nil {
		return nil, c.opError(types.OpRead, "read tag values", err)
	}

	return values, nil
}

// WriteTagValue writes a raw string value to one tag.
//
// The value is coerced by trying integer, then float, then boolean, falling
// back to a plain string. A server-side rejection is reported in the
// WriteResult rather than as an error.
func (c *Client) WriteTagValue(ctx context.Context, server, tagID, rawValue string) (types.WriteResult, error) {
	return c.WriteTagTypedValue(ctx, server, tagID, types.ParseValue(rawValue))
}

// WriteTagTypedValue writes an explicitly typed value to one tag, bypassing
// string coercion.
func (c *Client) WriteTagTypedValue(ctx context.Context, server, tagID string, value types.Value) (types.WriteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	c.config.Metrics.IncOpTotal(types.OpWrite)

	result, err := c.worker.WriteTagValue(ctx, server, tagID, value)
	c.config.Metrics.ObserveOpDuration(types.OpWrite, time.Since(start).Seconds())
	if err != nil {
		return types.WriteResult{}, c.opError(types.OpWrite, "write tag value", err)
	}

	return result, nil
}

// opError maps infrastructure failures onto the client's error taxonomy and
// records them.
func (c *Client) opError(op types.OpKind, name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		c.config.Metrics.IncTimeout(op)
		return fmt.Errorf("opcda: %s: %w", name, types.ErrTimeout)
	}
	c.config.Metrics.IncOpError(op)

	return fmt.Errorf("opcda: %s: %w", name, err)
}
