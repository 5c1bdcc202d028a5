package opcda

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/driver/sim"
	"github.com/wends155/opc-cli-sub000/types"
)

func newSimConnector() *sim.Connector {
	conn := sim.NewConnector()
	conn.AddServer("Matrikon.OPC.Simulation.1", sim.ServerConfig{
		Root: sim.Branch(map[string]*sim.Node{
			"Random": sim.Branch(map[string]*sim.Node{
				"Int1":  sim.Leaf(types.IntValue(7)),
				"Real4": sim.Leaf(types.FloatValue(1.25)),
			}),
			"Bucket": sim.Branch(map[string]*sim.Node{
				"Brigade": sim.Branch(map[string]*sim.Node{
					"Value": sim.Leaf(types.BoolValue(true)),
				}),
			}),
		}),
	})
	return conn
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()

	client, err := NewClient(newSimConnector(), opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestNewClientRequiresConnector(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
}

// failingInitConnector fails the dispatcher's thread initialization.
type failingInitConnector struct{}

func (failingInitConnector) EnumerateServers() ([]string, error) { return nil, nil }
func (failingInitConnector) Connect(string) (driver.Server, error) {
	return nil, errors.New("unreachable")
}
func (failingInitConnector) InitThread() (func(), error) {
	return nil, errors.New("cannot enter apartment")
}

func TestNewClientInitFailure(t *testing.T) {
	_, err := NewClient(failingInitConnector{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDriverInit)
}

func TestListServers(t *testing.T) {
	client := newTestClient(t)

	servers, err := client.ListServers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Matrikon.OPC.Simulation.1"}, servers)
}

func TestBrowseReadRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	result, err := client.BrowseTags(ctx, "Matrikon.OPC.Simulation.1")
	require.NoError(t, err)
	assert.False(t, result.Partial)
	require.Len(t, result.Tags, 3)

	values, err := client.ReadTagValues(ctx, "Matrikon.OPC.Simulation.1", result.Tags)
	require.NoError(t, err)
	require.Len(t, values, 3)
	for i, v := range values {
		assert.Equal(t, result.Tags[i], v.TagID)
		assert.Equal(t, "Good", v.Quality)
	}
}

func TestWriteCoercesRawString(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	result, err := client.WriteTagValue(ctx, "Matrikon.OPC.Simulation.1", "Random.Int1", "42")
	require.NoError(t, err)
	assert.True(t, result.Success)

	values, err := client.ReadTagValues(ctx, "Matrikon.OPC.Simulation.1", []string{"Random.Int1"})
	require.NoError(t, err)
	assert.Equal(t, "42", values[0].Value)
}

func TestOperationsAfterClose(t *testing.T) {
	client, err := NewClient(newSimConnector())
	require.NoError(t, err)
	client.Close()
	client.Close() // idempotent

	_, err = client.ListServers(context.Background())
	assert.ErrorIs(t, err, ErrWorkerTerminated)
}

// stallServer serves a flat namespace whose leaf enumeration emits a fixed
// number of names and then blocks until released, simulating a browse that
// outlives its deadline.
type stallServer struct {
	emit    int
	release chan struct{}
}

func (s *stallServer) QueryOrganization() (driver.Organization, error) {
	return driver.OrganizationFlat, nil
}

func (s *stallServer) BrowseItemIDs(driver.BrowseType, string) (iter.Seq2[string, error], error) {
	return func(yield func(string, error) bool) {
		for i := range s.emit {
			if !yield(fmt.Sprintf("Tag%03d", i), nil) {
				return
			}
		}
		<-s.release
	}, nil
}

func (s *stallServer) ChangeBrowsePosition(driver.Direction, string) error { return nil }
func (s *stallServer) ItemID(name string) (string, error)                  { return name, nil }
func (s *stallServer) AddGroup(driver.GroupOptions) (driver.Group, error) {
	return nil, errors.New("not scripted")
}
func (s *stallServer) RemoveGroup(driver.GroupHandle, bool) error { return nil }

type staticConnector struct {
	server driver.Server
}

func (c staticConnector) EnumerateServers() ([]string, error) { return []string{"Stall"}, nil }
func (c staticConnector) Connect(string) (driver.Server, error) {
	return c.server, nil
}

func TestBrowseTimeoutHarvestsPartialResult(t *testing.T) {
	srv := &stallServer{emit: 37, release: make(chan struct{})}
	client, err := NewClient(staticConnector{server: srv},
		WithBrowseTimeout(100*time.Millisecond))
	require.NoError(t, err)

	progress := types.NewProgress()
	result, browseErr := client.BrowseTagsWithProgress(context.Background(), "Stall", progress)

	// Unblock the dispatcher before Close can wait on it.
	close(srv.release)
	defer client.Close()

	require.NoError(t, browseErr)
	assert.True(t, result.Partial)
	assert.Len(t, result.Tags, 37)
	assert.Equal(t, 37, progress.Count())
}

func TestBrowseTimeoutWithEmptyHarvestFails(t *testing.T) {
	collector := newCountingMetrics()
	// Enumeration blocks before yielding a single tag, so the deadline
	// expires with nothing harvested.
	srv := &stallServer{emit: 0, release: make(chan struct{})}
	client, err := NewClient(staticConnector{server: srv},
		WithBrowseTimeout(100*time.Millisecond), WithMetrics(collector))
	require.NoError(t, err)

	progress := types.NewProgress()
	result, browseErr := client.BrowseTagsWithProgress(context.Background(), "Stall", progress)

	close(srv.release)
	defer client.Close()

	require.Error(t, browseErr)
	assert.ErrorIs(t, browseErr, ErrTimeout)
	assert.False(t, result.Partial)
	assert.Empty(t, result.Tags)

	collector.mu.Lock()
	defer collector.mu.Unlock()
	assert.Equal(t, 1, collector.timeouts[types.OpBrowseTags])
	assert.Zero(t, collector.partials)
}

func TestReadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := &blockingGroupServer{release: release}
	client, err := NewClient(staticConnector{server: srv},
		WithReadTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, readErr := client.ReadTagValues(context.Background(), "Stall", []string{"A"})

	close(release)
	defer client.Close()

	require.Error(t, readErr)
	assert.ErrorIs(t, readErr, ErrTimeout)
}

// blockingGroupServer blocks inside AddGroup until released.
type blockingGroupServer struct {
	stallServer
	release chan struct{}
}

func (s *blockingGroupServer) AddGroup(driver.GroupOptions) (driver.Group, error) {
	<-s.release
	return nil, errors.New("released")
}

// countingMetrics records collector calls for assertions.
type countingMetrics struct {
	mu       sync.Mutex
	totals   map[types.OpKind]int
	errors   map[types.OpKind]int
	timeouts map[types.OpKind]int
	partials int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		totals:   make(map[types.OpKind]int),
		errors:   make(map[types.OpKind]int),
		timeouts: make(map[types.OpKind]int),
	}
}

func (m *countingMetrics) IncOpTotal(op types.OpKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[op]++
}

func (m *countingMetrics) IncOpError(op types.OpKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op]++
}

func (m *countingMetrics) ObserveOpDuration(types.OpKind, float64) {}

func (m *countingMetrics) IncTimeout(op types.OpKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts[op]++
}

func (m *countingMetrics) IncPartialBrowse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partials++
}

func (m *countingMetrics) IncReconnect()        {}
func (m *countingMetrics) AddTagsDiscovered(int) {}

func TestMetricsRecorded(t *testing.T) {
	collector := newCountingMetrics()
	client := newTestClient(t, WithMetrics(collector))
	ctx := context.Background()

	_, err := client.ListServers(ctx)
	require.NoError(t, err)
	_, err = client.ReadTagValues(ctx, "Matrikon.OPC.Simulation.1", []string{"Random.Int1"})
	require.NoError(t, err)

	collector.mu.Lock()
	defer collector.mu.Unlock()
	assert.Equal(t, 1, collector.totals[types.OpListServers])
	assert.Equal(t, 1, collector.totals[types.OpRead])
	assert.Empty(t, collector.errors)
}

func TestBrowseTimeoutCountsPartial(t *testing.T) {
	collector := newCountingMetrics()
	srv := &stallServer{emit: 3, release: make(chan struct{})}
	client, err := NewClient(staticConnector{server: srv},
		WithBrowseTimeout(50*time.Millisecond), WithMetrics(collector))
	require.NoError(t, err)

	result, browseErr := client.BrowseTags(context.Background(), "Stall")

	close(srv.release)
	defer client.Close()

	require.NoError(t, browseErr)
	assert.True(t, result.Partial)

	collector.mu.Lock()
	defer collector.mu.Unlock()
	assert.Equal(t, 1, collector.timeouts[types.OpBrowseTags])
	assert.Equal(t, 1, collector.partials)
}
