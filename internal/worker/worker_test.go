package worker

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/driver/sim"
	"github.com/wends155/opc-cli-sub000/types"
)

// mockConnector scripts Connect behavior per attempt number (1-based).
type mockConnector struct {
	servers  []string
	connects int
	onConnect func(attempt int, serverName string) (driver.Server, error)
}

func (c *mockConnector) EnumerateServers() ([]string, error) {
	return c.servers, nil
}

func (c *mockConnector) Connect(serverName string) (driver.Server, error) {
	c.connects++
	return c.onConnect(c.connects, serverName)
}

// initConnector adds a scripted thread-init handshake on top of mockConnector.
type initConnector struct {
	mockConnector
	initErr   error
	inits     int
	releases  int
}

func (c *initConnector) InitThread() (func(), error) {
	c.inits++
	if c.initErr != nil {
		return nil, c.initErr
	}
	return func() { c.releases++ }, nil
}

// mockServer implements driver.Server with overridable hooks; nil hooks get
// benign defaults.
type mockServer struct {
	org         driver.Organization
	browseCalls int

	onBrowse      func(kind driver.BrowseType, filter string) (iter.Seq2[string, error], error)
	onChangePos   func(dir driver.Direction, name string) error
	onItemID      func(browseName string) (string, error)
	onAddGroup    func(opts driver.GroupOptions) (driver.Group, error)
	onRemoveGroup func(handle driver.GroupHandle, force bool) error
}

func (m *mockServer) QueryOrganization() (driver.Organization, error) {
	if m.org == 0 {
		return driver.OrganizationHierarchical, nil
	}
	return m.org, nil
}

func (m *mockServer) BrowseItemIDs(kind driver.BrowseType, filter string) (iter.Seq2[string, error], error) {
	m.browseCalls++
	if m.onBrowse != nil {
		return m.onBrowse(kind, filter)
	}
	return namesSeq(nil), nil
}

func (m *mockServer) ChangeBrowsePosition(dir driver.Direction, name string) error {
	if m.onChangePos != nil {
		return m.onChangePos(dir, name)
	}
	return nil
}

func (m *mockServer) ItemID(browseName string) (string, error) {
	if m.onItemID != nil {
		return m.onItemID(browseName)
	}
	return browseName, nil
}

func (m *mockServer) AddGroup(opts driver.GroupOptions) (driver.Group, error) {
	if m.onAddGroup != nil {
		return m.onAddGroup(opts)
	}
	return nil, errors.New("mockServer: AddGroup not scripted")
}

func (m *mockServer) RemoveGroup(handle driver.GroupHandle, force bool) error {
	if m.onRemoveGroup != nil {
		return m.onRemoveGroup(handle, force)
	}
	return nil
}

// namesSeq yields the given names with no per-element errors.
func namesSeq(names []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}

func simConnector() (*sim.Connector, string) {
	conn := sim.NewConnector()
	conn.AddServer("Sim.Server.1", sim.ServerConfig{
		Root: sim.Branch(map[string]*sim.Node{
			"Plant": sim.Branch(map[string]*sim.Node{
				"Temp":  sim.Leaf(types.FloatValue(21.5)),
				"State": sim.ReadOnlyLeaf(types.StringValue("idle")),
			}),
		}),
	})
	return conn, "Sim.Server.1"
}

func startWorker(t *testing.T, conn driver.Connector) *Worker {
	t.Helper()

	w, err := Start(Config{Connector: conn})
	require.NoError(t, err)
	t.Cleanup(w.Close)

	return w
}

func TestStartRequiresConnector(t *testing.T) {
	_, err := Start(Config{})
	require.Error(t, err)
}

func TestStartInitHandshakeFailure(t *testing.T) {
	conn := &initConnector{initErr: errors.New("apartment unavailable")}

	_, err := Start(Config{Connector: conn})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDriverInit)
	assert.Equal(t, 1, conn.inits)
}

func TestThreadReleaseRunsOnClose(t *testing.T) {
	conn := &initConnector{}
	conn.servers = []string{"A"}

	w, err := Start(Config{Connector: conn})
	require.NoError(t, err)
	require.Equal(t, 1, conn.inits)

	w.Close()
	assert.Equal(t, 1, conn.releases)
}

func TestListServers(t *testing.T) {
	conn, _ := simConnector()
	w := startWorker(t, conn)

	servers, err := w.ListServers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Sim.Server.1"}, servers)
}

func TestSubmitAfterCloseFails(t *testing.T) {
	conn, _ := simConnector()
	w, err := Start(Config{Connector: conn})
	require.NoError(t, err)
	w.Close()

	_, err = w.ListServers(context.Background())
	assert.ErrorIs(t, err, types.ErrWorkerTerminated)
}

func TestSubmitHonorsContext(t *testing.T) {
	conn, _ := simConnector()
	w := startWorker(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The queue may accept the request before the context check fires, so
	// only a context error is guaranteed when one comes back.
	_, err := w.BrowseTags(ctx, "Sim.Server.1", 100, types.NewProgress())
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestSessionCachedAcrossCalls(t *testing.T) {
	simConn, server := simConnector()
	conn := &mockConnector{onConnect: func(_ int, name string) (driver.Server, error) {
		return simConn.Connect(name)
	}}
	w := startWorker(t, conn)

	ctx := context.Background()
	_, err := w.ReadTagValues(ctx, server, []string{"Plant.Temp"})
	require.NoError(t, err)
	_, err = w.ReadTagValues(ctx, server, []string{"Plant.Temp"})
	require.NoError(t, err)

	assert.Equal(t, 1, conn.connects)
}

// faultingServer rejects every AddGroup with the scripted fault code.
func faultingServer(code uint32) *mockServer {
	return &mockServer{onAddGroup: func(driver.GroupOptions) (driver.Group, error) {
		return nil, types.NewFault("add group", code)
	}}
}

func TestConnectionFaultEvictsAndRetriesOnce(t *testing.T) {
	simConn, server := simConnector()
	conn := &mockConnector{onConnect: func(attempt int, name string) (driver.Server, error) {
		if attempt == 1 {
			return faultingServer(types.FaultRPCUnavailable), nil
		}
		return simConn.Connect(name)
	}}
	w := startWorker(t, conn)

	values, err := w.ReadTagValues(context.Background(), server, []string{"Plant.Temp"})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "21.50", values[0].Value)
	assert.Equal(t, 2, conn.connects)

	// The fresh session stays cached: another call reconnects nothing.
	_, err = w.ReadTagValues(context.Background(), server, []string{"Plant.Temp"})
	require.NoError(t, err)
	assert.Equal(t, 2, conn.connects)
}

func TestConnectionFaultRetriesExactlyOnce(t *testing.T) {
	conn := &mockConnector{onConnect: func(int, string) (driver.Server, error) {
		return faultingServer(types.FaultRPCCallFailed), nil
	}}
	w := startWorker(t, conn)

	_, err := w.ReadTagValues(context.Background(), "Broken", []string{"A"})
	require.Error(t, err)
	assert.True(t, types.IsConnectionFault(err))
	assert.Equal(t, 2, conn.connects)
}

func TestNonConnectionFaultNotRetried(t *testing.T) {
	conn := &mockConnector{onConnect: func(int, string) (driver.Server, error) {
		return faultingServer(types.FaultItemUnknownID), nil
	}}
	w := startWorker(t, conn)

	_, err := w.ReadTagValues(context.Background(), "Broken", []string{"A"})
	require.Error(t, err)
	assert.False(t, types.IsConnectionFault(err))
	assert.Equal(t, 1, conn.connects)
}

func TestFreshSessionCachedEvenWhenRetryFails(t *testing.T) {
	simConn, server := simConnector()
	conn := &mockConnector{onConnect: func(attempt int, name string) (driver.Server, error) {
		if attempt <= 2 {
			return faultingServer(types.FaultRPCUnavailable), nil
		}
		return simConn.Connect(name)
	}}
	w := startWorker(t, conn)

	_, err := w.ReadTagValues(context.Background(), server, []string{"Plant.Temp"})
	require.Error(t, err)
	require.Equal(t, 2, conn.connects)

	// The second (still broken) session was cached, so the next call faults
	// on it first and reconnects once more to the healthy one.
	values, err := w.ReadTagValues(context.Background(), server, []string{"Plant.Temp"})
	require.NoError(t, err)
	assert.Equal(t, "21.50", values[0].Value)
	assert.Equal(t, 3, conn.connects)
}

func TestRequestsServedInOrder(t *testing.T) {
	conn, server := simConnector()
	w := startWorker(t, conn)

	ctx := context.Background()
	type result struct {
		idx int
		err error
	}
	results := make(chan result, 8)
	for i := range 8 {
		go func() {
			_, err := w.ReadTagValues(ctx, server, []string{"Plant.Temp"})
			results <- result{idx: i, err: err}
		}()
	}
	for range 8 {
		select {
		case r := <-results:
			assert.NoError(t, r.err)
		case <-time.After(5 * time.Second):
			t.Fatal("request never completed")
		}
	}
}
