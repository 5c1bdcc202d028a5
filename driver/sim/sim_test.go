package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

func testNamespace() *Node {
	return Branch(map[string]*Node{
		"Channel1": Branch(map[string]*Node{
			"Device1": Branch(map[string]*Node{
				"Tag1": Leaf(types.IntValue(42)),
				"Tag2": Leaf(types.FloatValue(3.14)),
			}),
		}),
		"Status": ReadOnlyLeaf(types.StringValue("running")),
	})
}

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()

	conn := NewConnector()
	conn.AddServer("Sim.Server.1", cfg)

	srv, err := conn.Connect("Sim.Server.1")
	require.NoError(t, err)

	return srv.(*Server)
}

func TestConnectorEnumerateSorted(t *testing.T) {
	conn := NewConnector()
	conn.AddServer("Zeta.Server.1", ServerConfig{Root: Branch(nil)})
	conn.AddServer("Alpha.Server.1", ServerConfig{Root: Branch(nil)})

	names, err := conn.EnumerateServers()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha.Server.1", "Zeta.Server.1"}, names)
}

func TestConnectUnknownServer(t *testing.T) {
	conn := NewConnector()

	_, err := conn.Connect("No.Such.Server")
	require.Error(t, err)

	var fault *types.FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, types.FaultClassNotRegistered, fault.Code)
}

func TestBrowseBranchAndLeaf(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Root: testNamespace()})

	branches := collect(t, srv, driver.BrowseBranch)
	assert.Equal(t, []string{"Channel1"}, branches)

	leaves := collect(t, srv, driver.BrowseLeaf)
	assert.Equal(t, []string{"Status"}, leaves)

	require.NoError(t, srv.ChangeBrowsePosition(driver.BrowseDown, "Channel1"))
	require.NoError(t, srv.ChangeBrowsePosition(driver.BrowseDown, "Device1"))

	leaves = collect(t, srv, driver.BrowseLeaf)
	assert.Equal(t, []string{"Tag1", "Tag2"}, leaves)

	id, err := srv.ItemID("Tag1")
	require.NoError(t, err)
	assert.Equal(t, "Channel1.Device1.Tag1", id)

	require.NoError(t, srv.ChangeBrowsePosition(driver.BrowseUp, ""))
	require.NoError(t, srv.ChangeBrowsePosition(driver.BrowseUp, ""))

	// Back at the root.
	leaves = collect(t, srv, driver.BrowseLeaf)
	assert.Equal(t, []string{"Status"}, leaves)
}

func TestBrowseUpAtRootFails(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Root: testNamespace()})

	err := srv.ChangeBrowsePosition(driver.BrowseUp, "")
	require.Error(t, err)
}

func TestBrowseFlatSupportToggle(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Root: testNamespace()})

	_, err := srv.BrowseItemIDs(driver.BrowseFlat, "")
	require.ErrorIs(t, err, types.ErrNotSupported)

	srv = newTestServer(t, ServerConfig{Root: testNamespace(), SupportsFlatBrowse: true})

	all := collect(t, srv, driver.BrowseFlat)
	assert.Equal(t, []string{"Channel1.Device1.Tag1", "Channel1.Device1.Tag2", "Status"}, all)
}

func TestGroupReadWrite(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Root: testNamespace()})

	group, err := srv.AddGroup(driver.GroupOptions{Name: "g", UpdateRateMS: 1000})
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), group.RevisedUpdateRateMS())

	results, itemErrs, err := group.AddItems([]driver.ItemDef{
		{ItemID: "Channel1.Device1.Tag1"},
		{ItemID: "Channel1.Device1.Missing"},
		{ItemID: "Status"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, itemErrs[0])
	assert.Error(t, itemErrs[1])
	assert.NoError(t, itemErrs[2])

	handles := []driver.ItemHandle{results[0].ServerHandle, results[2].ServerHandle}
	states, readErrs, err := group.Read(driver.SourceDevice, handles)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.NoError(t, readErrs[0])
	assert.Equal(t, "42", states[0].Value.String())
	assert.Equal(t, types.QualityGood, states[0].Quality)

	// Writable tag accepts, read-only tag rejects with a rights fault.
	writeErrs, err := group.Write(handles, []types.Value{
		types.IntValue(7),
		types.StringValue("stopped"),
	})
	require.NoError(t, err)
	assert.NoError(t, writeErrs[0])

	var fault *types.FaultError
	require.ErrorAs(t, writeErrs[1], &fault)
	assert.Equal(t, types.FaultItemBadRights, fault.Code)

	states, _, err = group.Read(driver.SourceDevice, handles[:1])
	require.NoError(t, err)
	assert.Equal(t, "7", states[0].Value.String())
}

func TestRemoveGroupTwiceFails(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Root: testNamespace()})

	group, err := srv.AddGroup(driver.GroupOptions{Name: "g"})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.GroupCount())

	require.NoError(t, srv.RemoveGroup(group.ServerHandle(), true))
	assert.Equal(t, 0, srv.GroupCount())

	err = srv.RemoveGroup(group.ServerHandle(), true)
	require.Error(t, err)
}

func collect(t *testing.T, srv *Server, kind driver.BrowseType) []string {
	t.Helper()

	seq, err := srv.BrowseItemIDs(kind, "")
	require.NoError(t, err)

	var names []string
	for name, err := range seq {
		require.NoError(t, err)
		names = append(names, name)
	}

	return names
}
