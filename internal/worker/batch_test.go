package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

func TestReadPreservesOrderAndLength(t *testing.T) {
	conn, server := simConnector()
	w := startWorker(t, conn)

	requested := []string{"Plant.State", "Plant.Temp"}
	values, err := w.ReadTagValues(context.Background(), server, requested)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "Plant.State", values[0].TagID)
	assert.Equal(t, `"idle"`, values[0].Value)
	assert.Equal(t, "Good", values[0].Quality)
	assert.Equal(t, "Plant.Temp", values[1].TagID)
	assert.Equal(t, "21.50", values[1].Value)
	assert.NotEmpty(t, values[1].Timestamp)
}

func TestReadRejectedItemKeepsItsSlot(t *testing.T) {
	conn, server := simConnector()
	w := startWorker(t, conn)

	requested := []string{"Plant.Temp", "Plant.DoesNotExist", "Plant.State"}
	values, err := w.ReadTagValues(context.Background(), server, requested)
	require.NoError(t, err)
	require.Len(t, values, 3)

	assert.Equal(t, "Good", values[0].Quality)

	assert.Equal(t, "Plant.DoesNotExist", values[1].TagID)
	assert.Equal(t, "Error", values[1].Value)
	assert.True(t, strings.HasPrefix(values[1].Quality, "Bad — "))

	assert.Equal(t, "Plant.State", values[2].TagID)
	assert.Equal(t, "Good", values[2].Quality)
}

func TestReadAllItemsRejected(t *testing.T) {
	conn, server := simConnector()
	w := startWorker(t, conn)

	values, err := w.ReadTagValues(context.Background(), server, []string{"Nope.A", "Nope.B"})
	require.NoError(t, err)
	require.Len(t, values, 2)
	for _, v := range values {
		assert.Equal(t, "Error", v.Value)
		assert.True(t, strings.HasPrefix(v.Quality, "Bad — "))
	}
}

// groupTrackingServer wraps a sim session counting group lifecycle calls.
type groupTrackingServer struct {
	driver.Server
	added   int
	removed int
}

func (g *groupTrackingServer) AddGroup(opts driver.GroupOptions) (driver.Group, error) {
	g.added++
	return g.Server.AddGroup(opts)
}

func (g *groupTrackingServer) RemoveGroup(handle driver.GroupHandle, force bool) error {
	g.removed++
	return g.Server.RemoveGroup(handle, force)
}

func trackingWorker(t *testing.T) (*Worker, *groupTrackingServer) {
	t.Helper()

	simConn, _ := simConnector()
	sess, err := simConn.Connect("Sim.Server.1")
	require.NoError(t, err)

	tracking := &groupTrackingServer{Server: sess}
	w := startWorker(t, singleServerConnector(tracking))

	return w, tracking
}

func TestReadRemovesGroupExactlyOnce(t *testing.T) {
	w, tracking := trackingWorker(t)

	_, err := w.ReadTagValues(context.Background(), "Sim.Server.1", []string{"Plant.Temp"})
	require.NoError(t, err)
	assert.Equal(t, 1, tracking.added)
	assert.Equal(t, 1, tracking.removed)
}

func TestReadRemovesGroupWhenEverythingRejected(t *testing.T) {
	w, tracking := trackingWorker(t)

	_, err := w.ReadTagValues(context.Background(), "Sim.Server.1", []string{"Missing.Tag"})
	require.NoError(t, err)
	assert.Equal(t, 1, tracking.added)
	assert.Equal(t, 1, tracking.removed)
}

func TestWriteSuccess(t *testing.T) {
	conn, server := simConnector()
	w := startWorker(t, conn)
	ctx := context.Background()

	result, err := w.WriteTagValue(ctx, server, "Plant.Temp", types.FloatValue(25.0))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Plant.Temp", result.TagID)
	assert.Empty(t, result.Error)

	values, err := w.ReadTagValues(ctx, server, []string{"Plant.Temp"})
	require.NoError(t, err)
	assert.Equal(t, "25.00", values[0].Value)
}

func TestWriteReadOnlyTagFails(t *testing.T) {
	w, tracking := trackingWorker(t)

	result, err := w.WriteTagValue(context.Background(), "Sim.Server.1", "Plant.State", types.StringValue("busy"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "0xC0040004")
	assert.Equal(t, 1, tracking.removed)
}

func TestWriteUnknownTagReportsRegistrationFailure(t *testing.T) {
	w, tracking := trackingWorker(t)

	result, err := w.WriteTagValue(context.Background(), "Sim.Server.1", "No.Such.Tag", types.IntValue(1))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Error, "Failed to add tag: "))
	assert.Equal(t, 1, tracking.removed)
}

func TestFaultReasonIncludesHint(t *testing.T) {
	reason := faultReason(types.NewFault("op", types.FaultAccessDenied))
	assert.Contains(t, reason, "0x80070005")
	assert.Contains(t, reason, "DCOM")

	plain := faultReason(errors.New("boom"))
	assert.Equal(t, "boom", plain)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "N/A", formatTimestamp(time.Time{}))
}
