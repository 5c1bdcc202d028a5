package worker

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

// timestampLayout renders server-reported value timestamps for display.
const timestampLayout = "2006-01-02 15:04:05"

// readTagValues performs one batch read through a throwaway group.
//
// The result always has len(tagIDs) entries in request order. Each slot
// starts as a registration-failure placeholder and is only upgraded when the
// item registers and reads successfully, so a tag failing at any stage keeps
// its position with a decoded reason instead of disappearing.
func readTagValues(s *state, sess driver.Server, tagIDs []string) ([]types.TagValue, error) {
	values := make([]types.TagValue, len(tagIDs))
	for i, id := range tagIDs {
		values[i] = types.TagValue{
			TagID:   id,
			Value:   "Error",
			Quality: "Bad — not added to group",
		}
	}

	group, err := sess.AddGroup(driver.GroupOptions{
		Name:         readGroupName,
		Active:       true,
		UpdateRateMS: groupUpdateRateMS,
	})
	if err != nil {
		return nil, fmt.Errorf("add read group: %w", err)
	}
	defer removeGroup(s, sess, group, "read_tag_values")

	defs := make([]driver.ItemDef, len(tagIDs))
	for i, id := range tagIDs {
		defs[i] = driver.ItemDef{ItemID: id, Active: true, ClientHandle: uint32(i)}
	}
	results, itemErrs, err := group.AddItems(defs)
	if err != nil {
		return nil, fmt.Errorf("add items: %w", err)
	}

	// Partition into accepted and rejected; rejected slots keep their
	// placeholder with the rejection reason folded into the quality.
	handles := make([]driver.ItemHandle, 0, len(tagIDs))
	accepted := make([]int, 0, len(tagIDs))
	for i := range defs {
		if itemErrs[i] != nil {
			s.logger.Warn("item registration rejected",
				"tag", tagIDs[i], "error", itemErrs[i])
			values[i].Quality = "Bad — " + faultReason(itemErrs[i])
			continue
		}
		handles = append(handles, results[i].ServerHandle)
		accepted = append(accepted, i)
	}

	if len(handles) == 0 {
		return values, nil
	}

	states, readErrs, err := group.Read(driver.SourceDevice, handles)
	if err != nil {
		return nil, fmt.Errorf("device read: %w", err)
	}

	for j, i := range accepted {
		if readErrs[j] != nil {
			s.logger.Warn("per-item read failed",
				"tag", tagIDs[i], "error", readErrs[j])
			values[i].Quality = "Bad — " + faultReason(readErrs[j])
			continue
		}
		st := states[j]
		values[i] = types.TagValue{
			TagID:     tagIDs[i],
			Value:     st.Value.String(),
			Quality:   st.Quality.String(),
			Timestamp: formatTimestamp(st.Timestamp),
		}
	}

	return values, nil
}

// writeTagValue writes one value to one tag through a throwaway group.
//
// A per-item rejection, at registration or at write, produces a failed
// WriteResult rather than an error; errors are reserved for faults of the
// call itself.
func writeTagValue(s *state, sess driver.Server, tagID string, value types.Value) (types.WriteResult, error) {
	group, err := sess.AddGroup(driver.GroupOptions{
		Name:         writeGroupName,
		Active:       true,
		UpdateRateMS: groupUpdateRateMS,
	})
	if err != nil {
		return types.WriteResult{}, fmt.Errorf("add write group: %w", err)
	}
	defer removeGroup(s, sess, group, "write_tag_value")

	results, itemErrs, err := group.AddItems([]driver.ItemDef{{ItemID: tagID, Active: true}})
	if err != nil {
		return types.WriteResult{}, fmt.Errorf("add item: %w", err)
	}
	if len(results) == 0 || len(itemErrs) == 0 {
		return types.WriteResult{}, fmt.Errorf("add item: server returned empty results")
	}
	if itemErrs[0] != nil {
		s.logger.Warn("write target registration rejected",
			"tag", tagID, "error", itemErrs[0])
		return types.WriteResult{
			TagID: tagID,
			Error: "Failed to add tag: " + faultReason(itemErrs[0]),
		}, nil
	}

	writeErrs, err := group.Write(
		[]driver.ItemHandle{results[0].ServerHandle},
		[]types.Value{value},
	)
	if err != nil {
		return types.WriteResult{}, fmt.Errorf("write: %w", err)
	}
	if len(writeErrs) == 0 {
		return types.WriteResult{}, fmt.Errorf("write: server returned empty errors")
	}
	if writeErrs[0] != nil {
		s.logger.Warn("server rejected write", "tag", tagID, "error", writeErrs[0])
		return types.WriteResult{TagID: tagID, Error: faultReason(writeErrs[0])}, nil
	}

	s.logger.Info("write completed", "tag", tagID)

	return types.WriteResult{TagID: tagID, Success: true}, nil
}

// removeGroup tears down a throwaway group, logging instead of failing; the
// operation's result is already decided by the time cleanup runs.
func removeGroup(s *state, sess driver.Server, group driver.Group, opName string) {
	if c, ok := group.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("group release failed", "op", opName, "error", err)
		}
	}
	if err := sess.RemoveGroup(group.ServerHandle(), true); err != nil {
		s.logger.Warn("group cleanup failed", "op", opName, "error", err)
	}
}

// faultReason renders a per-item fault for embedding in result fields: the
// raw code with its hint when the fault carries one, the plain error text
// otherwise.
func faultReason(err error) string {
	var fe *types.FaultError
	if errors.As(err, &fe) {
		return types.FormatFault(fe.Code)
	}

	return err.Error()
}

// formatTimestamp renders a server timestamp, with "N/A" for the zero time
// servers report when they have none.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}

	return t.Local().Format(timestampLayout)
}
