package driver

import (
	"iter"
	"time"

	"github.com/wends155/opc-cli-sub000/types"
)

// Organization is a server's namespace shape.
type Organization int

// Namespace organizations.
const (
	// OrganizationFlat means all items live directly under the root; no
	// branch traversal is needed or possible.
	OrganizationFlat Organization = iota + 1

	// OrganizationHierarchical means items are arranged in a branch/leaf tree
	// navigated with ChangeBrowsePosition.
	OrganizationHierarchical
)

// String returns the organization name for logging.
func (o Organization) String() string {
	switch o {
	case OrganizationFlat:
		return "flat"
	case OrganizationHierarchical:
		return "hierarchical"
	}

	return "unknown"
}

// BrowseType selects what BrowseItemIDs enumerates at the current position.
type BrowseType int

// Browse types.
const (
	// BrowseBranch enumerates the names of immediate child branches.
	BrowseBranch BrowseType = iota + 1

	// BrowseLeaf enumerates the names of immediate leaf items.
	BrowseLeaf

	// BrowseFlat enumerates every fully qualified item ID under the current
	// position in one pass. Optional: servers that do not support it return
	// an error wrapping types.ErrNotSupported.
	BrowseFlat
)

// Direction selects how ChangeBrowsePosition moves.
type Direction int

// Browse directions.
const (
	// BrowseUp moves to the parent of the current position. The name
	// argument is ignored.
	BrowseUp Direction = iota + 1

	// BrowseDown moves into the named child branch.
	BrowseDown
)

// DataSource selects where a read is served from.
type DataSource int

// Data sources.
const (
	// SourceCache reads the server's cached value.
	SourceCache DataSource = iota + 1

	// SourceDevice forces a read from the underlying device.
	SourceDevice
)

// GroupHandle is a server-assigned integer identifying a group.
type GroupHandle uint32

// ItemHandle is a server-assigned integer identifying one registered item
// within a group. Valid only for that group's lifetime.
type ItemHandle uint32

// GroupOptions configures a new group.
type GroupOptions struct {
	// Name is the group name; purely informational on most servers.
	Name string

	// Active controls whether the server keeps the group's items current.
	Active bool

	// UpdateRateMS is the requested update rate in milliseconds. The server
	// may revise it; see Group.RevisedUpdateRateMS.
	UpdateRateMS uint32

	// ClientHandle is an opaque caller-chosen handle echoed in callbacks.
	ClientHandle GroupHandle

	// TimeBias is the group's time zone bias in minutes.
	TimeBias int32

	// PercentDeadband suppresses updates smaller than this percentage of the
	// item's range. Zero disables deadband filtering.
	PercentDeadband float32

	// LocaleID selects the locale for text conversions. Zero means the
	// server default.
	LocaleID uint32
}

// ItemDef describes one item to register in a group.
type ItemDef struct {
	// ItemID is the fully qualified tag identifier.
	ItemID string

	// AccessPath is an optional server-specific routing hint.
	AccessPath string

	// Active controls whether the server keeps this item current.
	Active bool

	// ClientHandle is echoed back in ItemState so results can be correlated
	// to request positions.
	ClientHandle uint32

	// RequestedType is the wire type to coerce values to; zero requests the
	// server's canonical type.
	RequestedType uint16
}

// ItemResult is the server's answer to registering one item.
type ItemResult struct {
	// ServerHandle identifies the registered item in later Read/Write calls.
	ServerHandle ItemHandle

	// CanonicalType is the server's native wire type for the item.
	CanonicalType uint16

	// AccessRights encodes readable/writable bits as reported by the server.
	AccessRights uint32
}

// ItemState is one item's value as returned by a read.
type ItemState struct {
	// ClientHandle correlates this state to the ItemDef that registered it.
	ClientHandle uint32

	// Value is the decoded process value.
	Value types.Value

	// Quality is the raw quality word.
	Quality types.Quality

	// Timestamp is the server-reported time of the last value change; the
	// zero time means the server reported none.
	Timestamp time.Time
}

// Connector enumerates and opens sessions to OPC DA servers.
//
// Implementations must be safe for concurrent use; the engine only ever calls
// them from its single worker goroutine, but tests may not.
type Connector interface {
	// EnumerateServers lists the ProgIDs of available servers on the local
	// machine, sorted and deduplicated.
	EnumerateServers() ([]string, error)

	// Connect opens a session to the named server.
	//
	// The returned Server is thread-affine: all subsequent calls must come
	// from the goroutine-locked thread that called Connect.
	Connect(serverName string) (Server, error)
}

// ThreadInitializer is an optional Connector capability for backends that
// need per-thread environment setup (e.g. joining a COM multi-threaded
// apartment). The engine's worker calls InitThread exactly once on its locked
// thread before any other driver call, and calls the returned release
// function when the worker shuts down.
type ThreadInitializer interface {
	InitThread() (release func(), err error)
}

// Server is a live, thread-affine session to one named server.
type Server interface {
	// QueryOrganization reports the namespace shape.
	QueryOrganization() (Organization, error)

	// BrowseItemIDs enumerates names at the current browse position.
	//
	// The returned sequence yields (name, nil) for each enumerated name and
	// (zero, err) for recoverable per-element enumeration faults; consumers
	// may skip faulted elements and continue. An error from BrowseItemIDs
	// itself means the enumeration could not be started at all.
	BrowseItemIDs(kind BrowseType, filter string) (iter.Seq2[string, error], error)

	// ChangeBrowsePosition moves the current browse position. For BrowseDown
	// the name selects the child branch; for BrowseUp it is ignored.
	ChangeBrowsePosition(dir Direction, name string) error

	// ItemID resolves a leaf browse name at the current position to its
	// fully qualified tag identifier.
	ItemID(browseName string) (string, error)

	// AddGroup creates a server-side group.
	AddGroup(opts GroupOptions) (Group, error)

	// RemoveGroup destroys the group identified by handle. With force set,
	// the server releases it even if references remain.
	RemoveGroup(handle GroupHandle, force bool) error
}

// Group is a server-side container batching items for read/write.
type Group interface {
	// ServerHandle returns the server-assigned handle, used with
	// Server.RemoveGroup.
	ServerHandle() GroupHandle

	// RevisedUpdateRateMS returns the update rate the server actually
	// granted, in milliseconds.
	RevisedUpdateRateMS() uint32

	// AddItems registers items. results and itemErrs are both aligned with
	// defs: itemErrs[i] == nil means defs[i] was accepted and results[i] is
	// valid; a non-nil itemErrs[i] is that item's registration fault. The
	// final error reports a whole-call failure (nothing registered).
	AddItems(defs []ItemDef) (results []ItemResult, itemErrs []error, err error)

	// Read reads the given items. states and itemErrs are aligned with
	// handles; a non-nil itemErrs[i] is that item's read fault and states[i]
	// is undefined. The final error reports a whole-call failure.
	Read(source DataSource, handles []ItemHandle) (states []ItemState, itemErrs []error, err error)

	// Write writes values[i] to handles[i]. itemErrs is aligned with
	// handles. The final error reports a whole-call failure.
	Write(handles []ItemHandle, values []types.Value) (itemErrs []error, err error)
}
