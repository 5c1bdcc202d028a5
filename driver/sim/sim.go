// Package sim provides an in-memory OPC DA backend for tests, examples, and
// development on hosts without a COM runtime.
//
// A simulated server is built from a Node tree describing its namespace.
// Values live in the leaves; reads and writes behave like a well-mannered DA
// 2.0 server, including per-item fault codes for unknown and read-only items.
package sim

import (
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

// Node is one position in a simulated namespace: a branch with children, or a
// leaf holding a value.
type Node struct {
	// Children maps branch/leaf names to child nodes. A node with no
	// children is a leaf.
	Children map[string]*Node

	// Value is the leaf's current value. Ignored for branches.
	Value types.Value

	// ReadOnly marks a leaf that rejects writes with OPC_E_BADRIGHTS.
	ReadOnly bool
}

// Branch builds a branch node from named children.
func Branch(children map[string]*Node) *Node {
	return &Node{Children: children}
}

// Leaf builds a leaf node holding the given value.
func Leaf(v types.Value) *Node {
	return &Node{Value: v}
}

// ReadOnlyLeaf builds a leaf that rejects writes.
func ReadOnlyLeaf(v types.Value) *Node {
	return &Node{Value: v, ReadOnly: true}
}

// ServerConfig describes one simulated server.
type ServerConfig struct {
	// Root is the namespace tree. Leaves directly under Root with a flat
	// organization are addressed by bare name; in a hierarchical namespace
	// item IDs are dot-joined paths.
	Root *Node

	// Organization reported by QueryOrganization. Defaults to hierarchical
	// when the zero value is left in place.
	Organization driver.Organization

	// SupportsFlatBrowse makes BrowseItemIDs(BrowseFlat) enumerate the whole
	// subtree in one pass, like DA servers that implement flat browsing of a
	// hierarchical space. When false the probe fails with
	// types.ErrNotSupported.
	SupportsFlatBrowse bool
}

// Connector is an in-memory driver.Connector over a set of named servers.
//
// Safe for concurrent use, though the engine only calls it from its worker.
type Connector struct {
	mu      sync.Mutex
	servers map[string]*ServerConfig
}

// Compile-time assertion that Connector implements driver.Connector.
var _ driver.Connector = (*Connector)(nil)

// NewConnector creates an empty connector.
func NewConnector() *Connector {
	return &Connector{servers: make(map[string]*ServerConfig)}
}

// AddServer registers a simulated server under the given ProgID.
func (c *Connector) AddServer(progID string, cfg ServerConfig) {
	if cfg.Organization == 0 {
		cfg.Organization = driver.OrganizationHierarchical
	}
	c.mu.Lock()
	c.servers[progID] = &cfg
	c.mu.Unlock()
}

// EnumerateServers lists registered ProgIDs, sorted.
func (c *Connector) EnumerateServers() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// Connect opens a session to the named server. Unknown names fail with the
// class-not-registered fault, matching what a real registry lookup reports.
func (c *Connector) Connect(serverName string) (driver.Server, error) {
	c.mu.Lock()
	cfg, ok := c.servers[serverName]
	c.mu.Unlock()

	if !ok {
		return nil, types.NewFault("connect "+serverName, types.FaultClassNotRegistered)
	}

	return &Server{cfg: cfg, position: nil}, nil
}

// Server is a simulated session. The browse position starts at the root.
type Server struct {
	cfg      *ServerConfig
	position []string // path of branch names from the root

	groups     map[driver.GroupHandle]*Group
	nextHandle driver.GroupHandle
}

// Compile-time assertion that Server implements driver.Server.
var _ driver.Server = (*Server)(nil)

// QueryOrganization reports the configured namespace shape.
func (s *Server) QueryOrganization() (driver.Organization, error) {
	return s.cfg.Organization, nil
}

// current resolves the node at the current browse position.
func (s *Server) current() (*Node, error) {
	node := s.cfg.Root
	for _, name := range s.position {
		child, ok := node.Children[name]
		if !ok {
			return nil, types.NewFault("resolve position "+name, types.FaultInvalidPointer)
		}
		node = child
	}

	return node, nil
}

func sortedNames(m map[string]*Node) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func namesSeq(names []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}

// BrowseItemIDs enumerates names at the current position.
func (s *Server) BrowseItemIDs(kind driver.BrowseType, _ string) (iter.Seq2[string, error], error) {
	node, err := s.current()
	if err != nil {
		return nil, err
	}

	switch kind {
	case driver.BrowseBranch:
		var branches []string
		for _, name := range sortedNames(node.Children) {
			if len(node.Children[name].Children) > 0 {
				branches = append(branches, name)
			}
		}

		return namesSeq(branches), nil

	case driver.BrowseLeaf:
		var leaves []string
		for _, name := range sortedNames(node.Children) {
			if len(node.Children[name].Children) == 0 {
				leaves = append(leaves, name)
			}
		}

		return namesSeq(leaves), nil

	case driver.BrowseFlat:
		if !s.cfg.SupportsFlatBrowse {
			return nil, fmt.Errorf("flat browse: %w", types.ErrNotSupported)
		}
		var all []string
		collectItemIDs(node, s.position, &all)

		return namesSeq(all), nil
	}

	return nil, fmt.Errorf("browse type %d: %w", kind, types.ErrNotSupported)
}

// collectItemIDs walks the subtree depth-first appending fully qualified IDs.
func collectItemIDs(node *Node, path []string, out *[]string) {
	for _, name := range sortedNames(node.Children) {
		child := node.Children[name]
		if len(child.Children) == 0 {
			*out = append(*out, joinItemID(append(path, name)))
		} else {
			collectItemIDs(child, append(path, name), out)
		}
	}
}

func joinItemID(path []string) string {
	return strings.Join(path, ".")
}

// ChangeBrowsePosition moves the browse position.
func (s *Server) ChangeBrowsePosition(dir driver.Direction, name string) error {
	switch dir {
	case driver.BrowseDown:
		node, err := s.current()
		if err != nil {
			return err
		}
		child, ok := node.Children[name]
		if !ok || len(child.Children) == 0 {
			return types.NewFault("browse down "+name, types.FaultItemUnknownID)
		}
		s.position = append(s.position, name)

		return nil

	case driver.BrowseUp:
		if len(s.position) == 0 {
			return types.NewFault("browse up", types.FaultInvalidPointer)
		}
		s.position = s.position[:len(s.position)-1]

		return nil
	}

	return fmt.Errorf("direction %d: %w", dir, types.ErrNotSupported)
}

// ItemID resolves a leaf browse name at the current position to its fully
// qualified dot-joined identifier.
func (s *Server) ItemID(browseName string) (string, error) {
	node, err := s.current()
	if err != nil {
		return "", err
	}
	if _, ok := node.Children[browseName]; !ok {
		return "", types.NewFault("item id "+browseName, types.FaultItemUnknownID)
	}

	return joinItemID(append(s.position, browseName)), nil
}

// lookup finds the leaf node for a fully qualified item ID.
func (s *Server) lookup(itemID string) (*Node, bool) {
	node := s.cfg.Root
	for _, part := range strings.Split(itemID, ".") {
		child, ok := node.Children[part]
		if !ok {
			return nil, false
		}
		node = child
	}
	if len(node.Children) > 0 {
		return nil, false // branch, not an item
	}

	return node, true
}

// AddGroup creates a simulated group.
func (s *Server) AddGroup(opts driver.GroupOptions) (driver.Group, error) {
	if s.groups == nil {
		s.groups = make(map[driver.GroupHandle]*Group)
	}
	s.nextHandle++
	g := &Group{
		server:      s,
		handle:      s.nextHandle,
		revisedRate: opts.UpdateRateMS,
	}
	s.groups[g.handle] = g

	return g, nil
}

// RemoveGroup destroys a group. Removing an unknown handle is a fault, which
// lets tests assert that cleanup runs exactly once.
func (s *Server) RemoveGroup(handle driver.GroupHandle, _ bool) error {
	if _, ok := s.groups[handle]; !ok {
		return types.NewFault(fmt.Sprintf("remove group %d", handle), types.FaultInvalidPointer)
	}
	delete(s.groups, handle)

	return nil
}

// GroupCount returns the number of live groups, for leak assertions in tests.
func (s *Server) GroupCount() int {
	return len(s.groups)
}

// Group is a simulated server-side group.
type Group struct {
	server      *Server
	handle      driver.GroupHandle
	revisedRate uint32

	items      map[driver.ItemHandle]string // handle -> item ID
	nextHandle driver.ItemHandle
}

// Compile-time assertion that Group implements driver.Group.
var _ driver.Group = (*Group)(nil)

// ServerHandle returns the server-assigned group handle.
func (g *Group) ServerHandle() driver.GroupHandle { return g.handle }

// RevisedUpdateRateMS returns the granted update rate.
func (g *Group) RevisedUpdateRateMS() uint32 { return g.revisedRate }

// AddItems registers items, rejecting unknown IDs per-item with
// OPC_E_UNKNOWNITEMID.
func (g *Group) AddItems(defs []driver.ItemDef) ([]driver.ItemResult, []error, error) {
	if g.items == nil {
		g.items = make(map[driver.ItemHandle]string)
	}

	results := make([]driver.ItemResult, len(defs))
	itemErrs := make([]error, len(defs))
	for i, def := range defs {
		if _, ok := g.server.lookup(def.ItemID); !ok {
			itemErrs[i] = types.NewFault("add item "+def.ItemID, types.FaultItemUnknownID)
			continue
		}
		g.nextHandle++
		g.items[g.nextHandle] = def.ItemID
		results[i] = driver.ItemResult{ServerHandle: g.nextHandle}
	}

	return results, itemErrs, nil
}

// Read returns the current value for each registered handle.
func (g *Group) Read(_ driver.DataSource, handles []driver.ItemHandle) ([]driver.ItemState, []error, error) {
	states := make([]driver.ItemState, len(handles))
	itemErrs := make([]error, len(handles))
	now := time.Now()

	for i, h := range handles {
		itemID, ok := g.items[h]
		if !ok {
			itemErrs[i] = types.NewFault(fmt.Sprintf("read handle %d", h), types.FaultInvalidPointer)
			continue
		}
		node, ok := g.server.lookup(itemID)
		if !ok {
			itemErrs[i] = types.NewFault("read "+itemID, types.FaultItemUnknownID)
			continue
		}
		states[i] = driver.ItemState{
			Value:     node.Value,
			Quality:   types.QualityGood,
			Timestamp: now,
		}
	}

	return states, itemErrs, nil
}

// Write stores values, rejecting read-only leaves per-item with
// OPC_E_BADRIGHTS.
func (g *Group) Write(handles []driver.ItemHandle, values []types.Value) ([]error, error) {
	if len(handles) != len(values) {
		return nil, fmt.Errorf("write: %d handles but %d values", len(handles), len(values))
	}

	itemErrs := make([]error, len(handles))
	for i, h := range handles {
		itemID, ok := g.items[h]
		if !ok {
			itemErrs[i] = types.NewFault(fmt.Sprintf("write handle %d", h), types.FaultInvalidPointer)
			continue
		}
		node, ok := g.server.lookup(itemID)
		if !ok {
			itemErrs[i] = types.NewFault("write "+itemID, types.FaultItemUnknownID)
			continue
		}
		if node.ReadOnly {
			itemErrs[i] = types.NewFault("write "+itemID, types.FaultItemBadRights)
			continue
		}
		node.Value = values[i]
	}

	return itemErrs, nil
}
