//go:build windows

package dcom

import (
	"fmt"
	"iter"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

// iopcServerVtbl is the IOPCServer layout past IUnknown.
type iopcServerVtbl struct {
	ole.IUnknownVtbl
	AddGroup              uintptr
	GetErrorString        uintptr
	GetGroupByName        uintptr
	GetStatus             uintptr
	RemoveGroup           uintptr
	CreateGroupEnumerator uintptr
}

// iopcBrowseVtbl is the IOPCBrowseServerAddressSpace layout past IUnknown.
type iopcBrowseVtbl struct {
	ole.IUnknownVtbl
	QueryOrganization    uintptr
	ChangeBrowsePosition uintptr
	BrowseOPCItemIDs     uintptr
	GetItemID            uintptr
	BrowseAccessPaths    uintptr
}

// iEnumStringVtbl is the IEnumString layout past IUnknown.
type iEnumStringVtbl struct {
	ole.IUnknownVtbl
	Next  uintptr
	Skip  uintptr
	Reset uintptr
	Clone uintptr
}

// Server is a live DCOM session: the server's IOPCServer plus its browse
// interface. All calls must stay on the thread that connected.
type Server struct {
	name   string
	server *ole.IUnknown
	browse *ole.IUnknown
}

// Compile-time assertion that Server implements driver.Server.
var _ driver.Server = (*Server)(nil)

// bindBrowse queries the address space browser off the server object.
func (s *Server) bindBrowse() error {
	vtbl := (*ole.IUnknownVtbl)(unsafe.Pointer(s.server.RawVTable))

	var browse *ole.IUnknown
	hr, _, _ := syscall.SyscallN(vtbl.QueryInterface,
		uintptr(unsafe.Pointer(s.server)),
		uintptr(unsafe.Pointer(iidIOPCBrowseServerAddressSpace)),
		uintptr(unsafe.Pointer(&browse)),
	)
	if hr != 0 {
		return types.NewFault("query browse interface", uint32(hr))
	}
	s.browse = browse

	return nil
}

// Close releases the session's COM references. Called by the dispatcher when
// the session is evicted or the worker shuts down.
func (s *Server) Close() error {
	if s.browse != nil {
		s.browse.Release()
		s.browse = nil
	}
	if s.server != nil {
		s.server.Release()
		s.server = nil
	}

	return nil
}

func (s *Server) serverVtbl() *iopcServerVtbl {
	return (*iopcServerVtbl)(unsafe.Pointer(s.server.RawVTable))
}

func (s *Server) browseVtbl() *iopcBrowseVtbl {
	return (*iopcBrowseVtbl)(unsafe.Pointer(s.browse.RawVTable))
}

// QueryOrganization reports the namespace shape.
func (s *Server) QueryOrganization() (driver.Organization, error) {
	var ns uint32
	hr, _, _ := syscall.SyscallN(s.browseVtbl().QueryOrganization,
		uintptr(unsafe.Pointer(s.browse)),
		uintptr(unsafe.Pointer(&ns)),
	)
	if hr != 0 {
		return 0, types.NewFault("query organization", uint32(hr))
	}
	if ns == opcNSFlat {
		return driver.OrganizationFlat, nil
	}

	return driver.OrganizationHierarchical, nil
}

// BrowseItemIDs starts an enumeration at the current browse position.
//
// The returned sequence wraps the server's IEnumString and releases it when
// the consumer stops, so it must be fully consumed or abandoned on the
// dispatcher thread.
func (s *Server) BrowseItemIDs(kind driver.BrowseType, filter string) (iter.Seq2[string, error], error) {
	var browseType uintptr
	switch kind {
	case driver.BrowseBranch:
		browseType = opcBranch
	case driver.BrowseLeaf:
		browseType = opcLeaf
	case driver.BrowseFlat:
		browseType = opcFlat
	default:
		return nil, fmt.Errorf("dcom: browse type %d: %w", kind, types.ErrNotSupported)
	}

	filterW, err := syscall.UTF16PtrFromString(filter)
	if err != nil {
		return nil, fmt.Errorf("dcom: browse filter: %w", err)
	}

	var enum *ole.IUnknown
	hr, _, _ := syscall.SyscallN(s.browseVtbl().BrowseOPCItemIDs,
		uintptr(unsafe.Pointer(s.browse)),
		browseType,
		uintptr(unsafe.Pointer(filterW)),
		uintptr(ole.VT_EMPTY),
		0,
		uintptr(unsafe.Pointer(&enum)),
	)
	if hr != 0 {
		// Servers signal an unsupported flat browse with a failed HRESULT;
		// surface it as a capability gap so the engine can fall back.
		if kind == driver.BrowseFlat {
			return nil, fmt.Errorf("dcom: flat browse: 0x%08X: %w", uint32(hr), types.ErrNotSupported)
		}
		return nil, types.NewFault("browse item ids", uint32(hr))
	}

	return enumStrings(enum), nil
}

// enumStrings adapts an IEnumString to an iterator, one element per Next call.
func enumStrings(enum *ole.IUnknown) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer enum.Release()
		vtbl := (*iEnumStringVtbl)(unsafe.Pointer(enum.RawVTable))

		for {
			var item *uint16
			var fetched uint32
			hr, _, _ := syscall.SyscallN(vtbl.Next,
				uintptr(unsafe.Pointer(enum)),
				1,
				uintptr(unsafe.Pointer(&item)),
				uintptr(unsafe.Pointer(&fetched)),
			)
			if fetched == 0 {
				if hr != 0 && hr != 1 { // S_FALSE ends the enumeration
					yield("", types.NewFault("enumerate names", uint32(hr)))
				}
				return
			}
			name := ole.LpOleStrToString(item)
			ole.CoTaskMemFree(uintptr(unsafe.Pointer(item)))
			if !yield(name, nil) {
				return
			}
		}
	}
}

// ChangeBrowsePosition moves the browse position.
func (s *Server) ChangeBrowsePosition(dir driver.Direction, name string) error {
	direction := uintptr(opcBrowseUp)
	if dir == driver.BrowseDown {
		direction = opcBrowseDown
	}
	nameW, err := syscall.UTF16PtrFromString(name)
	if err != nil {
		return fmt.Errorf("dcom: branch name: %w", err)
	}

	hr, _, _ := syscall.SyscallN(s.browseVtbl().ChangeBrowsePosition,
		uintptr(unsafe.Pointer(s.browse)),
		direction,
		uintptr(unsafe.Pointer(nameW)),
	)
	if hr != 0 {
		return types.NewFault("change browse position", uint32(hr))
	}

	return nil
}

// ItemID resolves a browse name at the current position to a fully qualified
// identifier.
func (s *Server) ItemID(browseName string) (string, error) {
	nameW, err := syscall.UTF16PtrFromString(browseName)
	if err != nil {
		return "", fmt.Errorf("dcom: browse name: %w", err)
	}

	var itemID *uint16
	hr, _, _ := syscall.SyscallN(s.browseVtbl().GetItemID,
		uintptr(unsafe.Pointer(s.browse)),
		uintptr(unsafe.Pointer(nameW)),
		uintptr(unsafe.Pointer(&itemID)),
	)
	if hr != 0 {
		return "", types.NewFault("get item id", uint32(hr))
	}
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(itemID)))

	return ole.LpOleStrToString(itemID), nil
}

// AddGroup creates a server-side group and binds its item management and
// sync IO interfaces.
func (s *Server) AddGroup(opts driver.GroupOptions) (driver.Group, error) {
	nameW, err := syscall.UTF16PtrFromString(opts.Name)
	if err != nil {
		return nil, fmt.Errorf("dcom: group name: %w", err)
	}

	active := uintptr(0)
	if opts.Active {
		active = 1
	}
	timeBias := opts.TimeBias
	deadband := opts.PercentDeadband

	var serverHandle uint32
	var revisedRate uint32
	var unknown *ole.IUnknown
	hr, _, _ := syscall.SyscallN(s.serverVtbl().AddGroup,
		uintptr(unsafe.Pointer(s.server)),
		uintptr(unsafe.Pointer(nameW)),
		active,
		uintptr(opts.UpdateRateMS),
		uintptr(opts.ClientHandle),
		uintptr(unsafe.Pointer(&timeBias)),
		uintptr(unsafe.Pointer(&deadband)),
		uintptr(opts.LocaleID),
		uintptr(unsafe.Pointer(&serverHandle)),
		uintptr(unsafe.Pointer(&revisedRate)),
		uintptr(unsafe.Pointer(iidIOPCItemMgt)),
		uintptr(unsafe.Pointer(&unknown)),
	)
	if hr != 0 {
		return nil, types.NewFault("add group", uint32(hr))
	}

	g := &Group{handle: driver.GroupHandle(serverHandle), revisedRate: revisedRate, itemMgt: unknown}
	if err := g.bindSyncIO(); err != nil {
		unknown.Release()
		return nil, err
	}

	return g, nil
}

// RemoveGroup destroys a group.
func (s *Server) RemoveGroup(handle driver.GroupHandle, force bool) error {
	forceVal := uintptr(0)
	if force {
		forceVal = 1
	}
	hr, _, _ := syscall.SyscallN(s.serverVtbl().RemoveGroup,
		uintptr(unsafe.Pointer(s.server)),
		uintptr(handle),
		forceVal,
	)
	if hr != 0 {
		return types.NewFault("remove group", uint32(hr))
	}

	return nil
}
