//go:build windows

package dcom

import (
	"fmt"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

// iopcItemMgtVtbl is the IOPCItemMgt layout past IUnknown.
type iopcItemMgtVtbl struct {
	ole.IUnknownVtbl
	AddItems         uintptr
	ValidateItems    uintptr
	RemoveItems      uintptr
	SetActiveState   uintptr
	SetClientHandles uintptr
	SetDatatypes     uintptr
	CreateEnumerator uintptr
}

// iopcSyncIOVtbl is the IOPCSyncIO layout past IUnknown.
type iopcSyncIOVtbl struct {
	ole.IUnknownVtbl
	Read  uintptr
	Write uintptr
}

// opcItemDef mirrors tagOPCITEMDEF.
type opcItemDef struct {
	accessPath      *uint16
	itemID          *uint16
	active          int32
	clientHandle    uint32
	blobSize        uint32
	blob            *byte
	requestedType   uint16
	reserved        uint16
}

// opcItemResult mirrors tagOPCITEMRESULT.
type opcItemResult struct {
	serverHandle  uint32
	canonicalType uint16
	reserved      uint16
	accessRights  uint32
	blobSize      uint32
	blob          *byte
}

// fileTime mirrors FILETIME.
type fileTime struct {
	low  uint32
	high uint32
}

// opcItemState mirrors tagOPCITEMSTATE.
type opcItemState struct {
	clientHandle uint32
	timestamp    fileTime
	value        ole.VARIANT
	quality      uint16
	reserved     uint16
}

// Group is a server-side group bound through IOPCItemMgt and IOPCSyncIO.
type Group struct {
	handle      driver.GroupHandle
	revisedRate uint32
	itemMgt     *ole.IUnknown
	syncIO      *ole.IUnknown
}

// Compile-time assertion that Group implements driver.Group.
var _ driver.Group = (*Group)(nil)

// bindSyncIO queries the sync IO interface off the group object.
func (g *Group) bindSyncIO() error {
	vtbl := (*ole.IUnknownVtbl)(unsafe.Pointer(g.itemMgt.RawVTable))

	var syncIO *ole.IUnknown
	hr, _, _ := syscall.SyscallN(vtbl.QueryInterface,
		uintptr(unsafe.Pointer(g.itemMgt)),
		uintptr(unsafe.Pointer(iidIOPCSyncIO)),
		uintptr(unsafe.Pointer(&syncIO)),
	)
	if hr != 0 {
		return types.NewFault("query sync io interface", uint32(hr))
	}
	g.syncIO = syncIO

	return nil
}

// ServerHandle returns the server-assigned group handle.
func (g *Group) ServerHandle() driver.GroupHandle { return g.handle }

// RevisedUpdateRateMS returns the granted update rate.
func (g *Group) RevisedUpdateRateMS() uint32 { return g.revisedRate }

func (g *Group) itemMgtVtbl() *iopcItemMgtVtbl {
	return (*iopcItemMgtVtbl)(unsafe.Pointer(g.itemMgt.RawVTable))
}

func (g *Group) syncIOVtbl() *iopcSyncIOVtbl {
	return (*iopcSyncIOVtbl)(unsafe.Pointer(g.syncIO.RawVTable))
}

// AddItems registers items with the group.
func (g *Group) AddItems(defs []driver.ItemDef) ([]driver.ItemResult, []error, error) {
	if len(defs) == 0 {
		return nil, nil, nil
	}

	// Keep UTF-16 buffers alive across the call.
	itemIDs := make([]*uint16, len(defs))
	wireDefs := make([]opcItemDef, len(defs))
	for i, def := range defs {
		idW, err := syscall.UTF16PtrFromString(def.ItemID)
		if err != nil {
			return nil, nil, fmt.Errorf("dcom: item id %q: %w", def.ItemID, err)
		}
		itemIDs[i] = idW

		active := int32(0)
		if def.Active {
			active = 1
		}
		wireDefs[i] = opcItemDef{
			itemID:        idW,
			active:        active,
			clientHandle:  def.ClientHandle,
			requestedType: def.RequestedType,
		}
	}

	var resultsPtr *opcItemResult
	var errorsPtr *int32
	hr, _, _ := syscall.SyscallN(g.itemMgtVtbl().AddItems,
		uintptr(unsafe.Pointer(g.itemMgt)),
		uintptr(len(defs)),
		uintptr(unsafe.Pointer(&wireDefs[0])),
		uintptr(unsafe.Pointer(&resultsPtr)),
		uintptr(unsafe.Pointer(&errorsPtr)),
	)
	if hr != 0 {
		return nil, nil, types.NewFault("add items", uint32(hr))
	}
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(resultsPtr)))
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(errorsPtr)))

	wireResults := unsafe.Slice(resultsPtr, len(defs))
	wireErrors := unsafe.Slice(errorsPtr, len(defs))

	results := make([]driver.ItemResult, len(defs))
	itemErrs := make([]error, len(defs))
	for i := range defs {
		if wireErrors[i] != 0 {
			itemErrs[i] = types.NewFault("add item "+defs[i].ItemID, uint32(wireErrors[i]))
			continue
		}
		results[i] = driver.ItemResult{
			ServerHandle:  driver.ItemHandle(wireResults[i].serverHandle),
			CanonicalType: wireResults[i].canonicalType,
			AccessRights:  wireResults[i].accessRights,
		}
		if wireResults[i].blob != nil {
			ole.CoTaskMemFree(uintptr(unsafe.Pointer(wireResults[i].blob)))
		}
	}

	return results, itemErrs, nil
}

// Read performs a synchronous read of the given items.
func (g *Group) Read(source driver.DataSource, handles []driver.ItemHandle) ([]driver.ItemState, []error, error) {
	if len(handles) == 0 {
		return nil, nil, nil
	}

	src := uintptr(opcDSCache)
	if source == driver.SourceDevice {
		src = opcDSDevice
	}

	wireHandles := make([]uint32, len(handles))
	for i, h := range handles {
		wireHandles[i] = uint32(h)
	}

	var statesPtr *opcItemState
	var errorsPtr *int32
	hr, _, _ := syscall.SyscallN(g.syncIOVtbl().Read,
		uintptr(unsafe.Pointer(g.syncIO)),
		src,
		uintptr(len(handles)),
		uintptr(unsafe.Pointer(&wireHandles[0])),
		uintptr(unsafe.Pointer(&statesPtr)),
		uintptr(unsafe.Pointer(&errorsPtr)),
	)
	if hr != 0 {
		return nil, nil, types.NewFault("sync read", uint32(hr))
	}
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(statesPtr)))
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(errorsPtr)))

	wireStates := unsafe.Slice(statesPtr, len(handles))
	wireErrors := unsafe.Slice(errorsPtr, len(handles))

	states := make([]driver.ItemState, len(handles))
	itemErrs := make([]error, len(handles))
	for i := range handles {
		if wireErrors[i] != 0 {
			itemErrs[i] = types.NewFault("read item", uint32(wireErrors[i]))
			continue
		}
		states[i] = driver.ItemState{
			ClientHandle: wireStates[i].clientHandle,
			Value:        variantToValue(&wireStates[i].value),
			Quality:      types.Quality(wireStates[i].quality),
			Timestamp:    fileTimeToTime(wireStates[i].timestamp),
		}
		ole.VariantClear(&wireStates[i].value)
	}

	return states, itemErrs, nil
}

// Write performs a synchronous write of values to items.
func (g *Group) Write(handles []driver.ItemHandle, values []types.Value) ([]error, error) {
	if len(handles) != len(values) {
		return nil, fmt.Errorf("dcom: %d handles but %d values", len(handles), len(values))
	}
	if len(handles) == 0 {
		return nil, nil
	}

	wireHandles := make([]uint32, len(handles))
	for i, h := range handles {
		wireHandles[i] = uint32(h)
	}

	variants := make([]ole.VARIANT, len(values))
	for i := range values {
		v, err := valueToVariant(values[i])
		if err != nil {
			return nil, err
		}
		variants[i] = v
	}
	defer func() {
		for i := range variants {
			ole.VariantClear(&variants[i])
		}
	}()

	var errorsPtr *int32
	hr, _, _ := syscall.SyscallN(g.syncIOVtbl().Write,
		uintptr(unsafe.Pointer(g.syncIO)),
		uintptr(len(handles)),
		uintptr(unsafe.Pointer(&wireHandles[0])),
		uintptr(unsafe.Pointer(&variants[0])),
		uintptr(unsafe.Pointer(&errorsPtr)),
	)
	if hr != 0 {
		return nil, types.NewFault("sync write", uint32(hr))
	}
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(errorsPtr)))

	wireErrors := unsafe.Slice(errorsPtr, len(handles))
	itemErrs := make([]error, len(handles))
	for i := range handles {
		if wireErrors[i] != 0 {
			itemErrs[i] = types.NewFault("write item", uint32(wireErrors[i]))
		}
	}

	return itemErrs, nil
}

// Close releases the group's COM references.
func (g *Group) Close() error {
	if g.syncIO != nil {
		g.syncIO.Release()
		g.syncIO = nil
	}
	if g.itemMgt != nil {
		g.itemMgt.Release()
		g.itemMgt = nil
	}

	return nil
}
