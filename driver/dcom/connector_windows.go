//go:build windows

package dcom

import (
	"fmt"
	"sort"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

var (
	modole32              = syscall.NewLazyDLL("ole32.dll")
	procCoCreateInstance  = modole32.NewProc("CoCreateInstance")
	procCoCreateInstanceEx = modole32.NewProc("CoCreateInstanceEx")
)

const (
	clsctxLocalServer  = 0x4
	clsctxRemoteServer = 0x10
	clsctxServer       = clsctxLocalServer | clsctxRemoteServer
)

// coServerInfo mirrors COSERVERINFO.
type coServerInfo struct {
	reserved1 uint32
	name      *uint16
	authInfo  uintptr
	reserved2 uint32
}

// multiQI mirrors MULTI_QI.
type multiQI struct {
	iid *ole.GUID
	itf *ole.IUnknown
	hr  int32
}

// Connector opens DCOM sessions to OPC DA servers.
type Connector struct {
	cfg config
}

// Compile-time assertions for the capabilities the dispatcher relies on.
var (
	_ driver.Connector         = (*Connector)(nil)
	_ driver.ThreadInitializer = (*Connector)(nil)
)

// NewConnector creates a DCOM connector.
func NewConnector(opts ...Option) (driver.Connector, error) {
	cfg := config{version: DA20}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Connector{cfg: cfg}, nil
}

// InitThread joins the COM multi-threaded apartment on the calling thread.
// S_FALSE (already initialized) counts as success and is still balanced with
// a CoUninitialize.
func (c *Connector) InitThread() (func(), error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		oleErr, ok := err.(*ole.OleError)
		if !ok || oleErr.Code() != 0x00000001 { // S_FALSE: already initialized
			return nil, fmt.Errorf("dcom: CoInitializeEx: %w", err)
		}
	}

	return ole.CoUninitialize, nil
}

// createInstance activates a COM class locally or, when a host is configured,
// on the remote machine.
func (c *Connector) createInstance(clsid, iid *ole.GUID, op string) (*ole.IUnknown, error) {
	if c.cfg.host == "" {
		var unknown *ole.IUnknown
		hr, _, _ := procCoCreateInstance.Call(
			uintptr(unsafe.Pointer(clsid)),
			0,
			clsctxServer,
			uintptr(unsafe.Pointer(iid)),
			uintptr(unsafe.Pointer(&unknown)),
		)
		if hr != 0 {
			return nil, types.NewFault(op, uint32(hr))
		}

		return unknown, nil
	}

	hostW, err := syscall.UTF16PtrFromString(c.cfg.host)
	if err != nil {
		return nil, fmt.Errorf("dcom: host name: %w", err)
	}
	info := coServerInfo{name: hostW}
	qi := multiQI{iid: iid}
	hr, _, _ := procCoCreateInstanceEx.Call(
		uintptr(unsafe.Pointer(clsid)),
		0,
		clsctxRemoteServer,
		uintptr(unsafe.Pointer(&info)),
		1,
		uintptr(unsafe.Pointer(&qi)),
	)
	if hr != 0 {
		return nil, types.NewFault(op+" on "+c.cfg.host, uint32(hr))
	}
	if qi.hr != 0 {
		return nil, types.NewFault(op+" on "+c.cfg.host, uint32(qi.hr))
	}

	return qi.itf, nil
}

// iopcServerListVtbl is the IOPCServerList layout past IUnknown.
type iopcServerListVtbl struct {
	ole.IUnknownVtbl
	EnumClassesOfCategories uintptr
	GetClassDetails         uintptr
	CLSIDFromProgID         uintptr
}

// iEnumGUIDVtbl is the IEnumGUID layout past IUnknown.
type iEnumGUIDVtbl struct {
	ole.IUnknownVtbl
	Next  uintptr
	Skip  uintptr
	Reset uintptr
	Clone uintptr
}

// EnumerateServers lists the ProgIDs of servers registered under the
// configured DA component category, sorted.
func (c *Connector) EnumerateServers() ([]string, error) {
	list, err := c.createInstance(clsidOPCServerList, iidIOPCServerList, "create server list")
	if err != nil {
		return nil, err
	}
	defer list.Release()

	vtbl := (*iopcServerListVtbl)(unsafe.Pointer(list.RawVTable))
	catid := catalogFor(c.cfg.version)

	var enum *ole.IUnknown
	hr, _, _ := syscall.SyscallN(vtbl.EnumClassesOfCategories,
		uintptr(unsafe.Pointer(list)),
		1, uintptr(unsafe.Pointer(catid)),
		0, 0,
		uintptr(unsafe.Pointer(&enum)),
	)
	if hr != 0 {
		return nil, types.NewFault("enumerate server classes", uint32(hr))
	}
	defer enum.Release()

	enumVtbl := (*iEnumGUIDVtbl)(unsafe.Pointer(enum.RawVTable))

	var servers []string
	for {
		var clsid ole.GUID
		var fetched uint32
		hr, _, _ := syscall.SyscallN(enumVtbl.Next,
			uintptr(unsafe.Pointer(enum)),
			1,
			uintptr(unsafe.Pointer(&clsid)),
			uintptr(unsafe.Pointer(&fetched)),
		)
		if hr != 0 || fetched == 0 {
			break
		}

		progID, err := c.classProgID(list, vtbl, &clsid)
		if err != nil {
			// A stale registration should not sink the whole enumeration.
			continue
		}
		servers = append(servers, progID)
	}
	sort.Strings(servers)

	return servers, nil
}

// classProgID resolves a server CLSID to its ProgID via GetClassDetails.
func (c *Connector) classProgID(list *ole.IUnknown, vtbl *iopcServerListVtbl, clsid *ole.GUID) (string, error) {
	var progID, userType *uint16
	hr, _, _ := syscall.SyscallN(vtbl.GetClassDetails,
		uintptr(unsafe.Pointer(list)),
		uintptr(unsafe.Pointer(clsid)),
		uintptr(unsafe.Pointer(&progID)),
		uintptr(unsafe.Pointer(&userType)),
	)
	if hr != 0 {
		return "", types.NewFault("get class details", uint32(hr))
	}
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(progID)))
	defer ole.CoTaskMemFree(uintptr(unsafe.Pointer(userType)))

	return ole.LpOleStrToString(progID), nil
}

// Connect activates the named server and binds its browse interface.
func (c *Connector) Connect(serverName string) (driver.Server, error) {
	list, err := c.createInstance(clsidOPCServerList, iidIOPCServerList, "create server list")
	if err != nil {
		return nil, err
	}
	defer list.Release()

	vtbl := (*iopcServerListVtbl)(unsafe.Pointer(list.RawVTable))
	nameW, err := syscall.UTF16PtrFromString(serverName)
	if err != nil {
		return nil, fmt.Errorf("dcom: server name: %w", err)
	}

	var clsid ole.GUID
	hr, _, _ := syscall.SyscallN(vtbl.CLSIDFromProgID,
		uintptr(unsafe.Pointer(list)),
		uintptr(unsafe.Pointer(nameW)),
		uintptr(unsafe.Pointer(&clsid)),
	)
	if hr != 0 {
		return nil, types.NewFault("resolve "+serverName, uint32(hr))
	}

	unknown, err := c.createInstance(&clsid, iidIOPCServer, "connect "+serverName)
	if err != nil {
		return nil, err
	}

	srv := &Server{name: serverName, server: unknown}
	if err := srv.bindBrowse(); err != nil {
		unknown.Release()
		return nil, err
	}

	return srv, nil
}
