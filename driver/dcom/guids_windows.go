//go:build windows

package dcom

import ole "github.com/go-ole/go-ole"

// Well-known OPC class, category and interface identifiers. These are fixed
// by the OPC Foundation specs and identical on every installation.
var (
	// OPC Server List component (OPCEnum.exe), used for discovery.
	clsidOPCServerList = ole.NewGUID("{13486D51-4821-11D2-A494-3CB306C10000}")
	iidIOPCServerList  = ole.NewGUID("{13486D50-4821-11D2-A494-3CB306C10000}")

	// Component categories for the three DA generations.
	catidOPCDAServer10 = ole.NewGUID("{63D5F430-CFE4-11D1-B2C8-0060083BA1FB}")
	catidOPCDAServer20 = ole.NewGUID("{63D5F432-CFE4-11D1-B2C8-0060083BA1FB}")
	catidOPCDAServer30 = ole.NewGUID("{CC603642-66D7-48F1-B69A-B625E73652D7}")

	// Custom interfaces on a connected server.
	iidIOPCServer                   = ole.NewGUID("{39C13A4D-011E-11D0-9675-0020AFD8ADB3}")
	iidIOPCBrowseServerAddressSpace = ole.NewGUID("{39C13A4F-011E-11D0-9675-0020AFD8ADB3}")

	// Custom interfaces on a group.
	iidIOPCItemMgt = ole.NewGUID("{39C13A54-011E-11D0-9675-0020AFD8ADB3}")
	iidIOPCSyncIO  = ole.NewGUID("{39C13A52-011E-11D0-9675-0020AFD8ADB3}")
)

// catalogFor maps a DA generation to its component category.
func catalogFor(v DAVersion) *ole.GUID {
	switch v {
	case DA10:
		return catidOPCDAServer10
	case DA30:
		return catidOPCDAServer30
	default:
		return catidOPCDAServer20
	}
}

// Wire constants from the DA specs.
const (
	opcNSHierarchial = 1
	opcNSFlat        = 2

	opcBranch = 1
	opcLeaf   = 2
	opcFlat   = 3

	opcBrowseUp   = 1
	opcBrowseDown = 2

	opcDSCache  = 1
	opcDSDevice = 2
)
