// Package dcom connects to OPC DA servers over COM/DCOM using go-ole.
//
// The binding targets the classic custom (non-automation) OPC DA interfaces:
// IOPCServer, IOPCBrowseServerAddressSpace, IOPCItemMgt and IOPCSyncIO, with
// server discovery through the OPC Server List component (OPC.ServerList.1)
// and the DA 1.0/2.0/3.0 component categories.
//
// Sessions are thread-affine. The connector implements driver.ThreadInitializer
// by joining the COM multi-threaded apartment; the engine's dispatcher calls
// it on its locked thread, and all session calls must stay on that thread.
//
// The implementation is only built on Windows. On other platforms NewConnector
// fails with an error wrapping types.ErrNotSupported, which lets commands and
// examples select a backend at runtime without build-tag gymnastics.
package dcom
