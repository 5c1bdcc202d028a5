// Package opcda is an OPC DA client engine with a single-threaded session
// dispatcher, cached connections, and bounded namespace browsing.
//
// OPC DA servers are driven over COM, and COM sessions are thread-affine:
// every call must come from the OS thread that created the session. The
// engine hides that constraint behind a dispatcher goroutine locked to its
// thread; callers use the Client from any goroutine.
//
// Basic usage:
//
//	client, err := opcda.NewClient(connector)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	servers, err := client.ListServers(ctx)
//	result, err := client.BrowseTags(ctx, servers[0])
//	values, err := client.ReadTagValues(ctx, servers[0], result.Tags)
//
// The connector decides the transport. driver/sim provides an in-memory
// backend for tests and development; driver/dcom connects to real servers on
// Windows hosts.
//
// Operations are bounded by per-call timeouts. A browse that times out is not
// lost: discovered tags are streamed into a progress sink as they are found,
// and the client returns the harvested partial result.
package opcda
