package dcom

// DAVersion selects which OPC DA component category servers are enumerated
// from. Later versions are supersets at the interface level used here, so the
// version mostly matters for discovery.
type DAVersion int

// Supported OPC DA generations.
const (
	DA10 DAVersion = iota + 1
	DA20
	DA30
)

// String returns the version name for logging.
func (v DAVersion) String() string {
	switch v {
	case DA10:
		return "1.0"
	case DA20:
		return "2.0"
	case DA30:
		return "3.0"
	}

	return "unknown"
}

// config holds connector configuration.
type config struct {
	host    string
	version DAVersion
}

// Option configures the connector.
type Option func(*config)

// WithHost targets a remote machine. Server enumeration and activation go
// through DCOM to that host instead of the local registry. The empty default
// means local machine.
func WithHost(host string) Option {
	return func(c *config) {
		c.host = host
	}
}

// WithDAVersion selects the component category to enumerate servers from.
// Default is DA 2.0, the generation virtually every deployed server
// implements.
func WithDAVersion(v DAVersion) Option {
	return func(c *config) {
		c.version = v
	}
}
