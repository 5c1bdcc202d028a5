//go:build !windows

package dcom

import (
	"fmt"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

// NewConnector fails on non-Windows platforms; COM/DCOM transport needs the
// Windows COM runtime. Use driver/sim for development elsewhere.
func NewConnector(opts ...Option) (driver.Connector, error) {
	return nil, fmt.Errorf("dcom: COM transport on this platform: %w", types.ErrNotSupported)
}
