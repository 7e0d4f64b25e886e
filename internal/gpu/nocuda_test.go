//go:build !cuda

package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrv0/spmv/internal/accel"
)

func TestOpenWithoutCUDA(t *testing.T) {
	assert.False(t, Available())
	assert.Zero(t, DeviceCount())
	_, err := accel.Open(accel.Config{Type: accel.GPU})
	var rerr *accel.ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrUnavailable)
}
