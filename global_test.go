package stagebuf

import (
	"testing"

	"github.com/hpcio/stagebuf/accel"
	"github.com/stretchr/testify/require"
)

func TestDefaultPoolLifecycle(t *testing.T) {
	require.NoError(t, Configure(nil, CreateOptions{PageSize: 4096, Runtime: accel.NewMock()}))
	require.NotNil(t, Default())

	require.NoError(t, Init())

	// Reconfiguring a live default pool is refused.
	require.Error(t, Configure(nil, CreateOptions{}))

	ptr, err := Alloc(nil, 128)
	require.NoError(t, err)
	require.NotNil(t, ptr)

	isGPU, isManaged := CheckGPUBuffer(nil, ptr)
	require.False(t, isGPU)
	require.False(t, isManaged)

	Release(nil, ptr)
	require.NoError(t, Finalize())
	require.NoError(t, Finalize())

	// After teardown the default pool can be reconfigured.
	require.NoError(t, Configure(nil, CreateOptions{PageSize: 4096}))
}
