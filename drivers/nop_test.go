package drivers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/hound/internal/interfaces"
)

func TestNopDriverAdvertisesTwoInertDataIDs(t *testing.T) {
	d := &NopDriver{}
	descs, err := d.DataDesc()
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, NOP1, descs[0].DataID)
	assert.Equal(t, NOP2, descs[1].DataID)
}

func TestNopDriverNeverEmitsRecords(t *testing.T) {
	d := &NopDriver{}
	h := &capturingHandle{}

	require.NoError(t, d.Init("/dev/nop", nil))
	fd, err := d.Start(h)
	require.NoError(t, err)
	assert.Equal(t, -1, fd)

	require.NoError(t, d.Next(h, NOP1))
	require.NoError(t, d.Next(h, NOP2))
	require.NoError(t, d.Stop(h))
	require.NoError(t, d.Destroy())

	assert.Empty(t, h.pushed)
}
