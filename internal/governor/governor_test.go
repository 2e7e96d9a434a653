//go:build linux

package governor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallRejectsNonPositive(t *testing.T) {
	_, err := Install(0)
	assert.ErrorIs(t, err, ErrLimitNotInstalled)

	_, err = Install(-1)
	assert.ErrorIs(t, err, ErrLimitNotInstalled)
}

func TestInstallAndReadBack(t *testing.T) {
	cur, err := Current()
	require.NoError(t, err)
	if !cur.Unlimited() || cur.Hard != infinity {
		t.Skip("address space already limited in this environment")
	}

	// Lowering the hard limit is irreversible for the test process; keep it
	// far above anything the tests allocate.
	const limit = int64(16) << 40
	lim, err := Install(limit)
	require.NoError(t, err)
	assert.Equal(t, uint64(limit), lim.Soft)
	assert.Equal(t, uint64(limit), lim.Hard)
	assert.Equal(t, "Set RAM-Limit to 16TiB (17592186044416 bytes)", lim.String())

	// Raising above the installed hard limit needs privileges we do not assume.
	again, err := Current()
	require.NoError(t, err)
	assert.Equal(t, lim, again)
}

func TestLimitString(t *testing.T) {
	assert.Equal(t, "Set RAM-Limit to unlimited", Limit{Soft: infinity, Hard: infinity}.String())
	assert.Equal(t, "Set RAM-Limit to 75GiB (80530636800 bytes)", Limit{Soft: 75 << 30, Hard: 75 << 30}.String())
}
