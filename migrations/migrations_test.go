package migrations

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OrderedAndContiguous(t *testing.T) {
	ms, err := Load()
	require.NoError(t, err)
	require.Len(t, ms, 3)

	for i, m := range ms {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.SQL)
	}
	assert.Contains(t, ms[0].SQL, "CREATE TABLE IF NOT EXISTS products")
	assert.Contains(t, ms[1].SQL, "product_sku_reactivations")
	assert.Contains(t, ms[2].SQL, "job_execution_logs")
}

func TestEmbeddedSource_WalksEveryVersion(t *testing.T) {
	src, err := iofs.New(files, ".")
	require.NoError(t, err)
	defer src.Close()

	var versions []uint
	v, err := src.First()
	require.NoError(t, err)
	for {
		versions = append(versions, v)

		up, _, err := src.ReadUp(v)
		require.NoError(t, err)
		require.NoError(t, up.Close())

		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d has a down script", v)
		require.NoError(t, down.Close())

		v, err = src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, []uint{1, 2, 3}, versions)
}
