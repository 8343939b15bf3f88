package server

import (
	"testing"
	"time"

	"github.com/little-pan/sqlite-server/metadb"
	"github.com/stretchr/testify/require"
)

func TestAuthCache_CachesUntilInvalidated(t *testing.T) {
	c := newAuthCache(time.Minute)
	loads := 0
	load := func() (*metadb.UserRecord, error) {
		loads++
		return &metadb.UserRecord{User: "bob"}, nil
	}

	rec1, err := c.lookup("%", "bob", "sqlite-server", load)
	require.NoError(t, err)
	require.Equal(t, "bob", rec1.User)
	require.Equal(t, 1, loads)

	rec2, err := c.lookup("%", "bob", "sqlite-server", load)
	require.NoError(t, err)
	require.Same(t, rec1, rec2)
	require.Equal(t, 1, loads)

	c.invalidate("%", "bob", "sqlite-server")
	_, err = c.lookup("%", "bob", "sqlite-server", load)
	require.NoError(t, err)
	require.Equal(t, 2, loads)
}

func TestAuthCache_ExpiresAfterTTL(t *testing.T) {
	c := newAuthCache(time.Millisecond)
	loads := 0
	load := func() (*metadb.UserRecord, error) {
		loads++
		return &metadb.UserRecord{User: "bob"}, nil
	}

	_, err := c.lookup("%", "bob", "sqlite-server", load)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.lookup("%", "bob", "sqlite-server", load)
	require.NoError(t, err)
	require.Equal(t, 2, loads)
}
