package metadb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meta.db")
	store, err := Open(path, 5000)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestBootstrapSuperuser_InsertsOnlyOnce(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.BootstrapSuperuser("%", "admin", "secret", "pg"))
	require.NoError(t, store.BootstrapSuperuser("%", "someone-else", "x", "pg"))

	rec, err := store.LookupUser("%", "admin", "pg")
	require.NoError(t, err)
	require.True(t, rec.Super)

	_, err = store.LookupUser("%", "someone-else", "pg")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestLookupUser_NotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.LookupUser("127.0.0.1", "nobody", "pg")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestHostAllowed_ExactAndWildcard(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.BootstrapSuperuser("192.168.1.1", "admin", "pw", "pg"))

	ok, err := store.HostAllowed("192.168.1.1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.HostAllowed("10.0.0.1")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.WriteDB.Exec("insert into user(host, user) values ('%', 'bob')")
	require.NoError(t, err)
	ok, err = store.HostAllowed("10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHasPrivilege_DirectAndWildcard(t *testing.T) {
	store := openTestStore(t)
	_, err := store.WriteDB.Exec("insert into db(host, user, db) values ('%', 'bob', 'sales')")
	require.NoError(t, err)

	ok, err := store.HasPrivilege("%", "bob", "sales")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.HasPrivilege("%", "bob", "marketing")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.WriteDB.Exec("insert into db(host, user, db) values ('%', 'carol', 'all')")
	require.NoError(t, err)
	ok, err = store.HasPrivilege("%", "carol", "anything")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResolveDatabaseState(t *testing.T) {
	store := openTestStore(t)

	state, err := store.ResolveDatabaseState("testdb", false)
	require.NoError(t, err)
	require.Equal(t, DatabaseUnknown, state)

	state, err = store.ResolveDatabaseState("testdb", true)
	require.NoError(t, err)
	require.Equal(t, DatabaseFileOrphaned, state)

	_, err = store.WriteDB.Exec("insert into catalog(db, dir) values ('testdb', NULL)")
	require.NoError(t, err)

	state, err = store.ResolveDatabaseState("testdb", true)
	require.NoError(t, err)
	require.Equal(t, DatabaseCataloged, state)
}
