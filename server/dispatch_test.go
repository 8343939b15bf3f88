package server

import (
	"testing"

	"github.com/little-pan/sqlite-server/sqlparser"
	"github.com/stretchr/testify/require"
)

func TestIsMetaCommand(t *testing.T) {
	metaCmds := []sqlparser.Command{
		sqlparser.CmdCreateUser, sqlparser.CmdAlterUser, sqlparser.CmdDropUser,
		sqlparser.CmdGrant, sqlparser.CmdRevoke,
		sqlparser.CmdCreateDatabase, sqlparser.CmdDropDatabase,
	}
	for _, cmd := range metaCmds {
		require.True(t, isMetaCommand(cmd), "%s should be a meta command", cmd)
	}

	require.False(t, isMetaCommand(sqlparser.CmdSelect))
	require.False(t, isMetaCommand(sqlparser.CmdKill))
}
