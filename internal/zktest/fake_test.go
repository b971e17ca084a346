package zktest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-division/go-zookeeper/zk"
)

func TestCreateSequentialAssignsZeroPaddedSuffixes(t *testing.T) {
	f := NewFakeConn()
	_, err := f.Create("/ZktoolsLocks", nil, 0, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)
	_, err = f.Create("/ZktoolsLocks/widgets", nil, 0, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)

	p1, err := f.Create("/ZktoolsLocks/widgets/lock-", []byte("a"), zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)
	p2, err := f.Create("/ZktoolsLocks/widgets/lock-", []byte("b"), zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)

	assert.Equal(t, "/ZktoolsLocks/widgets/lock-0000000000", p1)
	assert.Equal(t, "/ZktoolsLocks/widgets/lock-0000000001", p2)
}

func TestExistsWFiresOnPendingNodeCreation(t *testing.T) {
	f := NewFakeConn()
	_, err := f.Create("/ZktoolsLocks", nil, 0, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)

	exists, _, ch, err := f.ExistsW("/ZktoolsLocks/revoked")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.Create("/ZktoolsLocks/revoked", []byte("gentle"), 0, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)

	evt := <-ch
	assert.Equal(t, zk.EventNodeCreated, evt.Type)
}

func TestExpireSessionDeletesEphemeralNodesOnly(t *testing.T) {
	f := NewFakeConn()
	_, err := f.Create("/ZktoolsLocks", nil, 0, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)
	_, err = f.Create("/ZktoolsLocks/widgets", nil, 0, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)
	candidate, err := f.Create("/ZktoolsLocks/widgets/lock-", []byte("a"), zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)

	initialSession := f.SessionID()
	f.ExpireSession()
	assert.NotEqual(t, initialSession, f.SessionID())

	exists, _, err := f.Exists(candidate)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, _, err = f.Exists("/ZktoolsLocks/widgets")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteMissingNodeReturnsErrNoNode(t *testing.T) {
	f := NewFakeConn()
	err := f.Delete("/never/created", -1)
	assert.Equal(t, zk.ErrNoNode, err)
}
