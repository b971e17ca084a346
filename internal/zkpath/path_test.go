package zkpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentPathAndCandidatePrefix(t *testing.T) {
	parent := ParentPath("/ZktoolsLocks", "widgets")
	assert.Equal(t, "/ZktoolsLocks/widgets", parent)
	assert.Equal(t, "/ZktoolsLocks/widgets/lock-", CandidatePrefix(parent, Exclusive))
	assert.Equal(t, "/ZktoolsLocks/widgets/write-", CandidatePrefix(parent, Write))
	assert.Equal(t, "/ZktoolsLocks/widgets/read-", CandidatePrefix(parent, Read))
	assert.Equal(t, "/ZktoolsLocks/widgets/revoked", RevokedPath(parent))
}

func TestSequenceParsesTrailingDigits(t *testing.T) {
	seq, err := Sequence("lock-0000000007")
	require.NoError(t, err)
	assert.EqualValues(t, 7, seq)

	seq, err = Sequence("read-0000000123")
	require.NoError(t, err)
	assert.EqualValues(t, 123, seq)
}

func TestSequenceRejectsShortNames(t *testing.T) {
	_, err := Sequence("lock-1")
	assert.Error(t, err)
}

func TestSequenceRejectsNonNumericSuffix(t *testing.T) {
	_, err := Sequence("lock-abcdefghij")
	assert.Error(t, err)
}

func TestHasKindAndBlocksEverything(t *testing.T) {
	assert.True(t, HasKind("lock-0000000001", Exclusive))
	assert.False(t, HasKind("read-0000000001", Exclusive))

	assert.True(t, BlocksEverything("lock-0000000001"))
	assert.True(t, BlocksEverything("write-0000000001"))
	assert.False(t, BlocksEverything("read-0000000001"))
}

func TestBase(t *testing.T) {
	assert.Equal(t, "lock-0000000001", Base("/ZktoolsLocks/widgets/lock-0000000001"))
	assert.Equal(t, "widgets", Base("widgets"))
}
