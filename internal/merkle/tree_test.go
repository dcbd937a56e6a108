package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTreeHasNilRoot(t *testing.T) {
	tree := New()
	assert.Nil(t, tree.Root())
}

func TestUpsertProducesNonNilRoot(t *testing.T) {
	tree := New()
	tree.Upsert(SHA256([]byte("view")), SHA256([]byte("different")))
	require.NotNil(t, tree.Root())
}

func TestOrderIndependence(t *testing.T) {
	a := New()
	a.Upsert(SHA256([]byte("first")), SHA256([]byte("v1")))
	a.Upsert(SHA256([]byte("second")), SHA256([]byte("v2")))
	a.Upsert(SHA256([]byte("third")), SHA256([]byte("v3")))

	b := New()
	b.Upsert(SHA256([]byte("third")), SHA256([]byte("v3")))
	b.Upsert(SHA256([]byte("first")), SHA256([]byte("v1")))
	b.Upsert(SHA256([]byte("second")), SHA256([]byte("v2")))

	assert.Equal(t, *a.Root(), *b.Root())
}

func TestOverwriteChangesRoot(t *testing.T) {
	tree := New()
	tree.Upsert(SHA256([]byte("view")), SHA256([]byte("different")))
	r1 := *tree.Root()

	tree.Upsert(SHA256([]byte("view")), SHA256([]byte("another")))
	r2 := *tree.Root()

	assert.NotEqual(t, r1, r2)
}

func TestRemoveLastLeafYieldsNilRoot(t *testing.T) {
	tree := New()
	keyHash := SHA256([]byte("view"))
	tree.Upsert(keyHash, SHA256([]byte("different")))
	require.NotNil(t, tree.Root())

	removed := tree.Remove(keyHash)
	assert.True(t, removed)
	assert.Nil(t, tree.Root())
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	tree := New()
	tree.Upsert(SHA256([]byte("a")), SHA256([]byte("1")))
	r1 := *tree.Root()

	removed := tree.Remove(SHA256([]byte("never-set")))
	assert.False(t, removed)
	assert.Equal(t, r1, *tree.Root())
}

func TestResetThenRebuildMatchesFreshTree(t *testing.T) {
	populated := New()
	populated.Upsert(SHA256([]byte("a")), SHA256([]byte("1")))
	populated.Upsert(SHA256([]byte("b")), SHA256([]byte("2")))

	populated.Reset()
	populated.Upsert(SHA256([]byte("a")), SHA256([]byte("1")))
	populated.Upsert(SHA256([]byte("b")), SHA256([]byte("2")))

	fresh := New()
	fresh.Upsert(SHA256([]byte("a")), SHA256([]byte("1")))
	fresh.Upsert(SHA256([]byte("b")), SHA256([]byte("2")))

	assert.Equal(t, *fresh.Root(), *populated.Root())
}

func TestIdenticalContentsEqualRoots(t *testing.T) {
	pairs := map[string]string{
		"user:User1":  "a",
		"user:User2":  "b",
		"admin:Admin1": "c",
	}

	treeA := New()
	treeB := New()
	for k, v := range pairs {
		treeA.Upsert(SHA256([]byte(k)), SHA256([]byte(v)))
	}
	// Insert into treeB in a different (reverse) iteration by re-deriving a
	// differently-ordered key list.
	keys := []string{"admin:Admin1", "user:User2", "user:User1"}
	for _, k := range keys {
		treeB.Upsert(SHA256([]byte(k)), SHA256([]byte(pairs[k])))
	}

	assert.Equal(t, *treeA.Root(), *treeB.Root())
}
