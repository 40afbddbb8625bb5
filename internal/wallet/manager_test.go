package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeystore returns a file-backed Keystore isolated to a temp directory.
// Using the FileBackend avoids OS keychain prompts in CI.
func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      "academy-test",
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: func(string) (string, error) { return "testpass", nil },
	})
	require.NoError(t, err)
	return &Keystore{ring: ring}
}

func TestAddSigningWallet(t *testing.T) {
	mgr := NewManager(WithInMemoryStore())

	w, err := mgr.AddWithKey("alice", "0x"+testPrivKeyHex)
	require.NoError(t, err)
	assert.Equal(t, TypeSigning, w.Type)
	assert.Equal(t, testSignerAddr, w.Address)

	got, err := mgr.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, w, got)
}

func TestAddDuplicateWalletErrors(t *testing.T) {
	mgr := NewManager(WithInMemoryStore())
	require.NoError(t, mgr.AddWatchOnly("dup", common.HexToAddress("0x01")))
	assert.ErrorIs(t, mgr.AddWatchOnly("dup", common.HexToAddress("0x02")), ErrWalletExists)
	_, err := mgr.AddWithKey("dup", testPrivKeyHex)
	assert.ErrorIs(t, err, ErrWalletExists)
}

func TestInvalidPrivateKey(t *testing.T) {
	mgr := NewManager(WithInMemoryStore())
	_, err := mgr.AddWithKey("bad", "not-a-valid-key")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Empty(t, mgr.List())
}

func TestSignerForWallet(t *testing.T) {
	mgr := NewManager(WithKeyStore(testKeystore(t)))
	w, err := mgr.AddWithKey("alice", testPrivKeyHex)
	require.NoError(t, err)

	s, err := mgr.Signer(w)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testSignerAddr), s.Address())
}

func TestSignerWatchOnly(t *testing.T) {
	mgr := NewManager(WithInMemoryStore())
	require.NoError(t, mgr.AddWatchOnly("viewer", common.HexToAddress(testSignerAddr)))
	w, _ := mgr.Get("viewer")

	_, err := mgr.Signer(w)
	assert.ErrorIs(t, err, ErrWatchOnly)
}

func TestRemoveDeletesKey(t *testing.T) {
	ks := NewInMemoryKeystore()
	mgr := NewManager(WithKeyStore(ks))
	w, err := mgr.AddWithKey("alice", testPrivKeyHex)
	require.NoError(t, err)

	require.NoError(t, mgr.Remove("alice"))
	_, err = ks.Retrieve(w.KeyRef)
	assert.Error(t, err)
	assert.ErrorIs(t, mgr.Remove("alice"), ErrWalletNotFound)
}

func TestDefaultWallet(t *testing.T) {
	mgr := NewManager(WithInMemoryStore())
	assert.Nil(t, mgr.Default())

	require.NoError(t, mgr.AddWatchOnly("a", common.HexToAddress("0x01")))
	assert.Equal(t, "a", mgr.Default().Name, "single wallet is the default")

	require.NoError(t, mgr.AddWatchOnly("b", common.HexToAddress("0x02")))
	assert.Nil(t, mgr.Default())

	require.NoError(t, mgr.SetDefault("b"))
	assert.Equal(t, "b", mgr.Default().Name)
	assert.ErrorIs(t, mgr.SetDefault("zzz"), ErrWalletNotFound)
}

func TestListSorted(t *testing.T) {
	mgr := NewManager(WithInMemoryStore())
	for _, n := range []string{"carol", "alice", "bob"} {
		require.NoError(t, mgr.AddWatchOnly(n, common.HexToAddress("0x01")))
	}
	var names []string
	for _, w := range mgr.List() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)
}

// ---------------------------------------------------------------------------
// JSONStore
// ---------------------------------------------------------------------------

func TestJSONStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wallets.json")
	store := NewJSONStore(path)

	wallets := []*Wallet{
		{Name: "alice", Address: "0x1111", Type: TypeWatchOnly},
		{Name: "bob", Address: "0x2222", Type: TypeSigning, KeyRef: "academy.bob"},
	}
	require.NoError(t, store.Save(wallets))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "academy.bob", loaded[1].KeyRef)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestJSONStoreLoadNoFile(t *testing.T) {
	wallets, err := NewJSONStore(filepath.Join(t.TempDir(), "none.json")).Load()
	require.NoError(t, err)
	assert.Nil(t, wallets)
}

func TestJSONStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := NewJSONStore(path).Load()
	assert.Error(t, err)
}

func TestManagerPersistsThroughJSONStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	ks := NewInMemoryKeystore()
	_, err := NewManager(WithStore(NewJSONStore(path)), WithKeyStore(ks)).AddWithKey("alice", testPrivKeyHex)
	require.NoError(t, err)

	again := NewManager(WithStore(NewJSONStore(path)), WithKeyStore(ks))
	w, err := again.Get("alice")
	require.NoError(t, err)
	s, err := again.Signer(w)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testSignerAddr), s.Address())
}
