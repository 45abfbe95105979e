package keystore

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
	"github.com/kms-shield/csp-lib/pkg/common/keystore"
	infostore "github.com/kms-shield/csp-lib/pkg/keyinfo"
	"github.com/kms-shield/csp-lib/pkg/vault"
)

func testStore() (*Store, *vault.InMemoryVault) {
	v := vault.NewInMemoryVault()
	return NewStore(v, infostore.NewInMemoryInfoStore()), v
}

func testInfo(name, uniqueName string) *keyinfo.Info {
	return &keyinfo.Info{
		Name:         name,
		Scope:        keyspec.MachineKey,
		Algorithm:    keyspec.RSA,
		Usage:        keyspec.Signing,
		ExportPolicy: keyspec.ExportNone,
		SKI:          "ski-" + name,
		UniqueName:   uniqueName,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestStoreImportGet(t *testing.T) {
	s, _ := testStore()

	err := s.Import(testInfo("k1", "un-1"), []byte("encoded"), false)
	require.NoError(t, err)

	info, encoded, err := s.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, "un-1", info.UniqueName)
	assert.Equal(t, []byte("encoded"), encoded)

	ok, err := s.Exists("k1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = s.Get("missing")
	assert.ErrorIs(t, err, keystore.ErrKeyNotFound)
}

func TestStoreImportRejectsDuplicates(t *testing.T) {
	s, _ := testStore()

	require.NoError(t, s.Import(testInfo("k1", "un-1"), []byte("old"), false))

	err := s.Import(testInfo("k1", "un-2"), []byte("new"), false)
	assert.ErrorIs(t, err, keystore.ErrKeyAlreadyExists)

	// the existing key is untouched
	info, encoded, err := s.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, "un-1", info.UniqueName)
	assert.Equal(t, []byte("old"), encoded)
}

func TestStoreOverwriteDisplacesMaterial(t *testing.T) {
	s, v := testStore()

	require.NoError(t, s.Import(testInfo("k1", "un-1"), []byte("old"), false))
	require.NoError(t, s.Import(testInfo("k1", "un-2"), []byte("new"), true))

	info, encoded, err := s.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, "un-2", info.UniqueName)
	assert.Equal(t, []byte("new"), encoded)

	// exactly one record remains and the displaced material is gone
	infos, err := s.List()
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	ok, err := v.Exists("un-1")
	require.NoError(t, err)
	assert.False(t, ok, "displaced vault record must be removed")
}

func TestStoreImportValidatesRecord(t *testing.T) {
	s, _ := testStore()

	assert.Error(t, s.Import(nil, []byte("x"), false))
	assert.Error(t, s.Import(testInfo("", "un-1"), []byte("x"), false))
	assert.Error(t, s.Import(testInfo("k1", ""), []byte("x"), false))
}

// failingInfoStore turns every Import into a write failure.
type failingInfoStore struct {
	keyinfo.Store
}

func (f failingInfoStore) Import(*keyinfo.Info) (*keyinfo.Info, error) {
	return nil, errors.New("index write failed")
}

func TestStoreRollsBackVaultOnMetadataFailure(t *testing.T) {
	v := vault.NewInMemoryVault()
	s := NewStore(v, failingInfoStore{infostore.NewInMemoryInfoStore()})

	err := s.Import(testInfo("k1", "un-1"), []byte("encoded"), false)
	require.Error(t, err)

	ok, err := v.Exists("un-1")
	require.NoError(t, err)
	assert.False(t, ok, "vault write must be rolled back")
}

func TestStoreDelete(t *testing.T) {
	s, v := testStore()

	require.NoError(t, s.Import(testInfo("k1", "un-1"), []byte("encoded"), false))
	require.NoError(t, s.Delete("k1"))

	_, _, err := s.Get("k1")
	assert.ErrorIs(t, err, keystore.ErrKeyNotFound)

	ok, err := v.Exists("un-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Delete("k1"), keystore.ErrKeyNotFound)
}

func TestStoreReportsMissingMaterial(t *testing.T) {
	s, v := testStore()

	require.NoError(t, s.Import(testInfo("k1", "un-1"), []byte("encoded"), false))
	require.NoError(t, v.Delete("un-1"))

	_, _, err := s.Get("k1")
	assert.ErrorIs(t, err, keystore.ErrKeyNotFound)
}

func TestKeyLinkedStore(t *testing.T) {
	s, _ := testStore()
	require.NoError(t, s.Import(testInfo("k1", "un-1"), []byte("encoded"), false))

	kls := s.WithName("k1")

	info, err := kls.Info()
	require.NoError(t, err)
	assert.Equal(t, "un-1", info.UniqueName)

	info, encoded, err := kls.Get()
	require.NoError(t, err)
	assert.Equal(t, "ski-k1", info.SKI)
	assert.Equal(t, []byte("encoded"), encoded)

	require.NoError(t, kls.Delete())
	_, err = kls.Info()
	assert.ErrorIs(t, err, keystore.ErrKeyNotFound)
}

func TestStoreFactory(t *testing.T) {
	f := StoreFactory{}

	ks := f.NewKeystore(StoreConfig{
		Vault: vault.NewInMemoryVault(),
		Infos: infostore.NewInMemoryInfoStore(),
	})
	require.NotNil(t, ks)
	require.NoError(t, ks.Import(testInfo("k1", "un-1"), []byte("encoded"), false))

	assert.Nil(t, f.NewKeystore(nil))
	assert.Nil(t, f.NewKeystore(StoreConfig{}))
}
