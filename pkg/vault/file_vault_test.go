package vault

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kms-shield/csp-lib/pkg/common/vault"
)

func TestFileVaultPlaintextRoundTrip(t *testing.T) {
	v := NewFileVault(FileVaultConfig{Path: filepath.Join(t.TempDir(), "keys")})

	require.NoError(t, v.Import("k1", []byte("material")))

	got, err := v.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("material"), got)

	ok, err := v.Exists("k1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, v.Delete("k1"))
	_, err = v.Get("k1")
	assert.ErrorIs(t, err, vault.ErrKeyNotFound)
	assert.NoError(t, v.Delete("k1"))
}

func TestFileVaultPersistsAcrossReopen(t *testing.T) {
	root := filepath.Join(t.TempDir(), "keys")
	master := []byte("master key of any length")

	v := NewFileVault(FileVaultConfig{Path: root, MasterKey: master})
	require.NoError(t, v.Import("k1", []byte("material")))

	reopened := NewFileVault(FileVaultConfig{Path: root, MasterKey: master})
	got, err := reopened.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("material"), got)
}

func TestFileVaultEncryptsRecords(t *testing.T) {
	root := filepath.Join(t.TempDir(), "keys")
	v := NewFileVault(FileVaultConfig{Path: root, MasterKey: []byte("master")})

	material := []byte("very secret private key material")
	require.NoError(t, v.Import("k1", material))

	raw, err := os.ReadFile(filepath.Join(root, "k1.key"))
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, material), "record file must not contain plaintext")

	// wrong master key must not decrypt
	wrong := NewFileVault(FileVaultConfig{Path: root, MasterKey: []byte("other")})
	_, err = wrong.Get("k1")
	assert.ErrorIs(t, err, ErrCorrupted)

	// a plaintext vault cannot read encrypted records
	plain := NewFileVault(FileVaultConfig{Path: root})
	_, err = plain.Get("k1")
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFileVaultDetectsTampering(t *testing.T) {
	root := filepath.Join(t.TempDir(), "keys")
	v := NewFileVault(FileVaultConfig{Path: root, MasterKey: []byte("master")})
	require.NoError(t, v.Import("k1", []byte("material")))

	path := filepath.Join(root, "k1.key")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = v.Get("k1")
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFileVaultChecksumGuardsPlaintextRecords(t *testing.T) {
	root := filepath.Join(t.TempDir(), "keys")
	v := NewFileVault(FileVaultConfig{Path: root})
	require.NoError(t, v.Import("k1", []byte("material")))

	// flip a payload byte while keeping the envelope well formed
	path := filepath.Join(root, "k1.key")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec fileRecord
	require.NoError(t, cbor.Unmarshal(raw, &rec))
	rec.Data[0] ^= 0xff
	raw, err = cbor.Marshal(&rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = v.Get("k1")
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestFileVaultOverwriteReplacesRecord(t *testing.T) {
	v := NewFileVault(FileVaultConfig{Path: filepath.Join(t.TempDir(), "keys")})
	require.NoError(t, v.Import("k1", []byte("old")))
	require.NoError(t, v.Import("k1", []byte("new")))

	got, err := v.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestFileVaultRejectsBadKeyIDs(t *testing.T) {
	v := NewFileVault(FileVaultConfig{Path: t.TempDir()})
	for _, id := range []string{"", "a/b", `a\b`, "..", "x..y", ".hidden"} {
		assert.ErrorIs(t, v.Import(id, []byte("m")), ErrInvalidKeyID, id)
		_, err := v.Get(id)
		assert.ErrorIs(t, err, ErrInvalidKeyID, id)
	}
}

func TestFileVaultPermissions(t *testing.T) {
	root := filepath.Join(t.TempDir(), "keys")
	v := NewFileVault(FileVaultConfig{Path: root})
	require.NoError(t, v.Import("k1", []byte("material")))

	di, err := os.Stat(root)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), di.Mode().Perm())

	fi, err := os.Stat(filepath.Join(root, "k1.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestFileVaultFactory(t *testing.T) {
	f := FileVaultFactory{}
	v := f.NewVault(FileVaultConfig{Path: filepath.Join(t.TempDir(), "keys")})
	require.NotNil(t, v)
	require.NoError(t, v.Import("k1", []byte("material")))

	assert.Nil(t, f.NewVault("not a config"))
}
