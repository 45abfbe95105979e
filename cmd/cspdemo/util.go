package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/keyinfo"
	"github.com/kms-shield/csp-lib/pkg/keystore"
	"github.com/kms-shield/csp-lib/pkg/logutils"
	"github.com/kms-shield/csp-lib/pkg/vault"
	"github.com/kms-shield/csp-lib/provider"
)

// storePaths resolves the per-scope directories under the store root.
func storePaths(root string) (machine, user string) {
	return filepath.Join(root, "machine"), filepath.Join(root, "user")
}

func ensureStoreDirs(root string) error {
	machineDir, userDir := storePaths(root)
	if err := os.MkdirAll(machineDir, 0o700); err != nil {
		return errors.WithMessage(err, "cspdemo: failed to create machine store directory")
	}
	if err := os.MkdirAll(userDir, 0o700); err != nil {
		return errors.WithMessage(err, "cspdemo: failed to create user store directory")
	}
	return nil
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	var file *logutils.FileOptions
	if path := c.String(logFileFlag); path != "" {
		file = &logutils.FileOptions{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
			Compress:   true,
		}
	}
	return logutils.NewLogger(c.String(logLevelFlag), file)
}

// newProvider wires a file-backed provider under the store root, one
// vault and metadata index per scope.
func newProvider(c *cli.Context) (*provider.Provider, error) {
	master := []byte(c.String(masterKeyFlag))
	machineDir, userDir := storePaths(c.String(storeFlag))

	factory := keystore.StoreFactory{}
	machine := factory.NewKeystore(keystore.StoreConfig{
		Vault: vault.NewFileVault(vault.FileVaultConfig{Path: machineDir, MasterKey: master}),
		Infos: keyinfo.NewFileInfoStore(filepath.Join(machineDir, "index.cbor")),
	})
	user := factory.NewKeystore(keystore.StoreConfig{
		Vault: vault.NewFileVault(vault.FileVaultConfig{Path: userDir, MasterKey: master}),
		Infos: keyinfo.NewFileInfoStore(filepath.Join(userDir, "index.cbor")),
	})
	return provider.New(provider.Config{
		MachineStore: machine,
		UserStore:    user,
	})
}

func parseScope(c *cli.Context) (keyspec.Scope, error) {
	return keyspec.ParseScope(c.String(scopeFlag))
}

// reportHandle logs the descriptive attributes of an open key handle.
func reportHandle(log *zap.Logger, h *provider.Handle) {
	log.Info("key properties",
		zap.String("name", h.Name()),
		zap.String("uniqueName", h.UniqueName()),
		zap.String("algorithm", h.Algorithm().String()),
		zap.String("scope", h.Scope().String()),
		zap.Bool("isMachineKey", h.IsMachineKey()),
		zap.Bool("isEphemeral", h.IsEphemeral()),
		zap.String("usage", h.Usage().String()),
		zap.String("exportPolicy", h.ExportPolicy().String()),
		zap.String("ski", h.SKI()),
		zap.Time("createdAt", h.CreatedAt()),
	)
}
