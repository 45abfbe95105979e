package vault

import "github.com/kms-shield/csp-lib/pkg/common/vault"

type FileVaultFactory struct{}

// NewVault creates a new Vault instance for the given Vault configuration.
// cfg must be a FileVaultConfig; any other value yields a nil Vault.
func (f FileVaultFactory) NewVault(cfg interface{}) vault.Vault {
	c, ok := cfg.(FileVaultConfig)
	if !ok {
		return nil
	}
	return NewFileVault(c)
}
