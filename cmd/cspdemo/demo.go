package main

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kms-shield/csp-lib/core/blob"
	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/accessctl"
	acl "github.com/kms-shield/csp-lib/pkg/common/accessctl"
	"github.com/kms-shield/csp-lib/provider"
)

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:    "demo",
		Aliases: []string{"d"},
		Usage:   "walk through the key lifecycle: access rules, creation, export policy, import round trip, agreement",
		Action:  runDemo,
	}
}

// runDemo reports each failure where it happens and keeps going; the
// command itself always exits zero.
func runDemo(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	root := c.String(storeFlag)
	if err := ensureStoreDirs(root); err != nil {
		log.Error("store setup failed", zap.Error(err))
		return nil
	}
	prov, err := newProvider(c)
	if err != nil {
		log.Error("provider setup failed", zap.Error(err))
		return nil
	}

	machineDir, _ := storePaths(root)
	ctrl := accessctl.NewPosixController()

	log.Info("granting group read on the machine store", zap.String("path", machineDir))
	if err := ctrl.Grant(machineDir, acl.Group, acl.Read, acl.Allow); err != nil {
		log.Error("grant failed", zap.Error(err))
	}
	if err := ctrl.Grant(machineDir, acl.Others, acl.Write, acl.Deny); err != nil {
		log.Warn("deny rule not applied", zap.Error(err))
	}

	if h := demoSigningKey(log, prov); h != nil {
		defer func() { _ = h.Close() }()
	}
	if h := demoAgreementKey(log, prov); h != nil {
		defer func() { _ = h.Close() }()
	}

	log.Info("revoking group read on the machine store", zap.String("path", machineDir))
	if err := ctrl.Revoke(machineDir, acl.Group, acl.Read, acl.Allow); err != nil {
		log.Error("revoke failed", zap.Error(err))
	}
	return nil
}

// demoSigningKey creates the named machine signing key and shows that
// its export policy denies plaintext export.
func demoSigningKey(log *zap.Logger, prov *provider.Provider) *provider.Handle {
	log.Info("creating RSA signing key",
		zap.String("name", "MySoftwareKey"),
		zap.String("scope", keyspec.MachineKey.String()),
		zap.String("exportPolicy", keyspec.ExportNone.String()),
	)
	h, err := prov.Create(provider.CreateRequest{
		Algorithm:    keyspec.RSA,
		Name:         "MySoftwareKey",
		Scope:        keyspec.MachineKey,
		Usage:        keyspec.Signing,
		ExportPolicy: keyspec.ExportNone,
		Overwrite:    true,
	})
	if err != nil {
		log.Error("key creation failed", zap.Error(err))
		return nil
	}
	reportHandle(log, h)

	digest := bytes.Repeat([]byte{0x5a}, 32)
	if sig, err := h.Sign(digest); err != nil {
		log.Error("signing failed", zap.Error(err))
	} else {
		log.Info("signed a digest", zap.Int("signatureBytes", len(sig)))
	}

	_, err = prov.Export(h, blob.RSAFullPrivate)
	switch {
	case errors.Is(err, provider.ErrExportDenied):
		log.Info("private export denied by policy, as configured")
	case err != nil:
		log.Error("export failed", zap.Error(err))
	default:
		log.Warn("export succeeded against a policy of None")
	}
	return h
}

// demoAgreementKey exports an ephemeral donor key, imports the material
// under a name, re-exports it for a byte comparison and then derives a
// shared secret with a fresh peer.
func demoAgreementKey(log *zap.Logger, prov *provider.Provider) *provider.Handle {
	donor, err := prov.Create(provider.CreateRequest{
		Algorithm:    keyspec.ECDHP256,
		Scope:        keyspec.UserKey,
		Usage:        keyspec.KeyAgreement,
		ExportPolicy: keyspec.AllowPlaintextExport,
	})
	if err != nil {
		log.Error("donor key creation failed", zap.Error(err))
		return nil
	}
	defer func() { _ = donor.Close() }()

	material, err := prov.Export(donor, blob.ECCPrivate)
	if err != nil {
		log.Error("donor export failed", zap.Error(err))
		return nil
	}

	log.Info("creating ECDH key from imported material",
		zap.String("name", "AgreementKey"),
		zap.Int("materialBytes", len(material)),
	)
	h, err := prov.Create(provider.CreateRequest{
		Algorithm:      keyspec.ECDHP256,
		Name:           "AgreementKey",
		Scope:          keyspec.UserKey,
		Usage:          keyspec.KeyAgreement,
		ExportPolicy:   keyspec.AllowPlaintextExport,
		Overwrite:      true,
		Material:       material,
		MaterialFormat: blob.ECCPrivate,
	})
	switch {
	case errors.Is(err, provider.ErrVerificationMismatch):
		log.Warn("imported material did not verify; the key stays usable", zap.Error(err))
	case err != nil:
		log.Error("key creation failed", zap.Error(err))
		return nil
	}
	if h == nil {
		return nil
	}
	reportHandle(log, h)

	exported, err := prov.Export(h, blob.ECCPrivate)
	if err != nil {
		log.Error("re-export failed", zap.Error(err))
		return h
	}
	if bytes.Equal(material, exported) {
		log.Info("imported material round-tripped bit for bit", zap.Int("bytes", len(exported)))
	} else {
		log.Warn("re-exported material differs from the import")
	}

	peer, err := prov.Create(provider.CreateRequest{
		Algorithm:    keyspec.ECDHP256,
		Scope:        keyspec.UserKey,
		Usage:        keyspec.KeyAgreement,
		ExportPolicy: keyspec.AllowPlaintextExport,
	})
	if err != nil {
		log.Error("peer key creation failed", zap.Error(err))
		return h
	}
	defer func() { _ = peer.Close() }()

	peerPub, err := prov.Export(peer, blob.ECCPublic)
	if err != nil {
		log.Error("peer public export failed", zap.Error(err))
		return h
	}
	ownPub, err := prov.Export(h, blob.ECCPublic)
	if err != nil {
		log.Error("public export failed", zap.Error(err))
		return h
	}
	s1, err := h.Agree(peerPub)
	if err != nil {
		log.Error("agreement failed", zap.Error(err))
		return h
	}
	s2, err := peer.Agree(ownPub)
	if err != nil {
		log.Error("peer agreement failed", zap.Error(err))
		return h
	}
	if bytes.Equal(s1, s2) {
		log.Info("shared secrets agree", zap.Int("secretBytes", len(s1)))
	} else {
		log.Warn("shared secrets differ")
	}
	return h
}
