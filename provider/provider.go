// Package provider implements the key store provider facade: named key
// creation, export under policy, inspection and deletion over per-scope
// keystores, with the cryptography delegated to per-family key managers.
package provider

import (
	"bytes"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/blob"
	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/cryptokey"
	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
	"github.com/kms-shield/csp-lib/pkg/common/keystore"
	"github.com/kms-shield/csp-lib/pkg/cryptosuite/sw/ecdh"
	"github.com/kms-shield/csp-lib/pkg/cryptosuite/sw/rsa"
)

// Config wires the provider's collaborators. Both scope stores are
// required; Managers defaults to the software RSA and ECDH managers.
type Config struct {
	MachineStore keystore.Keystore
	UserStore    keystore.Keystore
	Managers     []cryptokey.KeyManager

	// StrictVerify makes a create-by-import verification mismatch fatal:
	// the stored key is removed and Create fails, instead of reporting the
	// mismatch alongside a usable handle.
	StrictVerify bool
}

// Provider is the key store provider. Its operations are synchronous and
// safe for concurrent use on distinct names.
type Provider struct {
	machine  keystore.Keystore
	user     keystore.Keystore
	managers []cryptokey.KeyManager
	strict   bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.MachineStore == nil || cfg.UserStore == nil {
		return nil, errors.New("provider: both scope stores must be set")
	}
	managers := cfg.Managers
	if len(managers) == 0 {
		managers = []cryptokey.KeyManager{rsa.NewRSAKeyManager(nil), ecdh.NewECDHKeyManager()}
	}
	return &Provider{
		machine:  cfg.MachineStore,
		user:     cfg.UserStore,
		managers: managers,
		strict:   cfg.StrictVerify,
	}, nil
}

// CreateRequest carries the parameters of a key creation.
type CreateRequest struct {
	Algorithm keyspec.Algorithm

	// Name identifies the key in its scope. Empty creates an ephemeral
	// key that is never persisted.
	Name  string
	Scope keyspec.Scope

	// Usage defaults to AllUsages when zero.
	Usage        keyspec.Usage
	ExportPolicy keyspec.ExportPolicy

	// Overwrite permits replacing an existing key of the same name.
	Overwrite bool

	// RSABits is the modulus size for RSA generation; 0 selects the
	// manager default.
	RSABits int

	// Material imports existing key material instead of generating fresh;
	// MaterialFormat names its encoding. Imported material is verified by
	// re-exporting it and comparing the bytes.
	Material       []byte
	MaterialFormat blob.Format
}

// Create builds a key per req and persists it when a name is given.
//
// On success the returned error is nil or ErrVerificationMismatch: the
// latter reports that imported material did not re-export to the same
// bytes while the handle remains usable. Every other failure comes back as
// a *CreateError wrapping its cause, with no handle.
func (p *Provider) Create(req CreateRequest) (*Handle, error) {
	h, verr, err := p.create(req)
	if err != nil {
		return nil, &CreateError{Name: req.Name, Scope: req.Scope, Err: err}
	}
	return h, verr
}

func (p *Provider) create(req CreateRequest) (h *Handle, verr error, err error) {
	if !req.Algorithm.Valid() {
		return nil, nil, errors.Errorf("provider: unknown algorithm %q", req.Algorithm)
	}
	if len(req.Material) == 0 && req.MaterialFormat != "" {
		return nil, nil, errors.New("provider: material format given without material")
	}
	usage := req.Usage
	if usage == 0 {
		usage = keyspec.AllUsages
	}

	mgr, err := p.managerFor(req.Algorithm)
	if err != nil {
		return nil, nil, err
	}

	var key cryptokey.Key
	if len(req.Material) > 0 {
		key, err = mgr.Import(req.Material, req.MaterialFormat, usage)
	} else {
		key, err = mgr.Generate(cryptokey.GenerateOpts{Algorithm: req.Algorithm, Usage: usage, RSABits: req.RSABits})
	}
	if err != nil {
		return nil, nil, err
	}
	if key.Algorithm() != req.Algorithm {
		_ = key.Close()
		return nil, nil, errors.Errorf("provider: material is %s, requested %s", key.Algorithm(), req.Algorithm)
	}

	info := &keyinfo.Info{
		Name:         req.Name,
		Scope:        req.Scope,
		Algorithm:    req.Algorithm,
		Usage:        usage,
		ExportPolicy: req.ExportPolicy,
		SKI:          hex.EncodeToString(key.SKI()),
		UniqueName:   uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
	}

	persisted := req.Name != ""
	if persisted {
		encoded, err := key.Bytes()
		if err != nil {
			_ = key.Close()
			return nil, nil, err
		}
		if err := p.storeFor(req.Scope).Import(info, encoded, req.Overwrite); err != nil {
			_ = key.Close()
			return nil, nil, err
		}
	}

	if len(req.Material) > 0 {
		if verr := p.verifyRoundTrip(key, req.Material, req.MaterialFormat); verr != nil {
			if p.strict {
				if persisted {
					_ = p.storeFor(req.Scope).Delete(req.Name)
				}
				_ = key.Close()
				return nil, nil, verr
			}
			return &Handle{info: info, key: key, ephemeral: !persisted}, verr, nil
		}
	}

	return &Handle{info: info, key: key, ephemeral: !persisted}, nil, nil
}

// verifyRoundTrip re-exports imported material and requires byte equality.
func (p *Provider) verifyRoundTrip(key cryptokey.Key, material []byte, f blob.Format) error {
	out, err := key.Export(f)
	if err != nil {
		return errors.WithMessage(ErrVerificationMismatch, err.Error())
	}
	if !bytes.Equal(out, material) {
		return ErrVerificationMismatch
	}
	return nil
}

// Open loads a stored key and returns a live handle to it.
func (p *Provider) Open(name string, scope keyspec.Scope) (*Handle, error) {
	info, encoded, err := p.storeFor(scope).Get(name)
	if err != nil {
		return nil, err
	}
	mgr, err := p.managerFor(info.Algorithm)
	if err != nil {
		return nil, err
	}
	key, err := mgr.Load(encoded)
	if err != nil {
		return nil, errors.WithMessagef(err, "provider: failed to load key %q", name)
	}
	return &Handle{info: info, key: key}, nil
}

// Export returns the key encoded in format f, subject to the key's export
// policy. A policy of None denies every export, private and public alike.
func (p *Provider) Export(h *Handle, f blob.Format) ([]byte, error) {
	if h == nil {
		return nil, errors.New("provider: nil handle")
	}
	if h.closed {
		return nil, ErrClosed
	}
	if h.info.ExportPolicy != keyspec.AllowPlaintextExport {
		return nil, errors.WithMessagef(ErrExportDenied, "key %q has policy %s", h.info.Name, h.info.ExportPolicy)
	}
	return h.key.Export(f)
}

// Describe reads back a stored key's metadata without touching its
// material.
func (p *Provider) Describe(name string, scope keyspec.Scope) (*keyinfo.Info, error) {
	return p.storeFor(scope).WithName(name).Info()
}

// List returns the metadata of every key stored in the scope, sorted by
// name.
func (p *Provider) List(scope keyspec.Scope) ([]*keyinfo.Info, error) {
	return p.storeFor(scope).List()
}

// Delete removes a stored key's material and metadata.
func (p *Provider) Delete(name string, scope keyspec.Scope) error {
	return p.storeFor(scope).Delete(name)
}

func (p *Provider) storeFor(scope keyspec.Scope) keystore.Keystore {
	if scope == keyspec.MachineKey {
		return p.machine
	}
	return p.user
}

func (p *Provider) managerFor(a keyspec.Algorithm) (cryptokey.KeyManager, error) {
	for _, mgr := range p.managers {
		if mgr.Supports(a) {
			return mgr, nil
		}
	}
	return nil, errors.Errorf("provider: no key manager supports %s", a)
}
