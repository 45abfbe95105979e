package provider

import (
	"time"

	"github.com/pkg/errors"

	"github.com/kms-shield/csp-lib/core/keyspec"
	"github.com/kms-shield/csp-lib/pkg/common/cryptokey"
	"github.com/kms-shield/csp-lib/pkg/common/keyinfo"
)

// Handle is the caller's view of a created or opened key. Property
// accessors answer from the metadata record and keep working after Close;
// operations that touch key material fail with ErrClosed. A Handle is not
// safe for concurrent use.
type Handle struct {
	info      *keyinfo.Info
	key       cryptokey.Key
	ephemeral bool
	closed    bool
}

// Name returns the key's name, empty for ephemeral keys.
func (h *Handle) Name() string {
	return h.info.Name
}

// UniqueName returns the provider-assigned identifier of the key's stored
// material.
func (h *Handle) UniqueName() string {
	return h.info.UniqueName
}

func (h *Handle) Algorithm() keyspec.Algorithm {
	return h.info.Algorithm
}

func (h *Handle) Scope() keyspec.Scope {
	return h.info.Scope
}

func (h *Handle) IsMachineKey() bool {
	return h.info.Scope == keyspec.MachineKey
}

// IsEphemeral reports whether the key was created without a name and is
// never persisted.
func (h *Handle) IsEphemeral() bool {
	return h.ephemeral
}

func (h *Handle) ExportPolicy() keyspec.ExportPolicy {
	return h.info.ExportPolicy
}

func (h *Handle) Usage() keyspec.Usage {
	return h.info.Usage
}

// SKI returns the hex-encoded subject key identifier.
func (h *Handle) SKI() string {
	return h.info.SKI
}

func (h *Handle) CreatedAt() time.Time {
	return h.info.CreatedAt
}

// Info returns a copy of the handle's metadata record.
func (h *Handle) Info() *keyinfo.Info {
	return h.info.Clone()
}

// Sign produces a signature over a SHA-256 digest with the underlying key.
func (h *Handle) Sign(digest []byte) ([]byte, error) {
	if h.closed {
		return nil, ErrClosed
	}
	signer, ok := h.key.(cryptokey.Signer)
	if !ok {
		return nil, errors.Errorf("provider: %s keys cannot sign", h.Algorithm())
	}
	return signer.Sign(digest)
}

// Agree computes a shared secret with a peer public key supplied as an
// ECCPublic blob.
func (h *Handle) Agree(peerPublic []byte) ([]byte, error) {
	if h.closed {
		return nil, ErrClosed
	}
	agreer, ok := h.key.(cryptokey.Agreer)
	if !ok {
		return nil, errors.Errorf("provider: %s keys cannot agree", h.Algorithm())
	}
	return agreer.Agree(peerPublic)
}

// Close releases the handle's key material. Closing a closed handle is a
// no-op. The stored copy of a persisted key is not affected.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.key.Close()
}
