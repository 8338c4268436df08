// Package bundle defines the serialized form of an assembled class in
// transit: the class bytes plus the installation instructions they travel
// with. The CLI uses it to hand assembled classes between its subcommands
// and to write them to stdout or a file.
package bundle

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bundle: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Bundle is one assembled class plus its installation instructions.
type Bundle struct {
	// Name is the class's binary name with slashes.
	Name string `cbor:"name"`

	// Host is the binary name of the installed class the unit should be
	// loaded against.
	Host string `cbor:"host"`

	// Options are the install options, e.g. NESTMATE and STRONG. Empty
	// means a transient install.
	Options []string `cbor:"options,omitempty"`

	// Code is the serialized class.
	Code []byte `cbor:"code"`

	// Hash is the SHA-256 of Code, set by Seal and checked by Unmarshal.
	Hash [32]byte `cbor:"hash"`
}

// Seal fills in the content hash from the current Code.
func (b *Bundle) Seal() {
	b.Hash = sha256.Sum256(b.Code)
}

// Marshal serializes a Bundle to canonical CBOR bytes, sealing it first.
func Marshal(b *Bundle) ([]byte, error) {
	b.Seal()
	return cborEncMode.Marshal(b)
}

// Unmarshal deserializes a Bundle and verifies its content hash.
func Unmarshal(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bundle: unmarshal: %w", err)
	}
	if computed := sha256.Sum256(b.Code); computed != b.Hash {
		return nil, fmt.Errorf("bundle: hash mismatch for %s: declared %x, computed %x", b.Name, b.Hash, computed)
	}
	return &b, nil
}
