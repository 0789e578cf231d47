// Package methodsrc defines the bytecode-acquisition contract the core
// verifier consumes and a CBOR wire envelope for remote
// method-body fetches, using canonical-mode CBOR marshaling so wire
// payloads compare byte-for-byte across producers.
package methodsrc

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/cilverify/pkg/oracle"
	"github.com/chazu/cilverify/pkg/regions"
)

// Local is one local-variable slot: its declared type and whether it is
// pinned.
type Local struct {
	Type   oracle.TypeID
	Pinned bool
}

// Body is the fully materialized shape of a method's bytecode and
// metadata, the unit the verifier runs its worklist over, one method
// body at a time: the self-contained unit of code a consumer receives
// and works from.
type Body struct {
	Method  oracle.MethodID
	IL      []byte
	Locals  []Local
	Regions []regions.Region
	Vararg  bool
	MaxStack int
	InitLocals bool
}

// Source answers the questions the verifier needs about a method body
// without committing to how the bytes were obtained:
// offline (disk-loaded assembly) and online (live process/runtime)
// backends are both pluggable behind this contract.
type Source interface {
	Body(m oracle.MethodID) (Body, error)
}

// Envelope is the wire shape for remote method-body fetches: the method
// identity travels as an opaque token (the oracle resolves real identity
// on the receiving side), paired with the fields of Body.
type Envelope struct {
	MethodToken uint32          `cbor:"1,keyasint"`
	IL          []byte          `cbor:"2,keyasint"`
	LocalTypes  []uint32        `cbor:"3,keyasint"` // tokens, resolved by the oracle after decode
	LocalPinned []bool          `cbor:"4,keyasint"`
	Regions     []WireRegion    `cbor:"5,keyasint"`
	Vararg      bool            `cbor:"6,keyasint"`
	MaxStack    int             `cbor:"7,keyasint"`
	InitLocals  bool            `cbor:"8,keyasint"`
}

// WireRegion is the over-the-wire shape of one exception region; CaughtType
// travels as a metadata token like everything else in the envelope.
type WireRegion struct {
	Kind          int    `cbor:"1,keyasint"`
	TryOffset     int    `cbor:"2,keyasint"`
	TryLength     int    `cbor:"3,keyasint"`
	HandlerOffset int    `cbor:"4,keyasint"`
	HandlerLength int    `cbor:"5,keyasint"`
	FilterOffset  int    `cbor:"6,keyasint"`
	CaughtToken   uint32 `cbor:"7,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("methodsrc: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalEnvelope serializes an Envelope to canonical CBOR bytes.
func MarshalEnvelope(e *Envelope) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEnvelope deserializes an Envelope from CBOR bytes.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("methodsrc: unmarshal envelope: %w", err)
	}
	return &e, nil
}

// Resolver turns the opaque tokens on an Envelope into oracle identities,
// a step the wire format defers so methodsrc never depends on a concrete
// metadata reader.
type Resolver interface {
	ResolveType(token uint32) (oracle.TypeID, error)
	ResolveMethod(token uint32) (oracle.MethodID, error)
}

// ToBody resolves an Envelope's tokens through r and builds a Body.
func ToBody(e *Envelope, r Resolver) (Body, error) {
	m, err := r.ResolveMethod(e.MethodToken)
	if err != nil {
		return Body{}, fmt.Errorf("methodsrc: resolve method: %w", err)
	}
	locals := make([]Local, len(e.LocalTypes))
	for i, tok := range e.LocalTypes {
		t, err := r.ResolveType(tok)
		if err != nil {
			return Body{}, fmt.Errorf("methodsrc: resolve local %d type: %w", i, err)
		}
		pinned := i < len(e.LocalPinned) && e.LocalPinned[i]
		locals[i] = Local{Type: t, Pinned: pinned}
	}
	regs := make([]regions.Region, len(e.Regions))
	for i, wr := range e.Regions {
		reg := regions.Region{
			Kind:          regions.Kind(wr.Kind),
			TryOffset:     wr.TryOffset,
			TryLength:     wr.TryLength,
			HandlerOffset: wr.HandlerOffset,
			HandlerLength: wr.HandlerLength,
			FilterOffset:  wr.FilterOffset,
		}
		if reg.Kind == regions.Catch {
			ct, err := r.ResolveType(wr.CaughtToken)
			if err != nil {
				return Body{}, fmt.Errorf("methodsrc: resolve region %d caught type: %w", i, err)
			}
			reg.CaughtType = ct
		}
		regs[i] = reg
	}
	return Body{
		Method:     m,
		IL:         e.IL,
		Locals:     locals,
		Regions:    regs,
		Vararg:     e.Vararg,
		MaxStack:   e.MaxStack,
		InitLocals: e.InitLocals,
	}, nil
}
