// Package image serializes compiled vm.Images to and from CBOR.
//
// An image file is the canonical CBOR encoding of a versioned envelope. SYS
// instructions carry registry-specific builtin ids, so the envelope also
// records the name of every builtin the code references; decoding links
// those names against the target registry.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/purplegarden/vm"
)

const (
	// Magic identifies an image envelope.
	Magic = "PGBC"
	// Version is the envelope version written by Marshal.
	Version = 1
)

var (
	ErrBadMagic       = errors.New("image: not a purple garden image")
	ErrBadVersion     = errors.New("image: unsupported version")
	ErrBadGlobal      = errors.New("image: globals must be inline constants")
	ErrUnknownBuiltin = errors.New("image: unknown builtin")
	ErrBadOpcode      = errors.New("image: invalid opcode")
)

// cborEncMode is the canonical encoding mode, so equal images encode to
// equal bytes and hash identically in the store.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// envelope is the on-disk form of a vm.Image.
type envelope struct {
	Magic    string            `cbor:"1,keyasint"`
	Version  uint16            `cbor:"2,keyasint"`
	Code     []wireOp          `cbor:"3,keyasint"`
	Globals  []wireValue       `cbor:"4,keyasint"`
	Names    map[uint64]string `cbor:"5,keyasint,omitempty"`
	Builtins map[uint16]string `cbor:"6,keyasint,omitempty"`
}

type wireOp struct {
	Code      uint8  `cbor:"1,keyasint"`
	Dst       uint8  `cbor:"2,keyasint,omitempty"`
	Src       uint8  `cbor:"3,keyasint,omitempty"`
	Lhs       uint8  `cbor:"4,keyasint,omitempty"`
	Rhs       uint8  `cbor:"5,keyasint,omitempty"`
	Imm       int64  `cbor:"6,keyasint,omitempty"`
	Idx       uint32 `cbor:"7,keyasint,omitempty"`
	Hash      uint64 `cbor:"8,keyasint,omitempty"`
	Size      uint32 `cbor:"9,keyasint,omitempty"`
	Kind      uint8  `cbor:"10,keyasint,omitempty"`
	Target    int    `cbor:"11,keyasint,omitempty"`
	ArgsStart uint8  `cbor:"12,keyasint,omitempty"`
	ArgsLen   uint8  `cbor:"13,keyasint,omitempty"`
	Times     uint8  `cbor:"14,keyasint,omitempty"`
	Builtin   uint16 `cbor:"15,keyasint,omitempty"`
}

type wireValue struct {
	Kind uint8  `cbor:"1,keyasint"`
	Bits uint64 `cbor:"2,keyasint,omitempty"`
	Text string `cbor:"3,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Marshal encodes img. Builtin ids in SYS instructions are resolved to names
// through reg; nil selects vm.StdBuiltins().
func Marshal(img *vm.Image, reg *vm.Registry) ([]byte, error) {
	if reg == nil {
		reg = vm.StdBuiltins()
	}
	env := envelope{
		Magic:   Magic,
		Version: Version,
		Code:    make([]wireOp, len(img.Code)),
		Globals: make([]wireValue, len(img.Globals)),
		Names:   img.Names,
	}
	for i, op := range img.Code {
		if op.Code == vm.OpSys {
			b, ok := reg.Lookup(op.Builtin)
			if !ok {
				return nil, fmt.Errorf("%w: id %d at pc %d", ErrUnknownBuiltin, op.Builtin, i)
			}
			if env.Builtins == nil {
				env.Builtins = make(map[uint16]string)
			}
			env.Builtins[uint16(op.Builtin)] = b.Name
		}
		env.Code[i] = encodeOp(op)
	}
	for i, v := range img.Globals {
		if v.IsHeap() || v.IsEmpty() {
			return nil, fmt.Errorf("%w: global %d is %s", ErrBadGlobal, i, v.Kind())
		}
		env.Globals[i] = wireValue{Kind: uint8(v.Kind()), Bits: v.Bits(), Text: v.Text()}
	}
	data, err := cborEncMode.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}
	return data, nil
}

func encodeOp(op vm.Op) wireOp {
	return wireOp{
		Code:      uint8(op.Code),
		Dst:       op.Dst,
		Src:       op.Src,
		Lhs:       op.Lhs,
		Rhs:       op.Rhs,
		Imm:       op.Imm,
		Idx:       op.Idx,
		Hash:      op.Hash,
		Size:      op.Size,
		Kind:      uint8(op.Kind),
		Target:    op.Target,
		ArgsStart: op.ArgsStart,
		ArgsLen:   op.ArgsLen,
		Times:     op.Times,
		Builtin:   uint16(op.Builtin),
	}
}

// Write encodes img to w.
func Write(w io.Writer, img *vm.Image, reg *vm.Registry) error {
	data, err := Marshal(img, reg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile encodes img into the file at path.
func WriteFile(path string, img *vm.Image, reg *vm.Registry) error {
	var buf bytes.Buffer
	if err := Write(&buf, img, reg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Unmarshal decodes an image and links its builtin names against reg; nil
// selects vm.StdBuiltins().
func Unmarshal(data []byte, reg *vm.Registry) (*vm.Image, error) {
	if reg == nil {
		reg = vm.StdBuiltins()
	}
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if env.Magic != Magic {
		return nil, ErrBadMagic
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, env.Version)
	}

	img := &vm.Image{
		Code:    make([]vm.Op, len(env.Code)),
		Globals: make([]vm.Value, len(env.Globals)),
		Names:   env.Names,
	}
	if img.Names == nil {
		img.Names = make(map[uint64]string)
	}
	for i, w := range env.Code {
		op, err := decodeOp(w)
		if err != nil {
			return nil, fmt.Errorf("image: pc %d: %w", i, err)
		}
		if op.Code == vm.OpSys {
			name, ok := env.Builtins[w.Builtin]
			if !ok {
				return nil, fmt.Errorf("%w: id %d at pc %d has no name", ErrUnknownBuiltin, w.Builtin, i)
			}
			b, ok := reg.Resolve(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s at pc %d", ErrUnknownBuiltin, name, i)
			}
			op.Builtin = b.ID
		}
		img.Code[i] = op
	}
	for i, w := range env.Globals {
		v, err := decodeValue(w)
		if err != nil {
			return nil, fmt.Errorf("image: global %d: %w", i, err)
		}
		img.Globals[i] = v
	}
	return img, nil
}

func decodeOp(w wireOp) (vm.Op, error) {
	code := vm.Opcode(w.Code)
	if !code.Valid() {
		return vm.Op{}, fmt.Errorf("%w 0x%02x", ErrBadOpcode, w.Code)
	}
	return vm.Op{
		Code:      code,
		Dst:       w.Dst,
		Src:       w.Src,
		Lhs:       w.Lhs,
		Rhs:       w.Rhs,
		Imm:       w.Imm,
		Idx:       w.Idx,
		Hash:      w.Hash,
		Size:      w.Size,
		Kind:      vm.NewKind(w.Kind),
		Target:    w.Target,
		ArgsStart: w.ArgsStart,
		ArgsLen:   w.ArgsLen,
		Times:     w.Times,
		Builtin:   vm.BuiltinID(w.Builtin),
	}, nil
}

func decodeValue(w wireValue) (vm.Value, error) {
	switch vm.Kind(w.Kind) {
	case vm.KindFalse:
		return vm.False, nil
	case vm.KindTrue:
		return vm.True, nil
	case vm.KindInt:
		return vm.FromInt(int64(w.Bits)), nil
	case vm.KindDouble:
		return vm.FromDoubleBits(w.Bits), nil
	case vm.KindStr:
		return vm.FromStr(w.Text), nil
	case vm.KindString:
		return vm.FromString(w.Text), nil
	}
	return vm.Value{}, fmt.Errorf("%w: kind %s", ErrBadGlobal, vm.Kind(w.Kind))
}

// Read decodes an image from r.
func Read(r io.Reader, reg *vm.Registry) (*vm.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("image: read: %w", err)
	}
	return Unmarshal(data, reg)
}

// ReadFile decodes the image file at path.
func ReadFile(path string, reg *vm.Registry) (*vm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, reg)
}
