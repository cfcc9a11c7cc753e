package vm

import "fmt"

// ---------------------------------------------------------------------------
// Primitive operations
// ---------------------------------------------------------------------------

// arith applies one of the binary opcodes. Int op Int stays Int; a Double
// on either side promotes to Double; + on two texts concatenates into an
// owned String.
func arith(code Opcode, a, b Value) (Value, error) {
	switch code {
	case OpEq:
		return FromBool(a.Equal(b)), nil
	case OpLt, OpGt:
		return compare(code, a, b)
	}

	if code == OpAdd && a.IsText() && b.IsText() {
		return FromString(a.Text() + b.Text()), nil
	}
	if !a.IsNumber() || !b.IsNumber() {
		return Empty, fmt.Errorf("%w: %s %s %s", ErrType, a.Kind(), code, b.Kind())
	}

	if a.IsInt() && b.IsInt() {
		x, y := a.Int(), b.Int()
		switch code {
		case OpAdd:
			return FromInt(x + y), nil
		case OpSub:
			return FromInt(x - y), nil
		case OpMul:
			return FromInt(x * y), nil
		case OpDiv:
			if y == 0 {
				return Empty, ErrDivideByZero
			}
			return FromInt(x / y), nil
		}
	}

	x, y := a.float(), b.float()
	switch code {
	case OpAdd:
		return FromDouble(x + y), nil
	case OpSub:
		return FromDouble(x - y), nil
	case OpMul:
		return FromDouble(x * y), nil
	case OpDiv:
		return FromDouble(x / y), nil
	}
	return Empty, fmt.Errorf("%w 0x%02x", ErrUnknownOpcode, byte(code))
}

func compare(code Opcode, a, b Value) (Value, error) {
	var less, greater bool
	switch {
	case a.IsInt() && b.IsInt():
		less, greater = a.Int() < b.Int(), a.Int() > b.Int()
	case a.IsNumber() && b.IsNumber():
		less, greater = a.float() < b.float(), a.float() > b.float()
	case a.IsText() && b.IsText():
		less, greater = a.Text() < b.Text(), a.Text() > b.Text()
	default:
		return Empty, fmt.Errorf("%w: %s %s %s", ErrType, a.Kind(), code, b.Kind())
	}
	if code == OpLt {
		return FromBool(less), nil
	}
	return FromBool(greater), nil
}

// length implements LEN: element count for arrays, field count for objects,
// byte length for text.
func (m *VM) length(v Value) (int, error) {
	switch {
	case v.IsText():
		return len(v.Text()), nil
	case v.IsHeap():
		return m.heap.Len(v)
	}
	return 0, fmt.Errorf("%w: len of %s", ErrType, v.Kind())
}

// index implements IDX. Arrays and text take an Int index; objects take a
// key and yield False for a missing field.
func (m *VM) index(container, idx Value) (Value, error) {
	switch container.Kind() {
	case KindArr:
		if !idx.IsInt() {
			return Empty, fmt.Errorf("%w: array index is %s", ErrType, idx.Kind())
		}
		elems, err := m.heap.Elements(container)
		if err != nil {
			return Empty, err
		}
		i := idx.Int()
		if i < 0 || i >= int64(len(elems)) {
			return Empty, fmt.Errorf("%w: %d (len=%d)", ErrIndexRange, i, len(elems))
		}
		return elems[i], nil

	case KindObj:
		v, ok, err := m.heap.Field(container, idx)
		if err != nil {
			return Empty, err
		}
		if !ok {
			return False, nil
		}
		return v, nil

	case KindStr, KindString:
		if !idx.IsInt() {
			return Empty, fmt.Errorf("%w: text index is %s", ErrType, idx.Kind())
		}
		s := container.Text()
		i := idx.Int()
		if i < 0 || i >= int64(len(s)) {
			return Empty, fmt.Errorf("%w: %d (len=%d)", ErrIndexRange, i, len(s))
		}
		return FromString(s[i : i+1]), nil
	}
	return Empty, fmt.Errorf("%w: cannot index %s", ErrType, container.Kind())
}
