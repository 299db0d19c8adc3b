package ir

import "github.com/shopspring/decimal"

// Equal reports whether two values are equal. Numbers compare by value, so
// IRInt(2) equals IRDecimal 2.0. Arrays and objects compare element-wise.
func Equal(a, b IRValue) bool {
	if an, ok := asDecimal(a); ok {
		bn, ok := asDecimal(b)
		return ok && an.Equal(bn)
	}

	switch av := a.(type) {
	case nil, IRNull:
		switch b.(type) {
		case nil, IRNull:
			return true
		}
		return false
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// CompareNumeric orders two numeric values. ok is false when either value
// is not a number (IRInt or IRDecimal).
func CompareNumeric(a, b IRValue) (cmp int, ok bool) {
	an, aok := asDecimal(a)
	bn, bok := asDecimal(b)
	if !aok || !bok {
		return 0, false
	}
	return an.Cmp(bn), true
}

// IsNumber reports whether v is an IRInt or IRDecimal.
func IsNumber(v IRValue) bool {
	_, ok := asDecimal(v)
	return ok
}

func asDecimal(v IRValue) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case IRInt:
		return decimal.NewFromInt(int64(n)), true
	case IRDecimal:
		return n.Decimal, true
	}
	return decimal.Decimal{}, false
}
