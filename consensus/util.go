package consensus

// addUint64 returns a+b, or an overflow error. Every monetary sum in this
// package goes through this helper; balance conservation (spec §8 invariant
// 1) depends on never silently wrapping.
func addUint64(a, b uint64) (uint64, error) {
	if b > (^uint64(0) - a) {
		return 0, NewError(ErrTransaction, "overflow computing %d + %d", a, b)
	}
	return a + b, nil
}

// subUint64 returns a-b, or an underflow error.
func subUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, NewError(ErrTransaction, "underflow computing %d - %d", a, b)
	}
	return a - b, nil
}

// CheckedAdd is addUint64 exposed for other packages that need the same
// overflow-checked accumulation (e.g. chain.Chain summing candidate fees).
func CheckedAdd(a, b uint64) (uint64, error) { return addUint64(a, b) }

// sumOutputs adds up the Value of every output, checked.
func sumOutputs(outputs []TxOutput) (uint64, error) {
	var total uint64
	var err error
	for _, o := range outputs {
		total, err = addUint64(total, o.Value)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
