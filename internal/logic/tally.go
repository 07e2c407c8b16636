package logic

// Encode splits n into tally units: longs worth base each, plus the
// remaining shorts worth one each. longs*base+shorts == n and
// 0 <= shorts < base for any n >= 0 and base > 0.
func Encode(n, base int) (longs, shorts int) {
	return n / base, n % base
}
