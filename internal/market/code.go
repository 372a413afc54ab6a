package market

// codePaddingDigit is the trailing digit the exchange appends to 4-character
// securities codes to form the 5-character representation. "72030" and
// "7203" identify the same instrument.
const codePaddingDigit = '0'

// NormalizeCode collapses the two representations of a securities code into
// a single join key: a 5-character code ending in the padding digit is
// reduced to its 4-character form, everything else passes through unchanged.
// The function is pure, deterministic and idempotent; it must be applied to
// both sides of any instrument/bar join before comparing codes.
func NormalizeCode(code string) string {
	if len(code) == 5 && code[4] == codePaddingDigit {
		return code[:4]
	}
	return code
}
