package domain

// RowLabel encodes a zero-based table-row index as A..Z, AA, AB, ... ZZ, AAA.
func RowLabel(index int) string {
	if index < 0 {
		return ""
	}
	var buf []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}

// RowLabelLess orders labels the way rows are laid out: shorter labels
// first, then lexically.
func RowLabelLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
