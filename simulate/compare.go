package simulate

import (
	"bytes"
	"fmt"
)

type CompareResult struct {
	Passed        bool
	WantLen       int
	GotLen        int
	FirstMismatch int
}

// Compare reports whether got reproduces want and, if not, the first
// offset where they part.
func Compare(want, got []byte) CompareResult {
	result := CompareResult{
		WantLen:       len(want),
		GotLen:        len(got),
		FirstMismatch: -1,
	}
	if bytes.Equal(want, got) {
		result.Passed = true
		return result
	}
	for i := 0; i < len(want) && i < len(got); i++ {
		if want[i] != got[i] {
			result.FirstMismatch = i
			break
		}
	}
	if result.FirstMismatch == -1 {
		result.FirstMismatch = min(len(want), len(got))
	}
	return result
}

// Dump renders a byte stream as the hex lines used in failure reports.
func Dump(label string, data []byte) []string {
	var out []string
	for i := 0; i < len(data); i += 16 {
		end := min(i+16, len(data))
		out = append(out, fmt.Sprintf("%s %04x: % x", label, i, data[i:end]))
	}
	if len(data) == 0 {
		out = append(out, label+" (empty)")
	}
	return out
}
