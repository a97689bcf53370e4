package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smile/fault"
)

func TestDefaultTiers(t *testing.T) {
	tab := Default()

	tests := []struct {
		name string
		v    int
		want int
	}{
		{"a", 'a', 1},
		{"z", 'z', 1},
		{"b", 'b', 2},
		{"t", 't', 2},
		{"y", 'y', 2},
		{"0", '0', 3},
		{"9", '9', 3},
		{"nul", 0x00, 0},
		{"A", 'A', 0},
		{"space", ' ', 0},
		{"negative", -1, 0},
		{"overflow", 0x161, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tab.Byte(tt.v); got != tt.want {
				t.Errorf("Byte(%#x) = %d, want %d", tt.v, got, tt.want)
			}
		})
	}
}

func TestByteMembership(t *testing.T) {
	tab := Default()
	for b := 0; b < 256; b++ {
		in := strings.IndexByte(Alphabet, byte(b)) >= 0
		if tab.Safe8(b) != in {
			t.Errorf("Safe8(%#x) = %v, want %v", b, tab.Safe8(b), in)
		}
	}
}

func TestWordScore(t *testing.T) {
	tab := Default()
	for w := 0; w < 65536; w++ {
		hi, lo := tab.Byte(w>>8), tab.Byte(w&0xff)
		want := 0
		if hi != 0 && lo != 0 {
			want = hi + lo
		}
		if got := tab.Word(w); got != want {
			t.Fatalf("Word(%#04x) = %d, want %d", w, got, want)
		}
	}
	assert.Equal(t, 2, tab.Word(0x6e6e))
	assert.Equal(t, 0, tab.Word(0x0d0a))
	assert.Equal(t, 0, tab.Word(-2))
	assert.Equal(t, 0, tab.Word(0x10000))
}

func TestDefaultGroups(t *testing.T) {
	tab := Default()
	for score, group := range []string{Tier1, Tier2, Tier3} {
		for i := 0; i < len(group); i++ {
			assert.Equal(t, score+1, tab.Byte(int(group[i])), "char %q", group[i])
		}
	}
	assert.Len(t, Tier1, 13)
	assert.Len(t, Tier2, 13)
	assert.Len(t, Tier3, 10)
	assert.Len(t, tab.Bytes(), 36)
	assert.Len(t, tab.Words(), 36*36)
}

func TestUnevenGroups(t *testing.T) {
	tab, err := New("abc", "d", "efg")
	require.NoError(t, err)

	want := map[byte]int{'a': 1, 'b': 1, 'c': 1, 'd': 2, 'e': 3, 'f': 3, 'g': 3}
	for c, score := range want {
		assert.Equal(t, score, tab.Byte(int(c)), "char %q", c)
	}
	assert.Len(t, tab.Bytes(), 7)
	assert.Len(t, tab.Words(), 49)
}

func TestNewRejects(t *testing.T) {
	_, err := New("", "", "")
	assert.True(t, fault.Is(err, fault.ParameterRange))

	_, err = New("abc", "a", "")
	assert.True(t, fault.Is(err, fault.ParameterRange))
}
