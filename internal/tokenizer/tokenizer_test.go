package tokenizer

import (
	"reflect"
	"strings"
	"testing"

	"github.com/raymondhs/char-rnn/internal/vocab"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"ascii", "ab c", []string{"a", "b", " ", "c"}},
		{"two byte", "héllo", []string{"h", "é", "l", "l", "o"}},
		{"three byte", "a€b", []string{"a", "€", "b"}},
		{"four byte", "x😀", []string{"x", "😀"}},
		{"stray continuation", "a\x80b", []string{"a", "\x80", "b"}},
		{"truncated lead", "a\xe2\x82", []string{"a", "\xe2", "\x82"}},
		{"invalid lead", "\xffz", []string{"\xff", "z"}},
		{"literal replacement char", "�", []string{"�"}},
	}

	for _, tc := range tests {
		got := Split(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: Split(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
		if strings.Join(got, "") != tc.in {
			t.Errorf("%s: tokens do not reassemble the input", tc.name)
		}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"a", true},
		{"é", true},
		{"�", true},
		{"\xff", false},
		{"\x80", false},
		{"", false},
		{"ab", false},
	}
	for _, tc := range tests {
		if got := Valid(tc.in); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCharTokenizerEncodeDecode(t *testing.T) {
	t.Parallel()

	v, err := vocab.New(map[string]int{"a": 1, "A": 2, "b": 3, vocab.Unknown: 4})
	if err != nil {
		t.Fatalf("vocab: %v", err)
	}
	var tok Tokenizer = NewCharTokenizer(v)

	ids, err := tok.Encode("aBb\xff")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []int{1, 4, 3, 4}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("Encode = %v, want %v", ids, want)
	}

	text, err := tok.Decode([]int{2, 3, 4})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if text != "Ab<unk>" {
		t.Fatalf("Decode = %q, want %q", text, "Ab<unk>")
	}

	if _, err := tok.Decode([]int{9}); err == nil {
		t.Fatal("expected error for out-of-range id")
	}
}
