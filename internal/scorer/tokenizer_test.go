package scorer_test

import (
	"os"
	"path/filepath"
	"testing"

	"gatekeep/internal/platform/testkit"
	"gatekeep/internal/scorer"
)

func writeVocab(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	testkit.MustNoErr(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func TestLoadTokenizer_LineNumberIsID(t *testing.T) {
	path := writeVocab(t, "[PAD]\n[UNK]\n[CLS]\n[SEP]\nhello\nworld\n")
	tok, err := scorer.LoadTokenizer(path)
	testkit.MustNoErr(t, err)

	ids, mask := tok.Encode("hello world", 8)
	want := []int64{2, 4, 5, 3, 0, 0, 0, 0} // [CLS] hello world [SEP] pad...
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	wantMask := []int64{1, 1, 1, 1, 0, 0, 0, 0}
	for i := range wantMask {
		if mask[i] != wantMask[i] {
			t.Fatalf("mask = %v, want %v", mask, wantMask)
		}
	}
}

func TestEncode_UnknownTokenFallsBack(t *testing.T) {
	path := writeVocab(t, "[PAD]\n[UNK]\n[CLS]\n[SEP]\nhello\n")
	tok, err := scorer.LoadTokenizer(path)
	testkit.MustNoErr(t, err)

	ids, _ := tok.Encode("hello stranger", 6)
	if ids[2] != 1 { // [UNK]
		t.Fatalf("unknown token id = %d, want the [UNK] id 1 (ids %v)", ids[2], ids)
	}
}

func TestEncode_TruncationKeepsSep(t *testing.T) {
	path := writeVocab(t, "[PAD]\n[UNK]\n[CLS]\n[SEP]\na\nb\nc\nd\ne\n")
	tok, err := scorer.LoadTokenizer(path)
	testkit.MustNoErr(t, err)

	ids, mask := tok.Encode("a b c d e", 4)
	if ids[0] != 2 {
		t.Fatalf("first id = %d, want [CLS]", ids[0])
	}
	if ids[3] != 3 {
		t.Fatalf("last id = %d, want [SEP] after truncation (ids %v)", ids[3], ids)
	}
	for i, m := range mask {
		if m != 1 {
			t.Fatalf("mask[%d] = %d, truncated sequence must be fully attended", i, m)
		}
	}
}

func TestLoadTokenizer_MissingFile(t *testing.T) {
	_, err := scorer.LoadTokenizer(filepath.Join(t.TempDir(), "nope.txt"))
	testkit.MustErr(t, err)
}
