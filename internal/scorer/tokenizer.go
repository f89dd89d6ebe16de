package scorer

import (
	"bufio"
	"os"
	"strings"

	perr "gatekeep/internal/platform/errors"
)

// Tokenizer maps whitespace tokens onto vocabulary ids with an [UNK]
// fallback. Whole-word lookup only; the vocabularies shipped with the
// gateway's bundles are word level, not subword
type Tokenizer struct {
	vocab map[string]int64
	clsID int64
	sepID int64
	padID int64
	unkID int64
}

// LoadTokenizer builds the tokenizer from a vocab file, one token per line,
// line number = id
func LoadTokenizer(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "open vocab")
	}
	defer func() { _ = f.Close() }()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "scan vocab")
	}

	return &Tokenizer{
		vocab: vocab,
		clsID: vocab["[CLS]"],
		sepID: vocab["[SEP]"],
		padID: vocab["[PAD]"],
		unkID: vocab["[UNK]"],
	}, nil
}

// Encode produces padded input ids and the matching attention mask.
// Input longer than seqLen is truncated, keeping [CLS] and [SEP]
func (t *Tokenizer) Encode(text string, seqLen int) (ids, mask []int64) {
	ids = make([]int64, seqLen)
	mask = make([]int64, seqLen)
	for i := range ids {
		ids[i] = t.padID
	}

	pos := 0
	put := func(id int64) {
		if pos < seqLen {
			ids[pos] = id
			mask[pos] = 1
			pos++
		}
	}

	put(t.clsID)
	for _, tok := range strings.Fields(text) {
		if pos >= seqLen-1 { // reserve the final slot for [SEP]
			break
		}
		id, ok := t.vocab[tok]
		if !ok {
			id = t.unkID
		}
		put(id)
	}
	put(t.sepID)
	return ids, mask
}
