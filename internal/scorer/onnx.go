package scorer

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"

	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/platform/logger"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX scores text through an onnxruntime session built from a model bundle
// directory (manifest.yaml, model graph, vocab). Loading is explicit and
// idempotent: one attempt per process unless Reload forces another
type ONNX struct {
	dir string
	log *logger.Logger

	mu        sync.Mutex
	attempted bool
	loadErr   error

	session       *ort.AdvancedSession
	tokenizer     *Tokenizer
	seqLen        int
	blockedIdx    int
	numLabels     int
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// NewONNX constructs an unloaded scorer over a bundle directory
func NewONNX(bundleDir string) *ONNX {
	return &ONNX{dir: bundleDir, log: logger.Named("scorer")}
}

// Load builds the session. Repeat calls return the outcome of the first
// attempt, success or failure, without touching the filesystem again
func (s *ONNX) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempted {
		return s.loadErr
	}
	s.attempted = true
	s.loadErr = s.load()
	if s.loadErr != nil {
		s.log.Error().Err(s.loadErr).Str("bundle", s.dir).Msg("model load failed")
	} else {
		s.log.Info().Str("bundle", s.dir).Int("seq_len", s.seqLen).Msg("model loaded")
	}
	return s.loadErr
}

// Reload forces a fresh load attempt, tearing down any existing session
func (s *ONNX) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.teardown()
	s.attempted = false
	s.mu.Unlock()
	return s.Load(ctx)
}

// Ready reports whether a session is live
func (s *ONNX) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Score runs one inference and returns the blocked-class probability.
// The session and its tensors are reused across calls, so scoring is
// serialized on the internal mutex
func (s *ONNX) Score(ctx context.Context, text string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return 0, ErrUnavailable
	}

	ids, mask := s.tokenizer.Encode(text, s.seqLen)
	copy(s.inputIDs.GetData(), ids)
	copy(s.attentionMask.GetData(), mask)

	if err := s.session.Run(); err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeUnavailable, "onnx run")
	}

	logits := s.output.GetData()
	if len(logits) < s.numLabels {
		return 0, perr.Unavailablef("model produced %d logits, want %d", len(logits), s.numLabels)
	}
	return softmaxAt(logits[:s.numLabels], s.blockedIdx), nil
}

// load does the actual bundle read and session construction. Caller holds mu
func (s *ONNX) load() error {
	if s.dir == "" {
		return perr.Unavailablef("bundle dir is empty")
	}

	man, err := LoadManifest(s.dir)
	if err != nil {
		return err
	}
	blockedIdx, err := man.BlockedIndex()
	if err != nil {
		return err
	}

	modelPath := filepath.Join(s.dir, man.Model)
	if _, err := os.Stat(modelPath); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "model file missing at %s", modelPath)
	}

	tok, err := LoadTokenizer(filepath.Join(s.dir, man.Vocab))
	if err != nil {
		return err
	}

	if lib := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnavailable, "initialize onnxruntime")
		}
	}

	inputShape := ort.NewShape(1, int64(man.SeqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "allocate input_ids tensor")
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		inputIDs.Destroy()
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "allocate attention_mask tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(man.Labels))))
	if err != nil {
		inputIDs.Destroy()
		attnMask.Destroy()
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "allocate output tensor")
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		attnMask.Destroy()
		output.Destroy()
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "create onnx session")
	}

	s.session = session
	s.tokenizer = tok
	s.seqLen = man.SeqLen
	s.blockedIdx = blockedIdx
	s.numLabels = len(man.Labels)
	s.inputIDs = inputIDs
	s.attentionMask = attnMask
	s.output = output
	return nil
}

// teardown releases session resources. Caller holds mu
func (s *ONNX) teardown() {
	if s.session != nil {
		_ = s.session.Destroy()
		s.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{s.inputIDs, s.attentionMask} {
		if t != nil {
			t.Destroy()
		}
	}
	if s.output != nil {
		s.output.Destroy()
	}
	s.inputIDs, s.attentionMask, s.output = nil, nil, nil
}

// Close releases the session; the scorer reports unavailable afterwards
func (s *ONNX) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
}

// softmaxAt returns the softmax probability of logits[idx]
func softmaxAt(logits []float32, idx int) float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}
	var sum float64
	for _, l := range logits {
		sum += math.Exp(float64(l - maxLogit))
	}
	return math.Exp(float64(logits[idx]-maxLogit)) / sum
}
