package scorer

import (
	"os"
	"path/filepath"

	perr "gatekeep/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

// Manifest describes a model bundle directory. The bundle is produced by the
// training job and downloaded as an artifact; this code only reads it
type Manifest struct {
	// Model is the ONNX graph file, relative to the bundle dir
	Model string `yaml:"model"`
	// Vocab is the tokenizer vocabulary file, relative to the bundle dir
	Vocab string `yaml:"vocab"`
	// SeqLen is the fixed input sequence length
	SeqLen int `yaml:"seq_len"`
	// Labels are the output classes in logit order
	Labels []string `yaml:"labels"`
	// BlockedLabel names the class whose probability the gateway thresholds
	BlockedLabel string `yaml:"blocked_label"`
}

// manifestFile is the fixed name inside a bundle dir
const manifestFile = "manifest.yaml"

// LoadManifest reads and validates manifest.yaml from dir
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read bundle manifest")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "parse bundle manifest")
	}

	if m.Model == "" {
		m.Model = "model.onnx"
	}
	if m.Vocab == "" {
		m.Vocab = "vocab.txt"
	}
	if m.SeqLen <= 0 {
		m.SeqLen = 128
	}
	if len(m.Labels) == 0 {
		return nil, perr.Unavailablef("bundle manifest has no labels")
	}
	if m.BlockedLabel == "" {
		return nil, perr.Unavailablef("bundle manifest has no blocked_label")
	}
	return &m, nil
}

// BlockedIndex returns the logit index of the blocked class
func (m *Manifest) BlockedIndex() (int, error) {
	for i, l := range m.Labels {
		if l == m.BlockedLabel {
			return i, nil
		}
	}
	return 0, perr.Unavailablef("blocked_label %q not in labels", m.BlockedLabel)
}
