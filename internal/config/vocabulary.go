package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/catalog-group/pricebook-cli/internal/pattern"
)

// vocabularyFile is the on-disk shape of a finish vocabulary.
type vocabularyFile struct {
	Finishes []string `yaml:"finishes"`
}

// LoadVocabulary reads the finish vocabulary from the configured YAML file,
// or returns the built-in defaults when no path is set.
func LoadVocabulary(cfg PatternConfig) (*pattern.Vocabulary, error) {
	if cfg.FinishVocabularyPath == "" {
		return pattern.DefaultVocabulary(), nil
	}

	data, err := os.ReadFile(cfg.FinishVocabularyPath)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read vocabulary %s", cfg.FinishVocabularyPath)
	}

	var vf vocabularyFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, eris.Wrapf(err, "config: parse vocabulary %s", cfg.FinishVocabularyPath)
	}
	if len(vf.Finishes) == 0 {
		return nil, eris.Errorf("config: vocabulary %s lists no finishes", cfg.FinishVocabularyPath)
	}

	return pattern.NewVocabulary(vf.Finishes), nil
}
