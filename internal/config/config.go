package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Loader   LoaderConfig   `yaml:"loader" mapstructure:"loader"`
	Pattern  PatternConfig  `yaml:"pattern" mapstructure:"pattern"`
	Vision   VisionConfig   `yaml:"vision" mapstructure:"vision"`
	OCR      OCRConfig      `yaml:"ocr" mapstructure:"ocr"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PipelineConfig configures scheduling and escalation behavior.
type PipelineConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	// FirstPage/LastPage restrict the run to a 1-based inclusive page range;
	// zero means unrestricted.
	FirstPage int `yaml:"first_page" mapstructure:"first_page"`
	LastPage  int `yaml:"last_page" mapstructure:"last_page"`
	// MinYield and MinConfidence gate escalation from layer 1 to layer 2: a
	// page clearing both is sufficient and never escalates.
	MinYield      int     `yaml:"min_yield" mapstructure:"min_yield"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	// FailureYield gates escalation to layer 3: only pages whose combined
	// layer 1+2 yield is at or below this count are treated as failed.
	FailureYield int `yaml:"failure_yield" mapstructure:"failure_yield"`
	// LayerTimeoutSecs bounds each layer attempt per page; a timed-out layer
	// is zero-yield and escalation proceeds as if it failed.
	LayerTimeoutSecs int `yaml:"layer_timeout_secs" mapstructure:"layer_timeout_secs"`
	// ExplodeFinishPrices splits a one-price-many-finishes row into one
	// record per finish code instead of a single multi-valued finish field.
	ExplodeFinishPrices bool `yaml:"explode_finish_prices" mapstructure:"explode_finish_prices"`
}

// LoaderConfig configures document loading and rasterization.
type LoaderConfig struct {
	RasterDPI int `yaml:"raster_dpi" mapstructure:"raster_dpi"`
}

// PatternConfig configures the normalization library.
type PatternConfig struct {
	// FinishVocabularyPath points to a YAML file listing finish codes; empty
	// uses the built-in BHMA defaults.
	FinishVocabularyPath string `yaml:"finish_vocabulary_path" mapstructure:"finish_vocabulary_path"`
}

// VisionConfig configures the layer 3 table-region detector.
type VisionConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ModelPath is the ONNX table-detection model on local storage; no
	// network fetch ever happens.
	ModelPath string `yaml:"model_path" mapstructure:"model_path"`
	// RuntimePath is the onnxruntime shared library location.
	RuntimePath   string  `yaml:"runtime_path" mapstructure:"runtime_path"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	InputSize     int     `yaml:"input_size" mapstructure:"input_size"`
}

// OCRConfig configures the tesseract engine pool.
type OCRConfig struct {
	Languages string `yaml:"languages" mapstructure:"languages"`
	PoolSize  int    `yaml:"pool_size" mapstructure:"pool_size"`
}

// StoreConfig configures the optional run-audit database.
type StoreConfig struct {
	AuditDB string `yaml:"audit_db" mapstructure:"audit_db"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.min_yield", 3)
	v.SetDefault("pipeline.min_confidence", 0.5)
	v.SetDefault("pipeline.failure_yield", 0)
	v.SetDefault("pipeline.layer_timeout_secs", 120)
	v.SetDefault("pipeline.explode_finish_prices", false)
	v.SetDefault("loader.raster_dpi", 200)
	v.SetDefault("vision.enabled", true)
	v.SetDefault("vision.min_confidence", 0.5)
	v.SetDefault("vision.input_size", 640)
	v.SetDefault("ocr.languages", "eng")
	v.SetDefault("ocr.pool_size", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
