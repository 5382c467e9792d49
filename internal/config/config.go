package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/upashthiti/upashthiti/internal/constants"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Detector DetectorConfig
	Registry RegistryConfig
	Ledger   LedgerConfig
	Match    MatchConfig
	Web      WebConfig
	Models   ModelCatalog
}

type DetectorConfig struct {
	URL   string // InsightFace analysis server, empty disables recognition
	Model string // defaults to buffalo_l
}

type RegistryConfig struct {
	Path string // embeddings database file (default embeddings_db.json)
}

type LedgerConfig struct {
	Path string // attendance log file (default attendance.csv)
}

type MatchConfig struct {
	Threshold float64 // minimum confidence for a positive identification
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins string // comma-separated CORS origins, localhost is always allowed
}

type ModelCatalog struct {
	Models map[string]ModelInfo `yaml:"models"`
}

type ModelInfo struct {
	Dim      int    `yaml:"dim"`
	Detector string `yaml:"detector"`
	Embedder string `yaml:"embedder"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var catalog ModelCatalog
	if err := yaml.Unmarshal(modelsYAML, &catalog); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	return &Config{
		Detector: DetectorConfig{
			URL:   os.Getenv("DETECTOR_URL"),
			Model: envString("DETECTOR_MODEL", "buffalo_l"),
		},
		Registry: RegistryConfig{
			Path: envString("REGISTRY_PATH", "embeddings_db.json"),
		},
		Ledger: LedgerConfig{
			Path: envString("ATTENDANCE_PATH", "attendance.csv"),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", constants.DefaultMatchThreshold),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
		},
		Models: catalog,
	}
}

// EmbeddingDim returns the embedding dimension for the configured detector
// model, falling back to the buffalo_l dimension for unknown models.
func (c *Config) EmbeddingDim() int {
	if info, ok := c.Models.Models[c.Detector.Model]; ok && info.Dim > 0 {
		return info.Dim
	}
	return constants.EmbeddingDim
}
