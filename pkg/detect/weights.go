package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// defaultKeywordWeights is the built-in risk vocabulary. Single-word entries
// are matched per token, multi-word entries against the full lowercased text.
// Weights are additive; the verdict threshold sits on the same scale.
var defaultKeywordWeights = map[string]float64{
	// Financial urgency / account threats
	"account blocked": 2.0,
	"blocked":         1.2,
	"suspend":         1.2,
	"frozen":          1.2,
	"expired":         0.8,
	"urgent":          1.0,
	"immediately":     1.0,
	"within 24 hours": 1.5,
	"last chance":     1.5,
	"act now":         1.5,

	// Verification / credential pressure
	"verify":   1.2,
	"confirm":  0.8,
	"update":   0.6,
	"kyc":      1.5,
	"otp":      1.5,
	"password": 1.0,
	"pin":      0.8,
	"cvv":      1.8,

	// Payment rails
	"upi":         1.2,
	"paytm":       1.0,
	"phonepe":     1.0,
	"gpay":        1.0,
	"refund":      1.0,
	"credited":    1.0,
	"debited":     1.0,
	"transferred": 0.8,
	"money":       0.6,
	"amount":      0.6,

	// Bank / authority framing
	"bank":        1.0,
	"account":     0.8,
	"credit card": 1.2,
	"debit card":  1.2,
	"pan card":    1.5,
	"adhaar":      1.5,
	"police":      1.2,
	"arrest":      1.5,
	"rbi":         1.2,

	// Lure framing
	"winner":     1.5,
	"prize":      1.5,
	"lottery":    1.8,
	"lakh":       1.0,
	"crore":      1.0,
	"free":       0.5,
	"offer":      0.5,
	"click here": 1.5,
	"download":   0.8,
	"apk":        1.5,
	"hack":       1.0,
	"compromised": 1.2,
}

// victimPhrases dampen the score when the message reads like a victim's own
// first-person complaint rather than an attack. A bank-fraud victim pasting
// the SMS they received should not be classified as the attacker.
var victimPhrases = map[string]float64{
	"not done by me":        2.0,
	"i did not do":          2.0,
	"i didn't do":           2.0,
	"please help me":        1.5,
	"my money is gone":      1.5,
	"someone transferred my": 1.5,
	"i lost my money":       1.5,
	"i have been scammed":   2.5,
	"i got scammed":         2.5,
}

// Thresholds holds the score cutoffs for the scam verdict. Short messages
// carry less signal per keyword hit, so they need a higher bar.
type Thresholds struct {
	Base        float64 `yaml:"base"`
	Short       float64 `yaml:"short"`
	ShortRunes  int     `yaml:"short_runes"`
	HistoryBump float64 `yaml:"history_bump"`
}

// detectorConfig is the yaml shape of an optional detector_weights.yaml.
type detectorConfig struct {
	KeywordWeights map[string]float64 `yaml:"keyword_weights"`
	VictimPhrases  map[string]float64 `yaml:"victim_phrases"`
	Thresholds     *Thresholds        `yaml:"thresholds"`
}

var (
	cfgMu          sync.RWMutex
	keywordWeights = defaultKeywordWeights
	dampeners      = victimPhrases
	thresholds     = Thresholds{Base: 3.0, Short: 4.0, ShortRunes: 20, HistoryBump: 0.5}
)

// GetKeywordWeights returns the active keyword weight table.
func GetKeywordWeights() map[string]float64 {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return keywordWeights
}

// GetThresholds returns the active verdict thresholds.
func GetThresholds() Thresholds {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return thresholds
}

func getDampeners() map[string]float64 {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return dampeners
}

// LoadDetectorConfig reads detector_weights.yaml from configDir and replaces
// the built-in tables. Missing file is not an error; the defaults stay live.
// Loaded entries replace the whole table rather than merging, so a deployment
// sees exactly the weights it shipped.
func LoadDetectorConfig(configDir string) error {
	path := filepath.Join(configDir, "detector_weights.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read detector config: %w", err)
	}

	var cfg detectorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse detector config: %w", err)
	}

	cfgMu.Lock()
	defer cfgMu.Unlock()
	if len(cfg.KeywordWeights) > 0 {
		keywordWeights = cfg.KeywordWeights
	}
	if len(cfg.VictimPhrases) > 0 {
		dampeners = cfg.VictimPhrases
	}
	if cfg.Thresholds != nil {
		t := *cfg.Thresholds
		if t.ShortRunes <= 0 {
			t.ShortRunes = thresholds.ShortRunes
		}
		thresholds = t
	}
	return nil
}

// FindConfigDir locates a config directory: TRAPWIRE_CONFIG_DIR first, then
// ./config next to the binary's working directory. Returns "" if none exist.
func FindConfigDir() string {
	if dir := os.Getenv("TRAPWIRE_CONFIG_DIR"); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	if _, err := os.Stat("config"); err == nil {
		return "config"
	}
	return ""
}

// ResetConfig restores the built-in tables. Test helper.
func ResetConfig() {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	keywordWeights = defaultKeywordWeights
	dampeners = victimPhrases
	thresholds = Thresholds{Base: 3.0, Short: 4.0, ShortRunes: 20, HistoryBump: 0.5}
}
