package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/trapwire-ai/trapwire/pkg/httputil"
)

// scamSeed is one canonical scam opener used to build the embedding index.
type scamSeed struct {
	Text     string
	Category string
}

// scamSeeds are representative openers per fraud family. The semantic
// detector scores inbound text by similarity to these; it is an auxiliary
// diagnostic signal, never required for the verdict.
var scamSeeds = []scamSeed{
	{"Your bank account has been blocked, verify immediately to avoid suspension", "account_threat"},
	{"Congratulations you have won 25 lakh in the lottery, pay the processing fee to claim", "lottery_lure"},
	{"Your KYC has expired, click this link and update your details within 24 hours", "kyc_phishing"},
	{"This is calling from the bank, share the OTP you just received to reverse the transaction", "credential_harvest"},
	{"An amount has been credited to your account by mistake, please transfer it back to this UPI id", "refund_redirection"},
	{"Police complaint has been registered against your PAN card, pay the fine now to avoid arrest", "authority_threat"},
	{"Download this app to receive your refund directly in your account", "malware_delivery"},
}

// SemanticResult carries the top similarity match for diagnostics.
type SemanticResult struct {
	Score    float32 `json:"score"`
	Category string  `json:"category"`
	IsScam   bool    `json:"is_scam"`
}

// SemanticDetector scores text by embedding similarity against seed scam
// examples, using chromem-go with Ollama embeddings.
type SemanticDetector struct {
	db         *chromem.DB
	collection *chromem.Collection
	threshold  float32

	mu    sync.RWMutex
	ready bool
}

// NewSemanticDetector builds a detector backed by an Ollama embedding
// endpoint. Patterns are not loaded yet; call LoadSeeds with a timeout.
func NewSemanticDetector(ollamaURL, model string) (*SemanticDetector, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	db := chromem.NewDB()
	collection, err := db.CreateCollection("scam_seeds", nil, newOllamaEmbeddingFunc(model, ollamaURL))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &SemanticDetector{db: db, collection: collection, threshold: 0.65}, nil
}

// LoadSeeds embeds the seed corpus. Requires the embedding endpoint to be
// reachable; on failure the detector stays not-ready and Detect returns nil.
func (sd *SemanticDetector) LoadSeeds(ctx context.Context) error {
	for i, seed := range scamSeeds {
		err := sd.collection.AddDocument(ctx, chromem.Document{
			ID:       fmt.Sprintf("seed-%d", i),
			Content:  seed.Text,
			Metadata: map[string]string{"category": seed.Category},
		})
		if err != nil {
			return fmt.Errorf("embed seed %d: %w", i, err)
		}
	}
	sd.mu.Lock()
	sd.ready = true
	sd.mu.Unlock()
	return nil
}

// IsReady reports whether the seed corpus loaded successfully.
func (sd *SemanticDetector) IsReady() bool {
	sd.mu.RLock()
	defer sd.mu.RUnlock()
	return sd.ready
}

// Detect returns the closest seed match, or nil if the detector is not ready.
func (sd *SemanticDetector) Detect(ctx context.Context, text string) (*SemanticResult, error) {
	if !sd.IsReady() || text == "" {
		return nil, nil
	}

	results, err := sd.collection.Query(ctx, text, 1, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}
	if len(results) == 0 {
		return &SemanticResult{}, nil
	}

	top := results[0]
	return &SemanticResult{
		Score:    top.Similarity,
		Category: top.Metadata["category"],
		IsScam:   top.Similarity >= sd.threshold,
	}, nil
}

// newOllamaEmbeddingFunc adapts Ollama's /api/embeddings endpoint to the
// chromem embedding contract.
func newOllamaEmbeddingFunc(model, baseURL string) chromem.EmbeddingFunc {
	client := httputil.Client(httputil.TierMedium)

	return func(ctx context.Context, text string) ([]float32, error) {
		body, err := json.Marshal(map[string]string{"model": model, "prompt": text})
		if err != nil {
			return nil, fmt.Errorf("marshal embedding request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create embedding request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding request: %w", err)
		}
		defer httputil.DrainAndClose(resp.Body)

		if resp.StatusCode != http.StatusOK {
			msg, _ := httputil.ReadErrorBody(resp.Body)
			return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, msg)
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode embedding response: %w", err)
		}
		return result.Embedding, nil
	}
}
