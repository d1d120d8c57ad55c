package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/trapwire-ai/trapwire/pkg/agent"
	"github.com/trapwire-ai/trapwire/pkg/callback"
	"github.com/trapwire-ai/trapwire/pkg/config"
	"github.com/trapwire-ai/trapwire/pkg/detect"
	"github.com/trapwire-ai/trapwire/pkg/engage"
	"github.com/trapwire-ai/trapwire/pkg/intel"
	"github.com/trapwire-ai/trapwire/pkg/session"
)

const Version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		port := ""
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		runHTTPServer(port)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: trapwire scan <text>")
			os.Exit(1)
		}
		runCLIScan(strings.Join(os.Args[2:], " "))
	case "version":
		fmt.Printf("trapwire v%s\n", Version)
		fmt.Println("Scam-engagement decision gateway")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("trapwire v%s - scam-engagement decision gateway\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  trapwire serve [port]   Start HTTP server (default: 8080)")
	fmt.Println("  trapwire scan <text>    Classify and extract from one message")
	fmt.Println("  trapwire version        Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  trapwire serve 8080")
	fmt.Println("  trapwire scan \"Your account is blocked, verify at http://example.com\"")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  TRAPWIRE_API_KEY        Shared secret for X-API-Key auth")
	fmt.Println("  TRAPWIRE_CALLBACK_URL   Final-report endpoint")
	fmt.Println("  TRAPWIRE_LLM_PROVIDER   Provider: groq, openrouter, ollama, none")
	fmt.Println("  TRAPWIRE_REDIS_ADDR     Redis session store (default: in-memory)")
	fmt.Println("  TRAPWIRE_DATABASE_URL   Postgres report archive (optional)")
}

// buildPipeline wires the store, responder and dispatcher from config.
// Every optional collaborator degrades to disabled rather than failing
// startup, except the stores we were explicitly told to use.
func buildPipeline(cfg *config.Config) (*engage.Pipeline, session.Store, *callback.Dispatcher) {
	if err := detect.LoadDetectorConfig(configDir(cfg)); err != nil {
		log.Printf("[STARTUP] Warning: detector weight overrides not loaded: %v", err)
	}

	var store session.Store
	if cfg.RedisAddr != "" {
		rs, err := session.NewRedisStore(cfg.RedisAddr, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("[STARTUP] FATAL: redis store init failed: %v", err)
		}
		store = rs
		log.Printf("[STARTUP] Session store: redis (%s)", cfg.RedisAddr)
	} else {
		store = session.NewMemoryStore(session.WithMaxAge(cfg.SessionTTL))
		log.Println("[STARTUP] Session store: in-memory")
	}

	client := agent.NewClient(agent.Config{
		Provider: agent.Provider(cfg.LLMProvider),
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.LLMTimeout,
	})
	if client != nil {
		log.Printf("[STARTUP] Generative persona enabled (provider: %s)", cfg.LLMProvider)
	} else {
		log.Println("[STARTUP] Generative persona disabled, canned replies only")
	}
	responder := agent.NewResponder(client)

	var dispatcher *callback.Dispatcher
	if cfg.CallbackURL != "" {
		var archive *callback.Archive
		if cfg.DatabaseURL != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			a, err := callback.NewArchive(ctx, cfg.DatabaseURL)
			cancel()
			if err != nil {
				log.Printf("[STARTUP] Report archive disabled (init failed: %v)", err)
			} else {
				archive = a
				log.Println("[STARTUP] Report archive enabled (postgres)")
			}
		}
		reporter := callback.NewHTTPReporter(cfg.CallbackURL, cfg.CallbackMaxAttempts)
		dispatcher = callback.NewDispatcher(reporter, archive, cfg.CallbackTurnThreshold)
		dispatcher.SetTimeout(cfg.CallbackTimeout)
		log.Printf("[STARTUP] Callback delivery enabled (threshold: %d messages)", cfg.CallbackTurnThreshold)
	} else {
		log.Println("[STARTUP] Callback delivery disabled")
	}

	p := engage.NewPipeline(store, responder, dispatcher)

	if cfg.EnableSemantics {
		semantic, err := detect.NewSemanticDetector(cfg.OllamaURL, cfg.EmbedModel)
		if err != nil {
			log.Printf("[STARTUP] Semantic detection disabled (init failed: %v)", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			err := semantic.LoadSeeds(ctx)
			cancel()
			if err != nil {
				log.Printf("[STARTUP] Semantic detection disabled (seed load failed: %v)", err)
			} else {
				p.SetSemanticDetector(semantic)
				log.Println("[STARTUP] Semantic detection enabled (chromem-go + Ollama embeddings)")
			}
		}
	}

	return p, store, dispatcher
}

func configDir(cfg *config.Config) string {
	if cfg.ConfigDir != "" {
		return cfg.ConfigDir
	}
	return detect.FindConfigDir()
}

// wireMessage mirrors the inbound request shape: a current turn plus
// optional caller-supplied history for sessions this instance has not
// seen yet.
type wireMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type messageRequest struct {
	SessionID string        `json:"sessionId"`
	Message   wireMessage   `json:"message"`
	History   []wireMessage `json:"conversationHistory"`
}

func runHTTPServer(portArg string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()
	if portArg != "" {
		fmt.Sscanf(portArg, "%d", &cfg.Port)
	}

	pipeline, store, dispatcher := buildPipeline(cfg)
	defer store.Close()

	app := fiber.New(fiber.Config{
		AppName: "trapwire",
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": Version})
	})

	api := app.Group("/api/v1", func(c fiber.Ctx) error {
		if cfg.APIKey != "" && c.Get("X-API-Key") != cfg.APIKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error", "error": "invalid or missing API key",
			})
		}
		return c.Next()
	})

	api.Post("/message", func(c fiber.Ctx) error {
		var req messageRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status": "error", "error": "invalid request body",
			})
		}
		if req.Message.Text == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"status": "error", "error": "message.text is required",
			})
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		history := make([]session.Message, 0, len(req.History))
		for _, m := range req.History {
			history = append(history, session.Message{
				Sender:    session.NormalizeSender(m.Sender),
				Text:      m.Text,
				Timestamp: m.Timestamp,
			})
		}

		resp, err := pipeline.HandleMessage(c.Context(), engage.Request{
			SessionID: req.SessionID,
			Sender:    req.Message.Sender,
			Text:      req.Message.Text,
			Timestamp: req.Message.Timestamp,
			History:   history,
		})
		if err != nil {
			if errors.Is(err, engage.ErrInvalidRequest) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"status": "error", "error": err.Error(),
				})
			}
			// Store or backend fault, not the caller's.
			log.Printf("[WARN] message pipeline failed for session %s: %v", req.SessionID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error", "error": "internal error",
			})
		}

		return c.JSON(fiber.Map{
			"status":       "success",
			"reply":        resp.Reply,
			"sessionId":    resp.SessionID,
			"scamDetected": resp.ScamDetected,
			"stage":        resp.Stage,
		})
	})

	api.Get("/session/:id", func(c fiber.Ctx) error {
		s, err := store.Get(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status": "error", "error": "session lookup failed",
			})
		}
		if s == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status": "error", "error": "unknown session",
			})
		}
		return c.JSON(s)
	})

	api.Get("/stats", func(c fiber.Ctx) error {
		return c.JSON(store.Stats())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("[STARTUP] trapwire v%s listening on %s", Version, addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("[STARTUP] FATAL: server failed: %v", err)
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}

// runCLIScan runs the stateless half of the pipeline over one message and
// prints the result, for quick manual checks without a server.
func runCLIScan(text string) {
	if err := detect.LoadDetectorConfig(detect.FindConfigDir()); err != nil {
		log.Printf("[WARN] detector weight overrides not loaded: %v", err)
	}

	result := detect.Classify(text, nil)
	rec := intel.Extract(text)

	out := struct {
		Text         string       `json:"text"`
		ScamDetected bool         `json:"scamDetected"`
		Score        float64      `json:"score"`
		Intelligence intel.Record `json:"intelligence"`
		FallbackSay  string       `json:"fallbackReply"`
	}{
		Text:         text,
		ScamDetected: result.Verdict,
		Score:        result.Score,
		Intelligence: rec,
		FallbackSay:  agent.SelectFallback(text),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode failed: %v", err)
	}
}
