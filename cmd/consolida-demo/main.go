// Command consolida-demo wires a Postgres-backed Store and an
// Ollama-backed embedding provider and runs one interview through the
// consolidation engine. It takes no flags and parses no config file;
// callers that need configuration loading own that concern themselves
// and pass the result to consolida.New directly.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrevista-ai/consolida"
	"github.com/entrevista-ai/consolida/internal/embedding"
	"github.com/entrevista-ai/consolida/internal/storage"
	"github.com/entrevista-ai/consolida/internal/telemetry"
	"github.com/entrevista-ai/consolida/migrations"
)

// rawOllama adapts internal/embedding's pgvector.Vector-based Provider back
// to the public, []float32-based EmbeddingProvider that consolida.New
// expects. consolida.New re-wraps it in its own adapter to feed
// CachedProvider, so this crosses the pgvector boundary twice; that's the
// price of driving the demo through the public facade instead of
// constructing internal/agent directly.
type rawOllama struct{ p *embedding.OllamaProvider }

func (r rawOllama) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.p.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return vec.Slice(), nil
}

func (r rawOllama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := r.p.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		out[i] = v.Slice()
	}
	return out, nil
}

func (r rawOllama) Dimensions() int { return r.p.Dimensions() }

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	poolDSN := envOr("CONSOLIDA_DATABASE_URL", "postgres://localhost:5432/consolida")
	notifyDSN := os.Getenv("CONSOLIDA_NOTIFY_URL")
	otelEndpoint := os.Getenv("CONSOLIDA_OTEL_ENDPOINT")
	ollamaURL := envOr("CONSOLIDA_OLLAMA_URL", "http://localhost:11434")
	ollamaModel := envOr("CONSOLIDA_OLLAMA_MODEL", "nomic-embed-text")
	const embeddingDimensions = 768

	otelShutdown, err := telemetry.Init(ctx, otelEndpoint, "consolida-demo", version, true)
	if err != nil {
		return err
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := storage.New(ctx, poolDSN, notifyDSN, logger)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return err
	}

	if notifyDSN != "" {
		if err := db.Listen(ctx); err != nil {
			logger.Warn("listen failed, notifications disabled", "error", err)
		}
	}

	ollama := rawOllama{embedding.NewOllamaProvider(ollamaURL, ollamaModel, embeddingDimensions)}

	meter := telemetry.Meter("consolida")

	cfg := consolida.DefaultConfig()
	agent, err := consolida.New(cfg, db, ollama,
		consolida.WithLogger(logger),
		consolida.WithMeter(meter),
	)
	if err != nil {
		return err
	}

	out, err := agent.Consolidate(ctx, sampleInterview())
	if err != nil {
		return err
	}

	for entityType, ids := range out.ResultingIDsByType {
		logger.Info("consolidated", "entity_type", entityType, "resulting_ids", len(ids))
	}
	snap := agent.Metrics()
	logger.Info("metrics",
		"duplicates_found", snap.DuplicatesFound,
		"entities_inserted", snap.EntitiesInserted,
		"entities_merged", snap.EntitiesMerged,
		"contradictions_recorded", snap.ContradictionsRecorded,
	)

	<-ctx.Done()
	return nil
}

// sampleInterview builds one interview's worth of freshly extracted
// entities: a system and a pain point whose description names it, enough
// to exercise relationship discovery's "causes" rule end to end.
func sampleInterview() consolida.ConsolidationInput {
	now := time.Now().UTC()
	return consolida.ConsolidationInput{
		InterviewID: "demo-interview-1",
		EntitiesByType: map[consolida.EntityType][]consolida.Entity{
			consolida.EntityTypeSystem: {
				{
					Name:                  "Excel",
					Description:           "Used for manual monthly close reconciliation.",
					MentionedInInterviews: []string{"demo-interview-1"},
					SourceCount:           1,
					FirstMentionedAt:      now,
					LastMentionedAt:       now,
				},
			},
			consolida.EntityTypePainPoint: {
				{
					Name:                  "Manual reconciliation is slow",
					Description:           "Closing the books in Excel takes three days every month.",
					MentionedInInterviews: []string{"demo-interview-1"},
					SourceCount:           1,
					FirstMentionedAt:      now,
					LastMentionedAt:       now,
				},
			},
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
