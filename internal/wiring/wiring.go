// Package wiring builds the process-wide dig container (internal/runtime)
// from a loaded config.Config, registering every concrete collaborator the
// cmd/ entrypoints invoke. This is the one place a cmd/*/main.go needs to
// know about construction order; each entrypoint only Invokes the
// top-level component it drives.
package wiring

import (
	"context"
	"fmt"
	"net"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"go.uber.org/dig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dfroberg/coursepilot/internal/answerer"
	"github.com/dfroberg/coursepilot/internal/config"
	"github.com/dfroberg/coursepilot/internal/contextassembler"
	"github.com/dfroberg/coursepilot/internal/email"
	"github.com/dfroberg/coursepilot/internal/forum"
	"github.com/dfroberg/coursepilot/internal/ingest"
	"github.com/dfroberg/coursepilot/internal/intent"
	"github.com/dfroberg/coursepilot/internal/models/ollama"
	"github.com/dfroberg/coursepilot/internal/models/openai"
	"github.com/dfroberg/coursepilot/internal/notifier"
	"github.com/dfroberg/coursepilot/internal/post"
	"github.com/dfroberg/coursepilot/internal/queue"
	"github.com/dfroberg/coursepilot/internal/runtime"
	"github.com/dfroberg/coursepilot/internal/store/kv"
	"github.com/dfroberg/coursepilot/internal/store/vector"
	"github.com/dfroberg/coursepilot/internal/summarizer"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// Build registers every provider against the process-wide container and
// returns it. Call once at process startup before any Invoke.
func Build(cfg *config.Config) (*dig.Container, error) {
	runtime.Reset()
	c := runtime.GetContainer()

	providers := []interface{}{
		func() *config.Config { return cfg },
		provideDB,
		provideKVStore,
		provideVectorStore,
		provideEmbedder,
		provideChatModel,
		provideForumClient,
		provideEmailSender,
		provideUpdateQueue,
		provideIntentPredictor,
		intent.New,
		provideContextAssembler,
		provideAnswerer,
		provideChunkManager,
		providePostManager,
		provideScraper,
		provideSummarizer,
		provideNotifier,
	}
	for _, p := range providers {
		if err := runtime.Provide(p); err != nil {
			return nil, fmt.Errorf("wiring: provide %T: %w", p, err)
		}
	}
	return c, nil
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.KeyValueStore.DSN
	if dsn == "" && cfg.VectorDatabase.Driver == "pgvector" {
		dsn = cfg.VectorDatabase.Pgvector.DSN
	}
	if dsn == "" {
		return nil, nil
	}
	if err := kv.Migrate(dsn); err != nil {
		return nil, fmt.Errorf("wiring: migrate: %w", err)
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func provideKVStore(db *gorm.DB) interfaces.KVStore {
	return kv.New(db)
}

func provideVectorStore(cfg *config.Config, db *gorm.DB) (interfaces.VectorStore, error) {
	return vector.New(cfg.VectorDatabase, db)
}

func provideEmbedder(cfg *config.Config) (interfaces.Embedder, error) {
	if cfg.LLM.Source == "local" {
		client, err := ollamaapi.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
		return ollama.NewEmbedder(client, cfg.LLM.EmbedModel, cfg.LLM.Dimensions), nil
	}
	return openai.NewEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.EmbedModel, cfg.LLM.Dimensions), nil
}

func provideChatModel(cfg *config.Config) (interfaces.ChatModel, error) {
	if cfg.LLM.Source == "local" {
		client, err := ollamaapi.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
		return ollama.NewChatModel(client, cfg.LLM.ChatModel), nil
	}
	return openai.NewChatModel(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.ChatModel), nil
}

func provideForumClient(cfg *config.Config) (interfaces.ForumClient, error) {
	client, err := forum.New(30 * time.Second)
	if err != nil {
		return nil, err
	}
	if cfg.Forum.Username != "" {
		if err := client.Authenticate(context.Background(), cfg.Forum.Username, cfg.Forum.Password); err != nil {
			return nil, fmt.Errorf("wiring: forum authenticate: %w", err)
		}
	}
	return client, nil
}

func provideEmailSender(cfg *config.Config) (interfaces.EmailSender, error) {
	host, port, err := net.SplitHostPort(cfg.Notification.SMTPAddr)
	if err != nil {
		return nil, fmt.Errorf("wiring: smtp_addr %q: %w", cfg.Notification.SMTPAddr, err)
	}
	return email.New(host, port, cfg.Notification.SMTPUsername, cfg.Notification.SMTPPassword, cfg.Notification.FromAddress), nil
}

func provideUpdateQueue(cfg *config.Config) interfaces.UpdateQueue {
	return queue.New(cfg.Queue.RedisAddr)
}

func provideIntentPredictor(embedder interfaces.Embedder) (interfaces.IntentPredictor, error) {
	return intent.NewCentroidPredictor(context.Background(), embedder, 0)
}

func provideContextAssembler(cfg *config.Config, v interfaces.VectorStore, k interfaces.KVStore) *contextassembler.Assembler {
	return contextassembler.New(v, k, cfg.VectorDatabase.Namespace, cfg.Conversation.ChunksToUse,
		cfg.Conversation.ClosenessThreshold, cfg.Conversation.CitationThresholdMultiplier)
}

func provideAnswerer(router *intent.Router, assembler *contextassembler.Assembler, chat interfaces.ChatModel, k interfaces.KVStore) *answerer.Answerer {
	return answerer.New(router, assembler, chat, k, chat.GetModelName())
}

func provideChunkManager(cfg *config.Config, k interfaces.KVStore, v interfaces.VectorStore, e interfaces.Embedder) *ingest.ChunkManager {
	return ingest.NewChunkManager(k, v, e, cfg.VectorDatabase.Namespace, 100, 25)
}

func providePostManager(cfg *config.Config, k interfaces.KVStore, em interfaces.EmailSender) *post.Manager {
	return post.New(k, em, cfg.Notification.DefaultRecipient, cfg.Conversation.AnnouncementWindow, nil)
}

func provideScraper(cfg *config.Config, f interfaces.ForumClient, cm *ingest.ChunkManager, pm *post.Manager, q interfaces.UpdateQueue) *ingest.Scraper {
	return ingest.NewScraper(f, cm, pm, q, cfg.Forum.IgnoredCourses, cfg.Conversation.ScrapePause)
}

func provideSummarizer(cfg *config.Config, k interfaces.KVStore, chat interfaces.ChatModel) *summarizer.Summarizer {
	return summarizer.New(k, chat, cfg.Conversation.SummarizerPoolSize, cfg.Conversation.FreshStartStaleness)
}

func provideNotifier(cfg *config.Config, v interfaces.VectorStore, k interfaces.KVStore, em interfaces.EmailSender, e interfaces.Embedder) *notifier.Notifier {
	return notifier.New(v, k, em, e, cfg.Notification.DefaultRecipient)
}
