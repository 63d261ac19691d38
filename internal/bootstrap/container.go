package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-docassist-be/internal/config"
	"ai-docassist-be/internal/controller"
	"ai-docassist-be/internal/pkg/logger"
	"ai-docassist-be/internal/service"
	"ai-docassist-be/pkg/cache"
	"ai-docassist-be/pkg/docloader"
	"ai-docassist-be/pkg/embedding"
	"ai-docassist-be/pkg/embedding/jina"
	"ai-docassist-be/pkg/llm"
	"ai-docassist-be/pkg/llm/factory"
	"ai-docassist-be/pkg/pipeline"
	"ai-docassist-be/pkg/vector"
	"ai-docassist-be/pkg/websearch"

	pkgNats "ai-docassist-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController
	FeedbackController controller.IFeedbackController

	// Background Services (Exposed for main.go to run)
	RelayService service.IEventRelayService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.HuggingFace,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	engine := llm.NewEngine(llmProvider)

	// 4. Infrastructure
	// NATS
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	cacheStore := cache.NewRedisStore(rdb, cfg.App.SummaryTTLDays)
	vectorStore := vector.NewPgVectorStore(db, embeddingProvider)

	// 5. Document loading chain
	figureStore := docloader.NewFigureStore(cfg.App.FigureDir)
	captioner := docloader.NewCaptioner(cfg.Services.CaptionURL, 60*time.Second)
	loader := docloader.NewPDFLoader(cfg.Services.ExtractorURL, figureStore, captioner)
	webClient := websearch.NewSearxClient(cfg.Services.SearxURL)

	// 6. Pipelines (compiled once, shared across requests)
	chatPipe, err := pipeline.NewChatPipeline(engine)
	if err != nil {
		log.Fatalf("[FATAL] Failed to build chat pipeline: %v", err)
	}
	summaryPipe, err := pipeline.NewSummaryPipeline(engine, vectorStore, cacheStore, loader, webClient)
	if err != nil {
		log.Fatalf("[FATAL] Failed to build summary pipeline: %v", err)
	}
	guidePipe, err := pipeline.NewGuidePipeline(engine, vectorStore, cacheStore, loader,
		embedding.Func(embeddingProvider, "RETRIEVAL_DOCUMENT"))
	if err != nil {
		log.Fatalf("[FATAL] Failed to build guide pipeline: %v", err)
	}

	// 7. Services
	publisherService := service.NewPublisherService(cfg.App.RunTopic, pubSub)

	relayLogger := logger.NewIsolatedLogger("logs/relay.log")
	relayService := service.NewEventRelayService(pubSub, cfg.App.RunTopic, natsPub, relayLogger)

	chatService := service.NewChatService(chatPipe, publisherService, sysLogger)
	summaryService := service.NewSummaryService(summaryPipe, publisherService, sysLogger)
	guideService := service.NewGuideService(guidePipe, publisherService, sysLogger)
	documentService := service.NewDocumentService(cacheStore, vectorStore, sysLogger)

	// 8. Controllers
	return &Container{
		ChatController:     controller.NewChatController(chatService),
		DocumentController: controller.NewDocumentController(summaryService, guideService, documentService),
		FeedbackController: controller.NewFeedbackController(documentService),

		RelayService: relayService,
		Logger:       sysLogger,
	}
}
