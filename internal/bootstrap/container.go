package bootstrap

import (
	"context"
	"log"
	"time"

	"docqa-engine/internal/config"
	"docqa-engine/internal/controller"
	"docqa-engine/internal/handler"
	"docqa-engine/internal/pkg/logger"
	"docqa-engine/internal/repository/memory"
	"docqa-engine/internal/repository/unitofwork"
	"docqa-engine/internal/service"
	"docqa-engine/internal/websocket"
	"docqa-engine/pkg/embedding"
	"docqa-engine/pkg/embedding/jina"
	"docqa-engine/pkg/llm/factory"
	pktNats "docqa-engine/pkg/nats"
	"docqa-engine/pkg/qa/clarify"
	"docqa-engine/pkg/qa/metrics"
	"docqa-engine/pkg/qa/plan"
	"docqa-engine/pkg/qa/progress"
	"docqa-engine/pkg/qa/router"
	"docqa-engine/pkg/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	QueryController    controller.IQueryController
	SessionController  controller.ISessionController
	DocumentController controller.IDocumentController
	SystemController   controller.ISystemController

	// Background services (run by main)
	ConsumerService service.IConsumerService

	// WebSocket progress fan-out
	ProgressHandler *handler.ProgressHandler
	WebSocketHub    *websocket.Hub

	Metrics *metrics.Metrics
	Logger  logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. In-process event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
	progressBus := progress.NewBus(pubSub)

	// 3. Providers
	var embeddingProvider embedding.Provider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	case "jina":
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	default:
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewCompletionProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.OpenAI,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. In-memory state
	sessionCache := memory.NewSessionRepository()
	execCache := memory.NewExecutionCache()

	// 5. External infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 6. WebSocket hub, bridged from the in-process progress bus
	wsLogger := logger.NewIsolatedLogger("logs/progress.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()
	go bridgeProgress(progressBus, wsHub)

	// 7. Engine components
	engineMetrics := metrics.New()
	baseUow := uowFactory.NewUnitOfWork(context.Background())
	retriever := retrieval.NewVectorRetriever(
		baseUow.DocumentChunkRepository(),
		embeddingProvider,
		cfg.Engine.RetrievalThreshold,
	)

	policy := router.DefaultPolicy()
	if cfg.Engine.PolicyPath != "" {
		if loaded, err := router.LoadPolicy(cfg.Engine.PolicyPath); err != nil {
			log.Printf("[WARN] Failed to load router policy from %s: %v", cfg.Engine.PolicyPath, err)
		} else {
			policy = loaded
		}
	}
	queryRouter := router.New(retriever, policy)
	generator := plan.NewGenerator()
	clarifier := clarify.NewManager(
		baseUow.ClarificationRepository(),
		time.Duration(cfg.Engine.ClarificationTTLMin)*time.Minute,
	)

	// 8. Services
	publisherService := service.NewPublisherService(cfg.Keys.IndexTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.Keys.IndexTopic, uowFactory, embeddingProvider, natsPub)

	queryService := service.NewQueryService(
		uowFactory,
		sessionCache,
		execCache,
		queryRouter,
		generator,
		clarifier,
		retriever,
		llmProvider,
		progressBus,
		natsPub,
		engineMetrics,
		sysLogger,
		cfg.Engine,
	)
	sessionService := service.NewSessionService(uowFactory)
	documentService := service.NewDocumentService(uowFactory, publisherService)
	executionService := service.NewExecutionService(uowFactory, execCache)
	systemService := service.NewSystemService(db, engineMetrics, sysLogger)

	progressHandler := handler.NewProgressHandler(wsHub, execCache, wsLogger)

	return &Container{
		QueryController:    controller.NewQueryController(queryService),
		SessionController:  controller.NewSessionController(sessionService),
		DocumentController: controller.NewDocumentController(documentService),
		SystemController:   controller.NewSystemController(systemService, executionService),

		ConsumerService: consumerService,

		ProgressHandler: progressHandler,
		WebSocketHub:    wsHub,

		Metrics: engineMetrics,
		Logger:  sysLogger,
	}
}

// bridgeProgress forwards sequenced progress events from the in-process
// bus to websocket subscribers.
func bridgeProgress(bus *progress.Bus, hub *websocket.Hub) {
	events, err := bus.Subscribe(context.Background())
	if err != nil {
		log.Printf("[WARN] Failed to subscribe websocket bridge to progress bus: %v", err)
		return
	}
	for event := range events {
		hub.Publish(event)
	}
}
