package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"idnames-go/internal/config"
	"idnames-go/internal/contributors"
	"idnames-go/internal/controller"
	"idnames-go/internal/handler"
	"idnames-go/internal/service"
	"idnames-go/internal/service/naming"
	"idnames-go/pkg/mcp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var appConfigPath = flag.String("app", "app.yaml", "Path to app configuration file")
	var sourceConfigPath = flag.String("source", "source.yaml", "Path to source configuration file listing corpora")
	var modelDir = flag.String("modeldir", "", "Directory holding trained models")
	var train = flag.String("train", "", "Train the named corpus (or \"all\"), save it and exit")
	var override = flag.Bool("override", false, "Retrain even when a saved model exists")
	var evaluate = flag.String("evaluate", "", "Comma-separated test corpora to predict every declared variable of, then exit")
	var evalModel = flag.String("model", "", "Comma-separated corpora trained into the single model used by -evaluate")
	var evalOutput = flag.String("output", "./predictions", "Directory receiving <test corpus>_predictions.jsonl")
	var evalContributors = flag.String("eval-contributors", "corpus", "Comma-separated contributors consulted by -evaluate, empty for all")
	flag.Parse()

	cfg, err := config.LoadConfig(*appConfigPath, sourcePath(*sourceConfigPath))
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if *modelDir != "" {
		cfg.App.ModelDir = *modelDir
	}

	logger, err := newLogger(cfg.App)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully", zap.Any("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokenizers, err := service.NewDefaultTokenizerRegistry()
	if err != nil {
		logger.Fatal("Failed to create tokenizers", zap.Error(err))
	}
	persistence, err := service.NewNGramPersistence(cfg.App.ModelDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize model persistence", zap.Error(err))
	}
	opts := service.RunnerOptionsFromConfig(cfg.Model)
	corpora := service.NewCorpusManager(tokenizers, persistence, opts, cfg.Model.MaxFileChars, logger)

	if *train != "" {
		if err := trainCorpora(ctx, cfg, corpora, *train, *override, logger); err != nil {
			logger.Fatal("Training failed", zap.Error(err))
		}
		return
	}

	registry := contributors.NewContributorRegistry(logger)
	if err := registry.Register(contributors.NewCorpusContributor(corpora)); err != nil {
		logger.Fatal("Failed to register contributor", zap.Error(err))
	}
	if err := registry.Register(contributors.NewFileContributor(opts, logger)); err != nil {
		logger.Fatal("Failed to register contributor", zap.Error(err))
	}

	namingService := naming.NewNamingService(cfg, corpora, registry, logger)

	if *evaluate != "" {
		if err := evaluateCorpora(ctx, cfg, corpora, namingService, *evalModel, *evaluate, *evalOutput, *evalContributors, *override, logger); err != nil {
			logger.Fatal("Evaluation failed", zap.Error(err))
		}
		return
	}

	go loadCorporaOnStartup(ctx, cfg, corpora, logger)

	namingController := controller.NewNamingController(namingService, logger)
	mcpServer := mcp.NewNamingServer(namingService, cfg, logger)
	router := handler.SetupRouter(namingController, mcpServer, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		server.Shutdown(context.Background())
	}()

	logger.Info("Starting server", zap.Int("port", cfg.App.Port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// sourcePath ignores the default source file when it does not exist
func sourcePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func newLogger(app config.AppConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(app.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", app.LogLevel, err)
	}
	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(level)
	cfgZap.OutputPaths = app.LogOutputs
	return cfgZap.Build()
}

func trainCorpora(ctx context.Context, cfg *config.Config, corpora *service.CorpusManager, name string, override bool, logger *zap.Logger) error {
	for i := range cfg.Corpora {
		corpus := &cfg.Corpora[i]
		if name != "all" && corpus.Name != name {
			continue
		}
		if _, err := corpora.LoadOrTrain(ctx, corpus, override); err != nil {
			return fmt.Errorf("corpus %s: %w", corpus.Name, err)
		}
		stats, err := corpora.GetStats(corpus.Name)
		if err != nil {
			return err
		}
		logger.Info("Corpus ready",
			zap.String("corpus", corpus.Name),
			zap.Int("files", stats.Runner.TrainedFiles),
			zap.Int("vocabulary", stats.Runner.VocabularySize),
			zap.Int64("memory_bytes", stats.Runner.Memory.TotalMemoryBytes()))
		if name != "all" {
			return nil
		}
	}
	if name != "all" {
		return fmt.Errorf("corpus not found: %s", name)
	}
	return nil
}

func loadCorporaOnStartup(ctx context.Context, cfg *config.Config, corpora *service.CorpusManager, logger *zap.Logger) {
	for i := range cfg.Corpora {
		corpus := &cfg.Corpora[i]
		if !corpus.LoadOnStartup {
			continue
		}
		if _, err := corpora.LoadOrTrain(ctx, corpus, false); err != nil {
			logger.Error("Failed to load corpus on startup",
				zap.String("corpus", corpus.Name),
				zap.Error(err))
		}
	}
}

// evaluateCorpora trains one model over the model corpora and writes predictions for
// every declared variable of each test corpus
func evaluateCorpora(ctx context.Context, cfg *config.Config, corpora *service.CorpusManager, namingService *naming.NamingService,
	modelNames, testNames, outputDir, contributorNames string, override bool, logger *zap.Logger) error {
	modelCorpora := []*config.Corpus{}
	for _, name := range splitList(modelNames) {
		corpus, err := cfg.GetCorpus(name)
		if err != nil {
			return err
		}
		modelCorpora = append(modelCorpora, corpus)
	}
	if len(modelCorpora) == 0 {
		return fmt.Errorf("-evaluate requires -model")
	}

	modelName := strings.Join(splitList(modelNames), "+")
	if _, err := corpora.LoadOrTrainCombined(ctx, modelName, modelCorpora, override); err != nil {
		return fmt.Errorf("model %s: %w", modelName, err)
	}

	for _, testName := range splitList(testNames) {
		summary, err := namingService.EvaluateCorpus(ctx, &naming.EvaluateRequest{
			TestCorpus:   testName,
			ModelCorpus:  modelName,
			OutputDir:    outputDir,
			Contributors: splitList(contributorNames),
		})
		if err != nil {
			return fmt.Errorf("test corpus %s: %w", testName, err)
		}
		logger.Info("Predictions written",
			zap.String("test_corpus", testName),
			zap.String("output", summary.OutputPath),
			zap.Int("files_evaluated", summary.FilesEvaluated),
			zap.Int("files_skipped", summary.FilesSkipped),
			zap.Int("variables", summary.Variables),
			zap.Int("top_one_hits", summary.TopOneHits),
			zap.Int("any_hits", summary.AnyHits))
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
