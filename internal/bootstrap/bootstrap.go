package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerguard/copilot/internal/config"
	"github.com/ledgerguard/copilot/internal/core/domain"
	"github.com/ledgerguard/copilot/internal/core/ports"
	"github.com/ledgerguard/copilot/internal/core/usecase"
	"github.com/ledgerguard/copilot/internal/firewall"
	"github.com/ledgerguard/copilot/internal/infrastructure/chunking"
	"github.com/ledgerguard/copilot/internal/infrastructure/classify"
	"github.com/ledgerguard/copilot/internal/infrastructure/embedding"
	"github.com/ledgerguard/copilot/internal/infrastructure/extractor"
	"github.com/ledgerguard/copilot/internal/infrastructure/extractor/imagedoc"
	"github.com/ledgerguard/copilot/internal/infrastructure/extractor/pdfdoc"
	"github.com/ledgerguard/copilot/internal/infrastructure/extractor/plaintext"
	"github.com/ledgerguard/copilot/internal/infrastructure/extractor/tabular"
	"github.com/ledgerguard/copilot/internal/infrastructure/queue/nats"
	"github.com/ledgerguard/copilot/internal/infrastructure/repository/postgres"
	"github.com/ledgerguard/copilot/internal/infrastructure/resilience"
	"github.com/ledgerguard/copilot/internal/infrastructure/storage/localfs"
	"github.com/ledgerguard/copilot/internal/infrastructure/workingpaper"
)

// App holds every wired component shared by the api, worker and mcp
// entrypoints.
type App struct {
	Config config.Config

	Queue ports.MessageQueue

	Documents ports.DocumentRepository
	Records   ports.RecordStore
	Rules     ports.RuleStore
	Papers    ports.WorkingPaperStore
	Audit     ports.AuditStore

	IngestUC     ports.DocumentIngestor
	ProcessUC    ports.DocumentProcessor
	SearchUC     ports.SearchService
	EvaluateUC   ports.RuleEvaluator
	ComplianceUC ports.ComplianceService
	PapersUC     ports.WorkingPaperService

	Gateway *firewall.Gateway

	closeFn func()
}

// Observer is the firewall's metrics hook; nil disables observation.
type Observer = firewall.CallObserver

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, observer Observer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	documents := postgres.NewDocumentRepository(db)
	if err := documents.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	chunks := postgres.NewChunkRepository(db)
	records := postgres.NewRecordRepository(db)
	rules := postgres.NewRuleRepository(db)
	papers := postgres.NewWorkingPaperRepository(db)
	audit := postgres.NewAuditRepository(db)

	if err := seedRules(ctx, rules, logger); err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy(), logger)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		MaxDeliveryAttempts: cfg.IngestMaxAttempts,
		ResilienceExecutor:  executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	vocab := classify.DefaultVocabulary()
	if cfg.VocabPath != "" {
		vocab, err = classify.LoadVocabulary(cfg.VocabPath)
		if err != nil {
			return nil, fmt.Errorf("load classifier vocabulary: %w", err)
		}
	}
	classifier := classify.NewClassifier(vocab)

	var embedder ports.Embedder = embedding.NewHashingEmbedder(cfg.EmbeddingDim)
	if cfg.EmbedderURL != "" {
		embedder = embedding.NewResilientEmbedder(
			embedding.NewRemoteEmbedder(cfg.EmbedderURL, cfg.EmbedderModel), executor)
	}

	var ocr *imagedoc.OCRClient
	if cfg.OCRURL != "" {
		ocr = imagedoc.NewOCRClient(cfg.OCRURL)
	}
	extractors := extractor.NewRegistry(
		pdfdoc.NewExtractor(storage),
		imagedoc.NewExtractor(storage, ocr, executor, cfg.OCRConfidenceThreshold),
		tabular.NewExtractor(storage),
		plaintext.NewExtractor(storage),
	)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	ingestUC := usecase.NewIngestDocumentUseCase(documents, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(
		documents, storage, extractors, classifier, chunker, embedder, chunks, records,
		cfg.ReviewThreshold)
	searchUC := usecase.NewSearchUseCase(embedder, chunks, cfg.SearchMaxLimit, cfg.HybridCandidates, cfg.FusionRRFK)
	evaluateUC := usecase.NewEvaluateUseCase(rules, 0)
	reconcileUC := usecase.NewReconcileUseCase(
		cfg.AmountTolerance, cfg.DateToleranceDays, cfg.FuzzyThreshold,
		time.Duration(cfg.ReconcileDeadlineSeconds)*time.Second)
	complianceUC := usecase.NewComplianceUseCase(records, evaluateUC, reconcileUC)
	papersUC := usecase.NewWorkingPaperUseCase(papers, workingpaper.NewExporter(), rules)

	gateway := firewall.NewGateway(firewall.DefaultTools(firewall.Services{
		Search:     searchUC,
		Records:    records,
		Evaluator:  evaluateUC,
		Papers:     papers,
		Compliance: complianceUC,
	}), audit, logger, observer)

	return &App{
		Config: cfg,

		Queue: queue,

		Documents: documents,
		Records:   records,
		Rules:     rules,
		Papers:    papers,
		Audit:     audit,

		IngestUC:     ingestUC,
		ProcessUC:    processUC,
		SearchUC:     searchUC,
		EvaluateUC:   evaluateUC,
		ComplianceUC: complianceUC,
		PapersUC:     papersUC,

		Gateway: gateway,

		closeFn: func() {
			gateway.Close()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// seedRules installs the bundled rule set on a fresh database. An
// already-installed bundle, whatever its version, is left alone.
func seedRules(ctx context.Context, rules ports.RuleStore, logger *slog.Logger) error {
	_, err := rules.LatestVersion(ctx)
	if err == nil {
		return nil
	}
	if !domain.IsKind(err, domain.ErrRuleUnavailable) {
		return fmt.Errorf("check rule versions: %w", err)
	}

	bundle := domain.DefaultRuleBundle()
	if err := rules.ApplyBundle(ctx, bundle); err != nil {
		return fmt.Errorf("seed rule bundle: %w", err)
	}
	logger.Info("installed bundled compliance rules",
		slog.String("version", bundle.Version),
		slog.Int("rules", len(bundle.Rules)))
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
