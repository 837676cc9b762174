// Command docwatch tracks document versions and classifies what changed
// between them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/docwatch/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docwatch/internal/adapters/driven/metrics"
	"github.com/custodia-labs/docwatch/internal/adapters/driven/publish/nats"
	"github.com/custodia-labs/docwatch/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docwatch/internal/adapters/driving/cli"
	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
	"github.com/custodia-labs/docwatch/internal/core/services"
	"github.com/custodia-labs/docwatch/internal/logger"
	"github.com/custodia-labs/docwatch/internal/normalisers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	logger.SetCorruptionSentinel(domain.ErrCorruption)

	closeApp, err := wire()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeApp()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// wire builds the application graph and injects it into the CLI.
// The returned func releases the store and publisher.
func wire() (func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, home)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(settings.DataDir, sqlite.WithCacheSize(settings.CacheSize))
	if err != nil {
		return nil, fmt.Errorf("open version store: %w", err)
	}
	logger.Debug("version store at %s", store.Path())

	ruleFile, err := file.NewRuleFile(settings.RulesFile)
	if err != nil {
		store.Close()
		return nil, err
	}
	rules, err := services.LoadRuleTable(ruleFile)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%s: %w", ruleFile.Path(), err)
	}

	recorder := metrics.NewRecorder(true)
	detector := services.NewChangeDetector(
		services.WithSimilarityThreshold(settings.SimilarityThreshold),
		services.WithClassificationFloor(settings.ClassificationFloor),
		services.WithRules(rules),
		services.WithDetectorMetrics(recorder),
	)

	var publisher driven.ChangePublisher
	if settings.Publishing() {
		p, err := nats.Connect(settings.NATSURL, settings.SubjectPrefix)
		if err != nil {
			store.Close()
			return nil, err
		}
		publisher = p
		logger.Debug("publishing changes to %s", settings.NATSURL)
	}

	coordinator := services.NewIngestionCoordinator(
		normalisers.NewDefaultRegistry(settings.MinExtractionLength),
		store.SourceStore(),
		store.VersionStore(),
		detector,
		publisher,
		recorder,
	)

	cli.SetServices(cli.Services{
		Ingestor:            coordinator,
		BatchIngestor:       services.NewBatchIngester(coordinator, settings.Workers, settings.RatePerSecond),
		Lineage:             services.NewLineageService(store.SourceStore(), store.VersionStore(), store.ChangeStore(), detector),
		Settings:            settingsService,
		Rules:               rules,
		ClassificationFloor: settings.ClassificationFloor,
		ExportRules: func(path string) error {
			out, err := file.NewRuleFile(path)
			if err != nil {
				return err
			}
			return out.Save(rules.Specs(), true)
		},
		WriteMetrics: recorder.WriteTextfile,
	})

	return func() {
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("close publisher: %v", err)
			}
		}
		if err := store.Close(); err != nil {
			logger.Warn("close version store: %v", err)
		}
	}, nil
}
