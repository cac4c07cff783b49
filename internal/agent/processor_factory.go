// Package agent assembles the document pipeline from configuration.
package agent

import (
	"fmt"
	"os"

	"github.com/feichai0017/tapu-processor/config"
	"github.com/feichai0017/tapu-processor/internal/agent/document/pdf"
	"github.com/feichai0017/tapu-processor/internal/agent/document/table"
	"github.com/feichai0017/tapu-processor/internal/agent/extract"
	"github.com/feichai0017/tapu-processor/internal/agent/text"
	"github.com/feichai0017/tapu-processor/internal/service/job"
	"github.com/feichai0017/tapu-processor/internal/service/record"
	"github.com/feichai0017/tapu-processor/pkg/logger"
)

// ProcessorFactory owns the stages every job shares.
type ProcessorFactory struct {
	cleaner   *pdf.Cleaner
	tables    table.Extractor
	remote    *table.RemoteExtractor
	assembler *record.Assembler
	layout    *extract.Layout
	logger    logger.Logger
}

type Option func(*ProcessorFactory)

// WithTableExtractor replaces the gRPC table extractor.
func WithTableExtractor(e table.Extractor) Option {
	return func(f *ProcessorFactory) {
		f.tables = e
	}
}

func NewProcessorFactory(cfg *config.Config, log logger.Logger, opts ...Option) (*ProcessorFactory, error) {
	factory := &ProcessorFactory{logger: log.Named("pipeline")}
	for _, opt := range opts {
		opt(factory)
	}

	layout, err := LoadLayout(cfg.Pipeline.LayoutFile)
	if err != nil {
		return nil, err
	}
	factory.layout = layout

	normalizer := text.NewTurkish()
	factory.assembler = record.NewAssembler(
		table.NewStitcher(normalizer),
		extract.NewExtractor(normalizer, layout),
		log,
	)

	if cfg.Pipeline.CleanWatermarks {
		scrubber := pdf.NewScrubber()
		if cfg.Pipeline.WatermarkSize > 0 {
			scrubber.TargetSize = cfg.Pipeline.WatermarkSize
		}
		scrubber.Tolerance = cfg.Pipeline.WatermarkTolerance
		factory.cleaner = pdf.NewCleaner(scrubber, log)
	}

	if factory.tables == nil {
		remote, err := table.NewRemoteExtractor(cfg.Extractor.Address, cfg.Extractor.Timeout, log)
		if err != nil {
			return nil, err
		}
		factory.remote = remote
		factory.tables = remote
	}

	factory.logger.Info("Pipeline ready",
		logger.String("layout", layout.Version),
		logger.Bool("cleanWatermarks", factory.cleaner != nil),
		logger.String("extractor", cfg.Extractor.Address),
	)
	return factory, nil
}

// LoadLayout reads a template layout file; an empty path selects the built-in one.
func LoadLayout(path string) (*extract.Layout, error) {
	if path == "" {
		return extract.DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}
	layout, err := extract.ParseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("layout file %s: %w", path, err)
	}
	return layout, nil
}

// Cleaner returns nil when watermark removal is disabled.
func (f *ProcessorFactory) Cleaner() job.Cleaner {
	if f.cleaner == nil {
		return nil
	}
	return f.cleaner
}

func (f *ProcessorFactory) Tables() table.Extractor {
	return f.tables
}

func (f *ProcessorFactory) Assembler() job.Assembler {
	return f.assembler
}

func (f *ProcessorFactory) Layout() *extract.Layout {
	return f.layout
}

// Close releases the extractor connection.
func (f *ProcessorFactory) Close() error {
	if f.remote != nil {
		return f.remote.Close()
	}
	return nil
}
