package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/canonical"
	"github.com/enrondata/maildir-etl/internal/config"
	"github.com/enrondata/maildir-etl/internal/core"
	"github.com/enrondata/maildir-etl/internal/identity"
	"github.com/enrondata/maildir-etl/internal/parser"
	"github.com/enrondata/maildir-etl/internal/thread"
)

// Pipeline drives one complete extraction run: walk the maildir tree, parse
// and split each file concurrently, deduplicate into the canonical store,
// resolve identities over the full corpus, then emit the dataset.
type Pipeline struct {
	cfg      *config.Config
	logger   *zap.Logger
	splitter *thread.Splitter
	resolver *identity.Resolver
	dataset  core.DatasetStore

	canon *canonical.Store

	stats struct {
		filesScanned    atomic.Int64
		filesFailed     atomic.Int64
		messages        atomic.Int64
		duplicates      atomic.Int64
		truncatedChains atomic.Int64
	}

	errMu     sync.Mutex
	parseErrs []core.ParseError
}

// New creates a new extraction pipeline
func New(
	cfg *config.Config,
	logger *zap.Logger,
	splitter *thread.Splitter,
	resolver *identity.Resolver,
	dataset core.DatasetStore,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		logger:   logger,
		splitter: splitter,
		resolver: resolver,
		dataset:  dataset,
		canon:    canonical.NewStore(logger),
	}
}

// Run executes the pipeline end to end and returns the run statistics.
// Per-file failures are recorded as diagnostics and never abort the run;
// only input-tree and output-store failures are fatal.
func (p *Pipeline) Run(ctx context.Context) (*core.RunStats, error) {
	pcfg := p.cfg.GetPipeline()

	files, excluded, err := walk(pcfg.InputDir, pcfg.Exclude)
	if err != nil {
		return nil, err
	}
	p.logger.Info("input tree scanned",
		zap.String("root", pcfg.InputDir),
		zap.Int("files", len(files)),
		zap.Int("excluded", excluded))

	workers := pcfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan fileRef)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				p.processFile(ref)
			}
		}()
	}
	for _, ref := range files {
		jobs <- ref
	}
	close(jobs)
	wg.Wait()

	// Every message exists now; identity resolution runs once over the
	// deduplicated corpus in canonical order.
	msgs := p.canon.Sorted()
	p.resolver.ResolveAll(msgs)
	res := p.resolver.Snapshot()

	if err := p.emit(ctx, msgs, res); err != nil {
		return nil, err
	}

	stats := &core.RunStats{
		FilesScanned:    p.stats.filesScanned.Load(),
		FilesFailed:     p.stats.filesFailed.Load(),
		Messages:        p.stats.messages.Load(),
		Duplicates:      p.stats.duplicates.Load(),
		TruncatedChains: p.stats.truncatedChains.Load(),
		Unresolved:      int64(len(res.Unresolved)),
		Persons:         int64(len(res.Persons)),
		Groups:          int64(len(res.Groups)),
		FilesExcluded:   int64(excluded),
	}
	p.logger.Info("extraction run complete",
		zap.Int64("files_scanned", stats.FilesScanned),
		zap.Int64("files_failed", stats.FilesFailed),
		zap.Int64("messages", stats.Messages),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("truncated_chains", stats.TruncatedChains),
		zap.Int64("persons", stats.Persons),
		zap.Int64("groups", stats.Groups),
		zap.Int64("files_excluded", stats.FilesExcluded),
		zap.Int64("unresolved", stats.Unresolved))
	return stats, nil
}

// processFile takes one raw file through decode, parse, split and dedup.
func (p *Pipeline) processFile(ref fileRef) {
	p.stats.filesScanned.Add(1)

	raw, err := os.ReadFile(ref.Path)
	if err != nil {
		p.recordParseError(ref.Path, fmt.Sprintf("read failed: %v", err))
		return
	}

	content := parser.Canonicalize(parser.DecodeContent(raw))
	pm, err := parser.ParseMessage(content)
	if err != nil {
		p.recordParseError(ref.Path, err.Error())
		return
	}

	msgs, truncated, err := p.splitter.Split(pm)
	if err != nil {
		p.recordParseError(ref.Path, err.Error())
		return
	}
	if truncated {
		p.stats.truncatedChains.Add(1)
	}

	for _, msg := range msgs {
		if p.canon.Add(msg, ref.Folder) {
			p.stats.messages.Add(1)
		} else {
			p.stats.duplicates.Add(1)
		}
	}
}

func (p *Pipeline) recordParseError(path, reason string) {
	p.stats.filesFailed.Add(1)
	p.logger.Warn("file skipped", zap.String("path", path), zap.String("reason", reason))
	p.errMu.Lock()
	defer p.errMu.Unlock()
	p.parseErrs = append(p.parseErrs, core.ParseError{Path: path, Reason: reason})
}

// emit writes the full dataset and its diagnostics to the store.
func (p *Pipeline) emit(ctx context.Context, msgs []*core.CanonicalMessage, res *identity.Resolution) error {
	if err := p.dataset.SaveMessages(ctx, msgs); err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}
	if err := p.dataset.SavePersons(ctx, res.Persons); err != nil {
		return fmt.Errorf("failed to save persons: %w", err)
	}
	if err := p.dataset.SaveAliases(ctx, res.Aliases); err != nil {
		return fmt.Errorf("failed to save alias mappings: %w", err)
	}
	if err := p.dataset.SaveGroups(ctx, res.Groups); err != nil {
		return fmt.Errorf("failed to save recipient groups: %w", err)
	}
	if err := p.dataset.SaveUnresolved(ctx, res.Unresolved); err != nil {
		return fmt.Errorf("failed to save unresolved identities: %w", err)
	}
	p.errMu.Lock()
	parseErrs := p.parseErrs
	p.errMu.Unlock()
	if err := p.dataset.SaveParseErrors(ctx, parseErrs); err != nil {
		return fmt.Errorf("failed to save parse errors: %w", err)
	}
	return nil
}
