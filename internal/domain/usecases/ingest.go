// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code - just the indexing and retrieval logic.
package usecases

import (
	"context"
	"fmt"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// IndexingPipeline rebuilds the vector index from a corpus.
// Single Responsibility: discovery -> extraction -> chunking -> bulk load.
type IndexingPipeline struct {
	discoverer ports.SourceDiscoverer
	extractor  ports.ContentExtractor
	splitter   *TextSplitter
	index      ports.VectorIndex
}

// NewIndexingPipeline creates an IndexingPipeline with injected dependencies.
func NewIndexingPipeline(
	discoverer ports.SourceDiscoverer,
	extractor ports.ContentExtractor,
	splitter *TextSplitter,
	index ports.VectorIndex,
) *IndexingPipeline {
	if splitter == nil {
		splitter = NewTextSplitter()
	}
	return &IndexingPipeline{
		discoverer: discoverer,
		extractor:  extractor,
		splitter:   splitter,
		index:      index,
	}
}

// BuildIndex runs one full, destructive rebuild.
// Per-file failures are logged and skipped; only discovery and index writes
// fail the build.
func (p *IndexingPipeline) BuildIndex(ctx context.Context, corpusRoot, docsRoot string) (*entities.BuildReport, error) {
	files, err := p.discoverer.Discover(ctx, corpusRoot, docsRoot)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	logger.Info("found %d files to index", len(files))

	report := &entities.BuildReport{Files: len(files)}
	var chunks []entities.Chunk
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fileChunks, err := p.processFile(ctx, file)
		if err != nil {
			logger.Error("processing %s: %v", file.AbsPath, err)
			report.Failed++
			continue
		}
		if len(fileChunks) == 0 {
			report.Empty++
			continue
		}
		chunks = append(chunks, fileChunks...)
	}
	report.Chunks = len(chunks)
	logger.Info("processed %d chunks in total", len(chunks))

	if len(chunks) == 0 {
		report.Skipped = true
		logger.Info("no chunks to store, index left untouched")
		return report, nil
	}

	records := make([]entities.IndexRecord, len(chunks))
	for i := range chunks {
		chunks[i].ID = chunkID(i)
		records[i] = entities.IndexRecord{
			ID:       chunks[i].ID,
			Text:     chunks[i].Text,
			Metadata: chunks[i].Metadata,
		}
	}

	if err := p.index.ResetCollection(ctx); err != nil {
		return report, fmt.Errorf("resetting collection: %w", err)
	}
	if err := p.index.BulkAdd(ctx, records); err != nil {
		return report, fmt.Errorf("adding chunks: %w", err)
	}
	logger.Info("stored %d chunks", len(records))
	return report, nil
}

// processFile extracts and chunks a single file. A panicking extractor only
// fails this file.
func (p *IndexingPipeline) processFile(ctx context.Context, file entities.SourceFile) (chunks []entities.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	units, err := p.extractor.Extract(ctx, file)
	if err != nil {
		return nil, err
	}

	for _, unit := range units {
		if unit.IsEmpty() {
			continue
		}
		chunks = append(chunks, p.splitter.SplitUnit(unit)...)
	}
	logger.Info("processing: %s - %d chunks", file.RelPath, len(chunks))
	return chunks, nil
}

// chunkID assigns run-local ids by emission order. Fine for full rebuilds;
// an incremental mode would need content-derived ids instead.
func chunkID(i int) string {
	return fmt.Sprintf("chunk_%d", i)
}
