package usecases

import (
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
)

const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default number of overlapping characters.
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// TextSplitter splits text into overlapping chunks along the highest-priority
// separator that keeps pieces under the size bound. Sizes count runes.
type TextSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// SplitterOption configures a TextSplitter.
type SplitterOption func(*TextSplitter)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) SplitterOption {
	return func(s *TextSplitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap between consecutive chunks in characters.
func WithChunkOverlap(overlap int) SplitterOption {
	return func(s *TextSplitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
func WithSeparators(separators ...string) SplitterOption {
	return func(s *TextSplitter) {
		if len(separators) > 0 {
			s.separators = append([]string(nil), separators...)
		}
	}
}

// NewTextSplitter creates a splitter with the given options.
func NewTextSplitter(opts ...SplitterOption) *TextSplitter {
	s := &TextSplitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for new content in every chunk.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the configured maximum chunk size.
func (s *TextSplitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap.
func (s *TextSplitter) ChunkOverlap() int { return s.overlap }

// Split returns the ordered chunk texts for text.
func (s *TextSplitter) Split(text string) []string {
	return s.split(text, s.separators)
}

// SplitUnit splits one extracted unit and attaches its source metadata.
// Chunk IDs are left empty; the pipeline assigns them per build.
func (s *TextSplitter) SplitUnit(unit entities.ExtractedUnit) []entities.Chunk {
	texts := s.Split(unit.Text)
	chunks := make([]entities.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, entities.Chunk{
			Text:  text,
			Index: i,
			Metadata: entities.ChunkMetadata{
				Source:   unit.RelPath,
				FilePath: unit.AbsPath,
				Kind:     unit.Kind,
			},
		})
	}
	return chunks
}

func (s *TextSplitter) split(text string, separators []string) []string {
	separator := ""
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var final, small []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.chunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			final = append(final, s.merge(small)...)
			small = nil
		}
		switch {
		case len(rest) > 0:
			final = append(final, s.split(piece, rest)...)
		case separator != "":
			// Out of separators: hard cut at the character limit.
			final = append(final, s.split(piece, []string{""})...)
		default:
			final = append(final, piece)
		}
	}
	if len(small) > 0 {
		final = append(final, s.merge(small)...)
	}
	return final
}

// merge packs small pieces into chunks of at most chunkSize runes. When a chunk
// is emitted, trailing pieces totalling at most overlap runes seed the next one.
func (s *TextSplitter) merge(pieces []string) []string {
	var chunks, window []string
	total := 0
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.chunkSize && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.overlap || (total+n > s.chunkSize && total > 0) {
				total -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepingSeparator splits text on sep, attaching each separator to the
// start of the piece that follows it. An empty sep splits into runes.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, len(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = sep + part
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
