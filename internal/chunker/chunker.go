package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/medrag/internal/label"
)

// Config controls chunking behavior. Sizes are measured in characters.
type Config struct {
	ChunkSize    int // Maximum chunk length, provenance header included.
	ChunkOverlap int // Maximum overlap between consecutive chunks of a section.
}

// MinChunkSize is the smallest chunk size that leaves room for the header.
const MinChunkSize = 200

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// Metadata is attached to every chunk and reported with query results.
type Metadata struct {
	DrugName    string `json:"drug_name"`
	GenericName string `json:"generic_name"`
	Section     string `json:"section"`
}

// IndexedChunk is a bounded span of section text prefixed with its provenance.
type IndexedChunk struct {
	Text     string
	Metadata Metadata
}

const sentenceSep = ". "

// separators are tried in order: paragraph, line, sentence, word, character.
var separators = []string{"\n\n", "\n", sentenceSep, " ", ""}

// Split turns a label into chunks, section by section, in the fixed section
// order. Empty sections produce no chunks.
func Split(l *label.DrugLabel, cfg Config) []IndexedChunk {
	cfg = normalize(cfg)
	name := l.DisplayName()

	var chunks []IndexedChunk
	for _, section := range label.Sections {
		content := strings.TrimSpace(l.Section(section))
		if content == "" {
			continue
		}

		header := Header(truncateName(name, section, cfg.ChunkSize), section)
		budget := cfg.ChunkSize - runeLen(header)
		overlap := cfg.ChunkOverlap
		if overlap > budget/2 {
			overlap = budget / 2
		}

		meta := Metadata{
			DrugName:    name,
			GenericName: l.GenericName,
			Section:     section,
		}
		for _, part := range SplitText(content, budget, overlap) {
			chunks = append(chunks, IndexedChunk{
				Text:     header + part,
				Metadata: meta,
			})
		}
	}
	return chunks
}

// Header renders the provenance header that starts every chunk.
func Header(drugName, section string) string {
	return "Drug: " + drugName + "\nSection: " + section + "\nContent: "
}

// SplitText splits text into pieces of at most size characters where
// consecutive pieces share up to overlap characters of whole units.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	s := splitter{size: size, overlap: overlap}
	var out []string
	for _, part := range s.split(text, separators) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

type splitter struct {
	size    int
	overlap int
}

// split breaks text on the first applicable separator, recursing into
// pieces that are still too large with the remaining separators.
func (s splitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	pieces, joiner := cut(text, sep)

	var result, fitting []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.size {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			result = append(result, s.merge(fitting, joiner)...)
			fitting = nil
		}
		if len(rest) == 0 {
			result = append(result, piece)
		} else {
			result = append(result, s.split(piece, rest)...)
		}
	}
	if len(fitting) > 0 {
		result = append(result, s.merge(fitting, joiner)...)
	}
	return result
}

// cut splits text on sep and returns the string that rejoins the pieces.
// Sentence pieces keep their period and rejoin with a space.
func cut(text, sep string) ([]string, string) {
	if sep != sentenceSep {
		return strings.Split(text, sep), sep
	}
	pieces := strings.SplitAfter(text, sentenceSep)
	for i, p := range pieces {
		pieces[i] = strings.TrimSuffix(p, " ")
	}
	return pieces, " "
}

// merge greedily packs pieces into chunks. When a chunk is full the next one
// is seeded with its trailing pieces, totalling at most the overlap.
func (s splitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var chunks []string
	var current []string
	total := 0

	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if joinedLen(n) > s.size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, sep))
			for len(current) > 0 && (total > s.overlap || joinedLen(n) > s.size) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		total = joinedLen(n)
		current = append(current, piece)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}
	return chunks
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkSize < MinChunkSize {
		cfg.ChunkSize = MinChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	return cfg
}

// truncateName shortens the drug name so the header takes at most half of
// the chunk budget.
func truncateName(name, section string, size int) string {
	limit := size / 2
	extra := runeLen(Header(name, section)) - limit
	if extra <= 0 {
		return name
	}
	r := []rune(name)
	keep := len(r) - extra
	if keep < 1 {
		keep = 1
	}
	if keep > len(r) {
		keep = len(r)
	}
	return string(r[:keep])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
