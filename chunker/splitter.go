package chunker

import "strings"

// DefaultChunkSize is the default maximum number of runes per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default maximum number of runes shared by
// consecutive chunks.
const DefaultChunkOverlap = 200

// DefaultSeparators are tried in order; the empty separator splits on
// rune boundaries.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// span is a half-open rune range [start, end).
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// Piece is one chunk of split text.
type Piece struct {
	Text  string
	Start int // rune offset into the split text
}

// Splitter is a recursive boundary splitter. It is safe for concurrent use.
type Splitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// NewSplitter creates a Splitter. Separators default to DefaultSeparators.
func NewSplitter(size, overlap int, separators ...string) (*Splitter, error) {
	if size < 1 {
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 || overlap >= size {
		return nil, ErrInvalidOverlap
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	seps := make([][]rune, len(separators))
	for i, s := range separators {
		seps[i] = []rune(s)
	}
	return &Splitter{size: size, overlap: overlap, separators: seps}, nil
}

// Split breaks text into pieces of at most size runes. Pieces are
// contiguous slices of text in order; consecutive pieces share at most
// overlap runes. Text that is empty or only whitespace yields nothing.
func (s *Splitter) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)

	atoms := s.atoms(runes, span{0, len(runes)}, 0, nil)
	merged := s.merge(atoms)

	pieces := make([]Piece, len(merged))
	for i, sp := range merged {
		pieces[i] = Piece{Text: string(runes[sp.start:sp.end]), Start: sp.start}
	}
	return pieces
}

// atoms cuts sp into pieces no longer than s.size. Each separator stays
// attached to the text in front of it, so the atoms tile sp exactly.
func (s *Splitter) atoms(runes []rune, sp span, level int, out []span) []span {
	if sp.len() <= s.size {
		return append(out, sp)
	}
	if level >= len(s.separators) || len(s.separators[level]) == 0 {
		for i := sp.start; i < sp.end; i += s.size {
			out = append(out, span{i, min(i+s.size, sp.end)})
		}
		return out
	}

	sep := s.separators[level]
	parts := cutAfter(runes, sp, sep)
	if len(parts) == 1 {
		return s.atoms(runes, sp, level+1, out)
	}
	for _, p := range parts {
		if p.len() <= s.size {
			out = append(out, p)
			continue
		}
		out = s.atoms(runes, p, level+1, out)
	}
	return out
}

// merge packs atoms greedily into windows of at most s.size runes. When a
// window is emitted, trailing atoms totalling at most s.overlap runes are
// carried into the next one.
func (s *Splitter) merge(atoms []span) []span {
	var (
		chunks []span
		window []span
		length int
	)
	for _, a := range atoms {
		if len(window) > 0 && length+a.len() > s.size {
			chunks = append(chunks, span{window[0].start, window[len(window)-1].end})
			for len(window) > 0 && (length > s.overlap || length+a.len() > s.size) {
				length -= window[0].len()
				window = window[1:]
			}
		}
		window = append(window, a)
		length += a.len()
	}
	if len(window) > 0 {
		chunks = append(chunks, span{window[0].start, window[len(window)-1].end})
	}
	return chunks
}

func cutAfter(runes []rune, sp span, sep []rune) []span {
	var parts []span
	from := sp.start
	for i := sp.start; i+len(sep) <= sp.end; {
		if hasPrefixAt(runes, i, sep) {
			i += len(sep)
			parts = append(parts, span{from, i})
			from = i
			continue
		}
		i++
	}
	if from < sp.end {
		parts = append(parts, span{from, sp.end})
	}
	return parts
}

func hasPrefixAt(runes []rune, at int, sep []rune) bool {
	for j, r := range sep {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}

// Reassemble rebuilds the text a sequence of pieces was split from.
func Reassemble(pieces []Piece) string {
	var out []rune
	for _, p := range pieces {
		r := []rune(p.Text)
		skip := len(out) - p.Start
		if skip < 0 {
			skip = 0
		}
		if skip < len(r) {
			out = append(out, r[skip:]...)
		}
	}
	return string(out)
}
