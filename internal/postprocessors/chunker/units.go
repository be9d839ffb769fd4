package chunker

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/custodia-labs/passage/internal/core/domain"
)

// scanner yields the byte offset where each successive unit ends.
type scanner interface {
	next() (int, bool)
}

func newScanner(text string, unit domain.ChunkUnit) scanner {
	switch unit {
	case domain.ChunkUnitWord:
		return &wordScanner{rest: text, state: -1}
	case domain.ChunkUnitSentence:
		return &sentenceScanner{
			rest:      text,
			state:     -1,
			graphemes: graphemeScanner{rest: text, state: -1},
		}
	default:
		return &graphemeScanner{rest: text, state: -1}
	}
}

type graphemeScanner struct {
	rest  string
	pos   int
	state int
}

func (s *graphemeScanner) next() (int, bool) {
	if s.rest == "" {
		return 0, false
	}
	var cluster string
	cluster, s.rest, _, s.state = uniseg.FirstGraphemeClusterInString(s.rest, s.state)
	s.pos += len(cluster)
	return s.pos, true
}

// sentenceScanner yields sentence ends snapped forward to the next
// grapheme boundary. Sentence segmentation may end a sentence between
// "\r" and "\n", which is a single grapheme cluster.
type sentenceScanner struct {
	rest  string
	pos   int
	state int

	graphemes graphemeScanner
	gpos      int
}

func (s *sentenceScanner) next() (int, bool) {
	if s.rest == "" {
		return 0, false
	}
	var sentence string
	sentence, s.rest, s.state = uniseg.FirstSentenceInString(s.rest, s.state)
	s.pos += len(sentence)

	for s.gpos < s.pos {
		end, ok := s.graphemes.next()
		if !ok {
			break
		}
		s.gpos = end
	}
	if s.gpos > s.pos {
		s.rest = s.rest[s.gpos-s.pos:]
		s.pos = s.gpos
		s.state = -1
	}
	return s.pos, true
}

// wordScanner groups a word with the whitespace that follows it, so units
// always end right before the next word starts.
type wordScanner struct {
	rest  string
	pos   int
	state int
}

func (s *wordScanner) next() (int, bool) {
	if s.rest == "" {
		return 0, false
	}
	sawSpace := false
	for s.rest != "" {
		segment, rest, state := uniseg.FirstWordInString(s.rest, s.state)
		space := isSpace(segment)
		if sawSpace && !space {
			break
		}
		s.rest, s.state = rest, state
		s.pos += len(segment)
		sawSpace = sawSpace || space
	}
	return s.pos, true
}

func isSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return s != ""
}

// window holds the unit ends of the current chunk window and the
// sentence boundaries needed to rank cuts inside it.
type window struct {
	text  string
	unit  domain.ChunkUnit
	units scanner
	ends  []int
	done  bool

	sentences     scanner
	sentenceEnds  []int
	sentencesDone bool
}

func newWindow(text string, unit domain.ChunkUnit) *window {
	w := &window{
		text:  text,
		unit:  unit,
		units: newScanner(text, unit),
	}
	if unit != domain.ChunkUnitSentence {
		w.sentences = newScanner(text, domain.ChunkUnitSentence)
	}
	return w
}

// fill reads units until n are buffered or the text is exhausted.
func (w *window) fill(n int) {
	for !w.done && len(w.ends) < n {
		end, ok := w.units.next()
		if !ok {
			w.done = true
			break
		}
		w.ends = append(w.ends, end)
	}
}

// drop discards the first n units; start is the new window's byte offset.
func (w *window) drop(n, start int) {
	w.ends = w.ends[n:]
	i := sort.SearchInts(w.sentenceEnds, start)
	w.sentenceEnds = w.sentenceEnds[i:]
}

// strength ranks a cut at byte offset pos.
func (w *window) strength(pos int) int {
	switch {
	case isParagraphBreak(w.text, pos):
		return domain.BoundaryParagraph.Strength()
	case w.isSentenceEnd(pos):
		return domain.BoundarySentence.Strength()
	case w.unit == domain.ChunkUnitWord || endsWithSpace(w.text, pos):
		return domain.BoundaryWord.Strength()
	default:
		return domain.BoundaryHard.Strength()
	}
}

func (w *window) isSentenceEnd(pos int) bool {
	if w.unit == domain.ChunkUnitSentence {
		return true
	}
	for !w.sentencesDone && (len(w.sentenceEnds) == 0 || w.sentenceEnds[len(w.sentenceEnds)-1] < pos) {
		end, ok := w.sentences.next()
		if !ok {
			w.sentencesDone = true
			break
		}
		w.sentenceEnds = append(w.sentenceEnds, end)
	}
	i := sort.SearchInts(w.sentenceEnds, pos)
	return i < len(w.sentenceEnds) && w.sentenceEnds[i] == pos
}

// isParagraphBreak reports whether pos directly follows a blank line.
func isParagraphBreak(text string, pos int) bool {
	if pos <= 0 || pos > len(text) || text[pos-1] != '\n' {
		return false
	}
	for i := pos - 2; i >= 0; i-- {
		switch text[i] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return false
}

func endsWithSpace(text string, pos int) bool {
	if pos <= 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return unicode.IsSpace(r)
}
