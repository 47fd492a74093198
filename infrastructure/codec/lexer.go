package codec

import (
	"fmt"
	"strconv"

	"github.com/ahrav/go-scrutin/internal/domain"
)

// Entry is one abbreviation/count pair read from a tally field.
type Entry struct {
	// Mention is the scale position, or domain.Abstained for the
	// abstention bucket.
	Mention int

	// Abbrev is the abbreviation as it appeared in the input.
	Abbrev string

	// Count is the decoded vote count.
	Count int

	// Pos is the byte offset of Abbrev in the input.
	Pos int
}

// LexError reports where and why lexing a tally field stopped.
type LexError struct {
	Pos  int
	Text string
	Err  error
}

// Error implements the error interface for LexError.
func (e *LexError) Error() string {
	return fmt.Sprintf("tally lex error: pos=%d, text=%q, err=%v", e.Pos, e.Text, e.Err)
}

// Unwrap returns the failure class.
func (e *LexError) Unwrap() error { return e.Err }

// Lexer splits a tally field such as "TB3B0AB2P1I0R0X1" into entries.
// Abbreviations are resolved greedily with one character of look-ahead:
// when the current and next characters form a two-letter abbreviation of
// the scale both are consumed, otherwise a single letter is looked up.
// A Lexer is immutable after construction and safe for concurrent use.
type Lexer struct {
	table map[string]int
}

// NewLexer builds a lexer over the abbreviations of scale plus the
// abstention abbreviation.
func NewLexer(scale *domain.MentionScale) *Lexer {
	table := make(map[string]int, scale.Size()+1)
	for i := 0; i < scale.Size(); i++ {
		table[scale.Abbreviation(i)] = i
	}
	table[domain.AbstentionAbbreviation] = domain.Abstained
	return &Lexer{table: table}
}

// Lex reads every entry of input. An empty input yields no entries.
func (l *Lexer) Lex(input string) ([]Entry, error) {
	s := &scanner{
		table: l.table,
		input: input,
		seen:  make(map[int]bool, len(l.table)),
	}
	for state := lexAbbrev; state != nil; {
		state = state(s)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

// stateFn is one state of the tally scanner; it returns the next state,
// or nil when scanning is over.
type stateFn func(*scanner) stateFn

type scanner struct {
	table   map[string]int
	input   string
	pos     int
	current Entry
	seen    map[int]bool
	entries []Entry
	err     *LexError
}

func (s *scanner) fail(pos int, text string, err error) stateFn {
	s.err = &LexError{Pos: pos, Text: text, Err: err}
	return nil
}

// lexAbbrev expects an abbreviation at the current position.
func lexAbbrev(s *scanner) stateFn {
	if s.pos >= len(s.input) {
		return nil
	}
	if !isLetter(s.input[s.pos]) {
		return s.fail(s.pos, s.input[s.pos:s.pos+1], domain.ErrUnknownAbbreviation)
	}

	if s.pos+1 < len(s.input) && isLetter(s.input[s.pos+1]) {
		pair := s.input[s.pos : s.pos+2]
		if mention, ok := s.table[pair]; ok {
			return s.acceptAbbrev(pair, mention)
		}
	}

	single := s.input[s.pos : s.pos+1]
	if mention, ok := s.table[single]; ok {
		return s.acceptAbbrev(single, mention)
	}

	end := s.pos + 1
	if end < len(s.input) && isLetter(s.input[end]) {
		end++
	}
	return s.fail(s.pos, s.input[s.pos:end], domain.ErrUnknownAbbreviation)
}

func (s *scanner) acceptAbbrev(abbrev string, mention int) stateFn {
	s.current = Entry{Mention: mention, Abbrev: abbrev, Pos: s.pos}
	s.pos += len(abbrev)
	return lexCount
}

// lexCount expects a non-empty run of digits after an abbreviation.
func lexCount(s *scanner) stateFn {
	start := s.pos
	for s.pos < len(s.input) && isDigit(s.input[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return s.fail(s.current.Pos, s.current.Abbrev, domain.ErrInvalidCount)
	}

	count, err := strconv.Atoi(s.input[start:s.pos])
	if err != nil {
		return s.fail(start, s.input[start:s.pos], domain.ErrInvalidCount)
	}
	if s.seen[s.current.Mention] {
		return s.fail(s.current.Pos, s.current.Abbrev, domain.ErrDuplicateMention)
	}

	s.seen[s.current.Mention] = true
	s.current.Count = count
	s.entries = append(s.entries, s.current)
	return lexAbbrev
}

func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
