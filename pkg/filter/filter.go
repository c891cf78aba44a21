// Package filter detects and censors blocked words in transcripts and replies.
package filter

import (
	"bufio"
	_ "embed"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder replaces every censored word.
const Placeholder = "***"

//go:embed blocked_words.txt
var defaultWords string

// WordFilter matches whole words case-insensitively. Word boundaries are
// Unicode-aware, so "lan" does not match inside "alan" and Turkish letters
// count as word characters.
type WordFilter struct {
	words    []string
	patterns []*regexp.Regexp
}

// New builds a filter for the given words. Blank entries are ignored and
// duplicates collapse.
func New(words []string) *WordFilter {
	seen := make(map[string]bool, len(words))
	uniq := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		uniq = append(uniq, w)
	}

	// Longest first so a longer word is censored before any shorter word it contains.
	sort.SliceStable(uniq, func(i, j int) bool {
		return utf8.RuneCountInString(uniq[i]) > utf8.RuneCountInString(uniq[j])
	})

	f := &WordFilter{words: uniq, patterns: make([]*regexp.Regexp, len(uniq))}
	for i, w := range uniq {
		f.patterns[i] = regexp.MustCompile("(?i)" + regexp.QuoteMeta(w))
	}
	return f
}

// Default returns a filter over the embedded word list.
func Default() *WordFilter {
	words, _ := parse(strings.NewReader(defaultWords))
	return New(words)
}

// Load reads one word per line from path. A missing file falls back to the
// embedded list with a warning.
func Load(path string, logger *slog.Logger) (*WordFilter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "filter")

	if path == "" {
		return Default(), nil
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("blocked words file not found, using built-in list", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	words, err := parse(file)
	if err != nil {
		return nil, err
	}
	f := New(words)
	logger.Info("loaded blocked words", "path", path, "count", f.Len())
	return f, nil
}

func parse(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}

// Len returns the number of distinct blocked words.
func (f *WordFilter) Len() int {
	return len(f.words)
}

// ContainsProfanity reports whether text contains any blocked word.
func (f *WordFilter) ContainsProfanity(text string) bool {
	if text == "" {
		return false
	}
	for _, re := range f.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if isWholeWord(text, loc[0], loc[1]) {
				return true
			}
		}
	}
	return false
}

// Censor replaces every blocked word in text with Placeholder.
func (f *WordFilter) Censor(text string) string {
	if text == "" {
		return text
	}
	for _, re := range f.patterns {
		text = replaceWholeWords(re, text)
	}
	return text
}

func replaceWholeWords(re *regexp.Regexp, text string) string {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if !isWholeWord(text, loc[0], loc[1]) {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(Placeholder)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func isWholeWord(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
