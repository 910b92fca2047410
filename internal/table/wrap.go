package table

import (
	"strings"
	"unicode"
)

// Wrap word-wraps every string cell of a column to lines of at most width
// characters joined by '\n'. Words longer than width are split.
func (t *Table) Wrap(column string, width int) error {
	if width <= 0 {
		return nil
	}
	idx, err := t.Index(column)
	if err != nil {
		return err
	}
	for _, row := range t.Rows {
		if row[idx] == nil {
			continue
		}
		row[idx] = strings.Join(WrapText(toString(row[idx]), width), "\n")
	}
	return nil
}

// WrapText splits text into lines no longer than width runes. Lines break
// at whitespace and after hyphens inside words ("Spa-Francorchamps" may end
// a line at "Spa-"). A chunk wider than width fills the rest of the current
// line and continues on the next one.
func WrapText(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	chunks := splitChunks(text)

	var lines []string
	for len(chunks) > 0 {
		if len(lines) > 0 && isBlank(chunks[0]) {
			chunks = chunks[1:]
			if len(chunks) == 0 {
				break
			}
		}

		var line [][]rune
		n := 0
		for len(chunks) > 0 && n+len(chunks[0]) <= width {
			line = append(line, chunks[0])
			n += len(chunks[0])
			chunks = chunks[1:]
		}

		if len(chunks) > 0 && len(chunks[0]) > width {
			c := chunks[0]
			end := width - n
			if h := lastHyphen(c[:end]); h > 0 {
				end = h + 1
			}
			if end > 0 {
				line = append(line, c[:end])
			}
			chunks[0] = c[end:]
		}

		if len(line) > 0 && isBlank(line[len(line)-1]) {
			line = line[:len(line)-1]
		}
		if len(line) > 0 {
			var b strings.Builder
			for _, c := range line {
				b.WriteString(string(c))
			}
			lines = append(lines, b.String())
		}
	}
	return lines
}

// splitChunks cuts text into whitespace runs and words; a hyphen between
// letters ends a word chunk.
func splitChunks(text string) [][]rune {
	var chunks [][]rune
	runes := []rune(text)
	for i := 0; i < len(runes); {
		j := i
		if unicode.IsSpace(runes[i]) {
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			chunks = append(chunks, []rune(strings.Repeat(" ", j-i)))
			i = j
			continue
		}
		for j < len(runes) && !unicode.IsSpace(runes[j]) {
			j++
			if j < len(runes) && runes[j-1] == '-' && hyphenBreak(runes[i:j+1]) {
				break
			}
		}
		chunks = append(chunks, runes[i:j])
		i = j
	}
	return chunks
}

// hyphenBreak reports whether word, ending one rune past a hyphen, may be
// broken after that hyphen: two letters before it and a letter after.
func hyphenBreak(word []rune) bool {
	n := len(word)
	return n >= 4 &&
		unicode.IsLetter(word[n-4]) && unicode.IsLetter(word[n-3]) &&
		unicode.IsLetter(word[n-1])
}

func lastHyphen(c []rune) int {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] == '-' {
			for _, r := range c[:i] {
				if r != '-' {
					return i
				}
			}
			return -1
		}
	}
	return -1
}

func isBlank(c []rune) bool {
	return strings.TrimSpace(string(c)) == ""
}
