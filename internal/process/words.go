package process

import (
	"errors"
	"strings"
	"unicode"
)

var errUnclosedQuote = errors.New("unclosed quote in command")

// splitWords splits a command string into arguments.
// Single and double quotes group words and are removed. Outside quotes a
// backslash escapes the next character; inside double quotes it only
// escapes '"' and '\\'. Pipes, redirects and variables are passed through
// literally.
func splitWords(command string) ([]string, error) {
	var (
		args      []string
		current   strings.Builder
		inWord    bool
		quoteChar rune
	)

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quoteChar != 0:
			switch {
			case r == quoteChar:
				quoteChar = 0
			case r == '\\' && quoteChar == '"' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
				i++
				current.WriteRune(runes[i])
			default:
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quoteChar = r
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
			inWord = true
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quoteChar != 0 {
		return nil, errUnclosedQuote
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}
