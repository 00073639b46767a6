package mini

import (
	"fmt"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokRest
	tokOpenSeq   // [
	tokCloseSeq  // ]
	tokOpenAlt   // <
	tokCloseAlt  // >
	tokOpenPar   // (
	tokClosePar  // )
	tokComma     // ,
	tokFast      // *
	tokSlow      // /
	tokReplicate // !
	tokDegrade   // ?
	tokLate      // @
)

var tokenNames = map[tokenKind]string{
	tokEOF:       "end of input",
	tokWord:      "word",
	tokRest:      "'~'",
	tokOpenSeq:   "'['",
	tokCloseSeq:  "']'",
	tokOpenAlt:   "'<'",
	tokCloseAlt:  "'>'",
	tokOpenPar:   "'('",
	tokClosePar:  "')'",
	tokComma:     "','",
	tokFast:      "'*'",
	tokSlow:      "'/'",
	tokReplicate: "'!'",
	tokDegrade:   "'?'",
	tokLate:      "'@'",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	text string
	pos  int
	// spaced is set when whitespace separates the token from the previous one
	spaced bool
}

var punctuation = map[rune]tokenKind{
	'~': tokRest,
	'[': tokOpenSeq,
	']': tokCloseSeq,
	'<': tokOpenAlt,
	'>': tokCloseAlt,
	'(': tokOpenPar,
	')': tokClosePar,
	',': tokComma,
	'*': tokFast,
	'/': tokSlow,
	'!': tokReplicate,
	'?': tokDegrade,
	'@': tokLate,
}

func isWordRune(r rune) bool {
	switch r {
	case '.', ':', '#', '_', '-', '\'':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lex(text string) ([]token, error) {
	var tokens []token
	runes := []rune(text)
	spaced := true
	// byte offsets for error messages
	offsets := make([]int, len(runes)+1)
	o := 0
	for i, r := range runes {
		offsets[i] = o
		o += len(string(r))
	}
	offsets[len(runes)] = o
	for i := 0; i < len(runes); {
		r := runes[i]
		if unicode.IsSpace(r) {
			spaced = true
			i++
			continue
		}
		if k, ok := punctuation[r]; ok {
			tokens = append(tokens, token{kind: k, text: string(r), pos: offsets[i], spaced: spaced})
			spaced = false
			i++
			continue
		}
		if !isWordRune(r) {
			return nil, &ParseError{Pos: offsets[i], Msg: fmt.Sprintf("unexpected character %q", r)}
		}
		start := i
		for i < len(runes) && isWordRune(runes[i]) {
			i++
		}
		tokens = append(tokens, token{kind: tokWord, text: string(runes[start:i]), pos: offsets[start], spaced: spaced})
		spaced = false
	}
	tokens = append(tokens, token{kind: tokEOF, pos: offsets[len(runes)], spaced: spaced})
	return tokens, nil
}
