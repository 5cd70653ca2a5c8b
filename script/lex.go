// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package script

import (
	"strings"
	"unicode"

	"github.com/db47h/vmsim/internal/lex"
)

// token types
//
const (
	EOF    lex.Type = lex.EOF
	Word   lex.Type = iota // value is a string
	String                 // quoted string, value is the unquoted string
	Term                   // terminator, value is a controller.Terminator
	LBrace
	RBrace
)

func isWordRune(r rune) bool {
	if r == lex.EOF || unicode.IsSpace(r) {
		return false
	}
	return !strings.ContainsRune(",;!{}\"", r)
}

func lexInit(l *lex.Lexer) lex.StateFn {
	r := l.Next()
	switch {
	case r == lex.EOF:
		return lexEOF
	case unicode.IsSpace(r):
		l.AcceptWhile(unicode.IsSpace)
		return nil
	case r == ',' || r == ';' || r == '!':
		l.Emit(Term, r)
		return nil
	case r == '{':
		l.Emit(LBrace, "{")
		return nil
	case r == '}':
		l.Emit(RBrace, "}")
		return nil
	case r == '"':
		return lexString
	case r == '/' && l.Peek() == '/':
		l.AcceptWhile(func(r rune) bool { return r != '\n' })
		return nil
	case r == '/' && l.Peek() == '*':
		l.Next()
		return lexComment
	}
	l.Backup()
	return lexWord
}

func lexWord(l *lex.Lexer) lex.StateFn {
	var sb strings.Builder
	for r := l.Next(); isWordRune(r); r = l.Next() {
		// a comment ends a word
		if r == '/' && (l.Peek() == '/' || l.Peek() == '*') {
			break
		}
		sb.WriteRune(r)
	}
	l.Backup()
	l.Emit(Word, sb.String())
	return nil
}

func lexString(l *lex.Lexer) lex.StateFn {
	var sb strings.Builder
	for r := l.Next(); r != '"'; r = l.Next() {
		if r == lex.EOF || r == '\n' {
			l.Errorf("unterminated string")
			return lexEOF
		}
		sb.WriteRune(r)
	}
	l.Emit(String, sb.String())
	return nil
}

func lexComment(l *lex.Lexer) lex.StateFn {
	for r := l.Next(); r != lex.EOF; r = l.Next() {
		if r == '*' && l.Peek() == '/' {
			l.Next()
			return nil
		}
	}
	l.Errorf("unterminated comment")
	return lexEOF
}

func lexEOF(l *lex.Lexer) lex.StateFn {
	l.Emit(EOF, "EOF")
	return lexEOF
}
