// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package lex provides a small state function based lexer.
//
// Lexing is driven by state functions: the initial state function is called
// each time a new token is requested. A state function reads input with Next,
// emits zero or more items with Emit and returns the next state function,
// or nil to go back to the initial state.
//
package lex

import (
	"fmt"
	"io"
	"sort"
)

// Special item types and runes.
//
const (
	EOF   = -1 // end of input
	Error = -2 // lexing error, the item value is the error message
)

// Type is the type of a lexical item.
//
type Type int

// Pos is the position of a rune in the input, in runes from the start of
// the input.
//
type Pos int

// Item is a lexical item.
//
type Item struct {
	Type  Type
	Pos   Pos
	Line  int // 1 based line number
	Value interface{}
}

func (i *Item) String() string {
	switch i.Type {
	case EOF:
		return "end of input"
	case Error:
		return fmt.Sprint(i.Value)
	}
	switch v := i.Value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case rune:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprint(i.Value)
}

// StateFn is a state function.
//
type StateFn func(l *Lexer) StateFn

// Interface is implemented by lexers.
//
type Interface interface {
	// Lex returns the next item. After the end of input has been reached,
	// Lex returns whatever the state functions emit in EOF state.
	Lex() Item
}

// Lexer is a state function based lexer.
//
type Lexer struct {
	src   []rune
	lines []Pos // start of each line
	next  Pos   // position of the next rune to read
	start Pos   // start of the current token
	cur   rune
	init  StateFn
	state StateFn
	items []Item
}

// New returns a new lexer reading from r and starting in the init state. The
// whole input is read on the first call to Lex.
//
func New(r io.Reader, init StateFn) *Lexer {
	l := &Lexer{init: init}
	b, err := io.ReadAll(r)
	l.src = []rune(string(b))
	l.lines = []Pos{0}
	for i, c := range l.src {
		if c == '\n' {
			l.lines = append(l.lines, Pos(i+1))
		}
	}
	if err != nil {
		l.Emit(Error, err.Error())
	}
	return l
}

// Lex implements Interface.
//
func (l *Lexer) Lex() Item {
	for len(l.items) == 0 {
		if l.state == nil {
			l.start = l.next
			l.state = l.init
		}
		l.state = l.state(l)
	}
	i := l.items[0]
	l.items = l.items[1:]
	return i
}

// Next returns the next rune in the input, or EOF at the end of input.
//
func (l *Lexer) Next() rune {
	if int(l.next) >= len(l.src) {
		l.cur = EOF
	} else {
		l.cur = l.src[l.next]
	}
	l.next++
	return l.cur
}

// Backup unreads the last rune returned by Next. Backup can be called
// repeatedly.
//
func (l *Lexer) Backup() {
	if l.next == 0 {
		return
	}
	l.next--
	switch {
	case l.next == 0:
		l.cur = 0
	case int(l.next-1) < len(l.src):
		l.cur = l.src[l.next-1]
	default:
		l.cur = EOF
	}
}

// Peek returns the next rune without consuming it.
//
func (l *Lexer) Peek() rune {
	if int(l.next) >= len(l.src) {
		return EOF
	}
	return l.src[l.next]
}

// Current returns the last rune returned by Next.
//
func (l *Lexer) Current() rune {
	return l.cur
}

// Pos returns the position of the last rune returned by Next.
//
func (l *Lexer) Pos() Pos {
	return l.next - 1
}

// Line returns the line number of the given position.
//
func (l *Lexer) Line(p Pos) int {
	return sort.Search(len(l.lines), func(i int) bool { return l.lines[i] > p })
}

// Ignore discards the runes read so far in the current token.
//
func (l *Lexer) Ignore() {
	l.start = l.next
}

// Emit emits an item starting at the current token start.
//
func (l *Lexer) Emit(t Type, value interface{}) {
	l.items = append(l.items, Item{Type: t, Pos: l.start, Line: l.Line(l.start), Value: value})
}

// Errorf emits an Error item.
//
func (l *Lexer) Errorf(format string, args ...interface{}) {
	l.Emit(Error, fmt.Sprintf(format, args...))
}

// AcceptWhile reads runes while f returns true. It returns false if no rune
// was accepted.
//
func (l *Lexer) AcceptWhile(f func(rune) bool) bool {
	n := 0
	for r := l.Next(); r != EOF && f(r); r = l.Next() {
		n++
	}
	l.Backup()
	return n > 0
}
