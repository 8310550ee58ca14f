package usage

import "strings"

type assignScan struct {
	op       AssignOp
	lhs      string
	rhs      string
	rhsStart int
	rhsEnd   int
	// compound is set for op= forms, which also read the target.
	compound bool
}

// scanAssignment looks for the assignment operator that follows an lvalue
// starting at lhsStart. Only operators outside any (), [] or {} count, and
// the scan gives up at the end of the statement or list item.
func scanAssignment(text string, lhsStart int) (assignScan, bool) {
	depth := 0
	for i := lhsStart; i < len(text); i++ {
		switch c := text[i]; c {
		case '"':
			i = skipString(text, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return assignScan{}, false
			}
			depth--
		case ';':
			return assignScan{}, false
		case ',':
			if depth == 0 {
				return assignScan{}, false
			}
		case '<':
			if depth > 0 || i+1 >= len(text) || text[i+1] != '=' {
				continue
			}
			if i > 0 && (text[i-1] == '<' || text[i-1] == '>') {
				continue // <<= or >>=: handled at the '='
			}
			return finishScan(text, Nonblocking, lhsStart, i, i+2)
		case '=':
			if depth > 0 {
				continue
			}
			var prev, next byte
			if i > 0 {
				prev = text[i-1]
			}
			if i+1 < len(text) {
				next = text[i+1]
			}
			if prev == '=' || prev == '!' || next == '=' {
				continue
			}
			opStart := i
			for opStart > lhsStart && strings.IndexByte("+-*/%&|^<>", text[opStart-1]) >= 0 {
				opStart--
			}
			scan, ok := finishScan(text, BlockingOrCont, lhsStart, opStart, i+1)
			scan.compound = opStart < i
			return scan, ok
		}
	}
	return assignScan{}, false
}

func finishScan(text string, op AssignOp, lhsStart, lhsEnd, rhsFrom int) (assignScan, bool) {
	rs, re, ok := rhsRange(text, rhsFrom)
	if !ok {
		return assignScan{}, false
	}
	return assignScan{
		op:       op,
		lhs:      strings.TrimSpace(text[lhsStart:lhsEnd]),
		rhs:      text[rs:re],
		rhsStart: rs,
		rhsEnd:   re,
	}, true
}

// rhsRange returns the trimmed extent of an expression starting at from and
// ending before the next top-level ';' or ',' or an unbalanced closer.
func rhsRange(text string, from int) (int, int, bool) {
	depth := 0
	end := -1
loop:
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '"':
			i = skipString(text, i)
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				end = i
				break loop
			}
			depth--
		case ';', ',':
			if depth == 0 {
				end = i
				break loop
			}
		}
	}
	if end < 0 {
		return 0, 0, false
	}
	start := from
	for start < end && isBlank(text[start]) {
		start++
	}
	for end > start && isBlank(text[end-1]) {
		end--
	}
	return start, end, true
}

// skipString returns the index of the closing quote of the string literal
// opened at i, or the last index of text.
func skipString(text string, i int) int {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '"', '\n':
			return j
		}
	}
	return len(text) - 1
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
