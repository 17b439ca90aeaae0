package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter frames modem output for a bufio.Scanner. Tokens are lines with
// their terminator removed, or the bare SMS text prompt ("> "), which the
// modem sends without a line ending. A line that merely starts with "> ",
// such as a message body, stays a line.
//
// Lines normally end in CRLF, but a lone LF is accepted too and a stray CR
// before it is dropped. Echo must be off (ATE0): echoed commands would come
// back as ordinary data lines.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}

	if isPrompt(data) {
		return len(Prompt), data[:len(Prompt)], nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, bytes.TrimRight(data[:i], CR), nil
	}

	if atEOF {
		return len(data), bytes.TrimRight(data, CR), nil
	}

	// Ask for more data.
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// isPrompt reports whether data starts with the prompt and nothing but line
// terminators follow it on the same line.
func isPrompt(data []byte) bool {
	rest, ok := bytes.CutPrefix(data, []byte(Prompt))
	if !ok {
		return false
	}
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return len(bytes.Trim(rest, CR)) == 0
}

// Classify tells final results, unsolicited indications, the SMS prompt and
// intermediate data apart.
func Classify(line string) ResponseType {
	switch {
	case line == Prompt:
		return TypePrompt
	case isFinal(line):
		return TypeFinal
	case IsURC(line):
		return TypeURC
	default:
		return TypeData
	}
}

func isFinal(line string) bool {
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return true
	}
	return strings.HasPrefix(line, CmeError) || strings.HasPrefix(line, CmsError)
}
