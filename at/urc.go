package at

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a line carries a known marker but its
// fields cannot be extracted.
var ErrMalformed = errors.New("malformed line")

// URCKind is the classified type of an unsolicited line.
type URCKind int

const (
	URCUnknown      URCKind = iota
	URCMessagePush          // +CMT: sender header, body on the next line
	URCMessageIndex         // +CMTI: message stored at an index
	URCCallerID             // +CLIP: / +CLIP2: incoming call caller id
	URCTone                 // +DTMF: in-call key press
	URCRing                 // RING
)

func (k URCKind) String() string {
	switch k {
	case URCMessagePush:
		return "message-push"
	case URCMessageIndex:
		return "message-index"
	case URCCallerID:
		return "caller-id"
	case URCTone:
		return "tone"
	case URCRing:
		return "ring"
	default:
		return "unknown"
	}
}

// Indication is a classified unsolicited line as delivered by the modem
// reader loop. Body is only set for URCMessagePush.
type Indication struct {
	Kind URCKind
	Line string
	Body string
}

// IsURC reports whether line carries one of the unsolicited markers.
// Markers may be embedded after line noise, so they are searched rather
// than matched as a prefix.
func IsURC(line string) bool {
	return ClassifyURC(line) != URCUnknown || strings.Contains(line, UrcMessageReport)
}

// ClassifyURC looks for the embedded markers in priority order: message
// push, message index, caller id (either spelling), tone.
func ClassifyURC(line string) URCKind {
	switch {
	case strings.Contains(line, UrcMessagePush):
		return URCMessagePush
	case strings.Contains(line, UrcNewMsg):
		return URCMessageIndex
	case strings.Contains(line, UrcCallerID), strings.Contains(line, UrcCallerIDAlt):
		return URCCallerID
	case strings.Contains(line, UrcTone):
		return URCTone
	case strings.TrimSpace(line) == UrcCall:
		return URCRing
	default:
		return URCUnknown
	}
}

// TrailingLines reports how many lines following an indication of the
// given kind belong to it.
func TrailingLines(kind URCKind) int {
	if kind == URCMessagePush {
		return 1
	}
	return 0
}

// quoted returns the double-quoted fields of a line in order.
func quoted(line string) []string {
	parts := strings.Split(line, `"`)
	var fields []string
	for i := 1; i < len(parts); i += 2 {
		if i == len(parts)-1 {
			// unterminated quote
			break
		}
		fields = append(fields, parts[i])
	}
	return fields
}

// ParseMessagePush extracts the sender from a +CMT: header line.
func ParseMessagePush(line string) (string, error) {
	fields := quoted(line)
	if len(fields) == 0 || fields[0] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return fields[0], nil
}

// ParseMessageIndex extracts the storage index from a +CMTI: line.
func ParseMessageIndex(line string) (int, error) {
	_, after, ok := strings.Cut(line, ",")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(after))
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return idx, nil
}

// ParseCallerID extracts the quoted number from a +CLIP: or +CLIP2: line.
func ParseCallerID(line string) (string, error) {
	fields := quoted(line)
	if len(fields) == 0 || fields[0] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return fields[0], nil
}

// ParseTone extracts the key from a +DTMF: line.
func ParseTone(line string) (byte, error) {
	_, after, ok := strings.Cut(line, UrcTone)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	after = strings.TrimSpace(after)
	if after == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	return after[0], nil
}

// Message is a stored text message as reported by AT+CMGR.
type Message struct {
	Status string // "REC UNREAD", "REC READ", "STO UNSENT", "STO SENT"
	Sender string
	Time   string
	Text   string
}

// ParseReadMessage extracts the header fields and body from an AT+CMGR
// response.
//
//	+CMGR: "REC UNREAD","+34600111222","","24/01/01,10:00:00+04"
//	0000 9
//	OK
func ParseReadMessage(response string) (Message, error) {
	lines := strings.Split(response, "\n")
	for i, line := range lines {
		if !strings.Contains(line, ReadMessage) {
			continue
		}
		fields := quoted(line)
		if len(fields) < 2 || fields[1] == "" {
			break
		}
		msg := Message{
			Status: fields[0],
			Sender: fields[1],
		}
		if len(fields) > 3 {
			msg.Time = fields[3]
		}
		if i+1 < len(lines) {
			if text := strings.TrimRight(lines[i+1], "\r"); text != OK {
				msg.Text = text
			}
		}
		return msg, nil
	}
	return Message{}, fmt.Errorf("%w: no message in %q", ErrMalformed, response)
}
