// Package stomp implements the small subset of STOMP 1.2 frames used by the
// note push channel.
package stomp

import (
	"strconv"
	"strings"
)

const (
	CommandConnect     = "CONNECT"
	CommandStomp       = "STOMP"
	CommandConnected   = "CONNECTED"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandSend        = "SEND"
	CommandMessage     = "MESSAGE"
	CommandDisconnect  = "DISCONNECT"
	CommandError       = "ERROR"
)

const (
	TopicNoteUpdates   = "/topic/note-updates"
	TopicNoteDeletions = "/topic/note-deletions"

	AppNoteUpdates   = "/app/note-updates"
	AppNoteDeletions = "/app/note-deletions"
)

const (
	HeaderDestination   = "destination"
	HeaderID            = "id"
	HeaderSubscription  = "subscription"
	HeaderMessageID     = "message-id"
	HeaderContentType   = "content-type"
	HeaderContentLength = "content-length"
	HeaderAcceptVersion = "accept-version"
	HeaderVersion       = "version"
	HeaderHost          = "host"
	HeaderMessage       = "message"
)

const terminator = "\x00"

type Header struct {
	Key   string
	Value string
}

type Frame struct {
	Command string
	Headers []Header
	Body    string
}

// Header returns the first value for key. Repeated headers keep the first
// occurrence as STOMP 1.2 requires.
func (f *Frame) Header(key string) string {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value
		}
	}
	return ""
}

func (f *Frame) String() string {
	return Encode(f.Command, f.Headers, f.Body)
}

// Encode renders a frame as COMMAND, header lines, a blank line, the body
// and a NUL terminator.
func Encode(command string, headers []Header, body string) string {
	var b strings.Builder
	b.WriteString(command)
	b.WriteByte('\n')
	escaped := escapes(command)
	for _, h := range headers {
		if escaped {
			b.WriteString(escapeHeader(h.Key))
			b.WriteByte(':')
			b.WriteString(escapeHeader(h.Value))
		} else {
			b.WriteString(h.Key)
			b.WriteByte(':')
			b.WriteString(h.Value)
		}
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(body)
	b.WriteString(terminator)
	return b.String()
}

// Decode parses a frame received by a client. Only MESSAGE frames are
// reported; connection bookkeeping frames and malformed input yield false.
func Decode(text string) (*Frame, bool) {
	f, ok := parse(text)
	if !ok || f.Command != CommandMessage {
		return nil, false
	}
	return f, true
}

// DecodeAny parses any frame a client may send to the broker.
func DecodeAny(text string) (*Frame, bool) {
	f, ok := parse(text)
	if !ok {
		return nil, false
	}
	switch f.Command {
	case CommandConnect, CommandStomp, CommandSubscribe, CommandUnsubscribe,
		CommandSend, CommandDisconnect:
		return f, true
	}
	return nil, false
}

func parse(text string) (*Frame, bool) {
	// Heart-beats are bare EOLs in front of the frame.
	text = strings.TrimLeft(text, "\r\n")
	if text == "" {
		return nil, false
	}

	// The header block ends at the first blank line in either line ending.
	lf := strings.Index(text, "\n\n")
	crlf := strings.Index(text, "\r\n\r\n")
	var head, body string
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		head, body = text[:crlf], text[crlf+4:]
	case lf >= 0:
		head, body = text[:lf], text[lf+2:]
	default:
		return nil, false
	}

	lines := strings.Split(strings.ReplaceAll(head, "\r\n", "\n"), "\n")
	command := strings.TrimSpace(lines[0])
	if command == "" {
		return nil, false
	}

	f := &Frame{Command: command}
	escaped := escapes(command)
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" {
			return nil, false
		}
		if escaped {
			var kok, vok bool
			key, kok = unescapeHeader(key)
			value, vok = unescapeHeader(value)
			if !kok || !vok {
				return nil, false
			}
		}
		f.Headers = append(f.Headers, Header{Key: key, Value: value})
	}

	if n, err := strconv.Atoi(f.Header(HeaderContentLength)); err == nil && n >= 0 && n <= len(body) {
		body = body[:n]
	} else if i := strings.IndexByte(body, 0); i >= 0 {
		body = body[:i]
	}
	f.Body = body
	return f, true
}

// CONNECT and CONNECTED frames carry raw header values.
func escapes(command string) bool {
	return command != CommandConnect && command != CommandConnected && command != CommandStomp
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

func escapeHeader(s string) string {
	return headerEscaper.Replace(s)
}

func unescapeHeader(s string) (string, bool) {
	if !strings.Contains(s, `\`) {
		return s, true
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", false
		}
		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		default:
			return "", false
		}
	}
	return b.String(), true
}
