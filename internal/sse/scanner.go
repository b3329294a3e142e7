package sse

import (
	"bufio"
	"io"
	"strings"
)

const MaxScanTokenSize = 5 * 1024 * 1024

// Event is one dispatched server-sent event.
type Event struct {
	Type string
	Data string
	ID   string
}

// IsDone reports whether the event is the terminal frame.
func (e Event) IsDone() bool {
	return e.Data == DoneSentinel
}

// Scanner reads events from an SSE byte stream. Data lines of one event are
// joined with "\n"; comment-only frames are skipped.
type Scanner struct {
	scanner *bufio.Scanner
	event   Event
}

func NewScanner(r io.Reader) *Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxScanTokenSize)
	return &Scanner{scanner: scanner}
}

// Next advances to the next event. It returns false at end of input or on
// a read error; check Err.
func (s *Scanner) Next() bool {
	var lines []string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if len(lines) == 0 {
				continue
			}
			event := ParseEvent(lines)
			lines = lines[:0]
			if event == (Event{}) {
				continue
			}
			s.event = event
			return true
		}
		lines = append(lines, line)
	}
	if len(lines) > 0 {
		s.event = ParseEvent(lines)
		return s.event != (Event{})
	}
	return false
}

func (s *Scanner) Event() Event { return s.event }

func (s *Scanner) Err() error { return s.scanner.Err() }

// ParseEvent builds an event from the lines of one frame.
func ParseEvent(lines []string) Event {
	var event Event
	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event.Type = value
		case "data":
			if event.Data != "" {
				event.Data += "\n"
			}
			event.Data += value
		case "id":
			event.ID = value
		}
	}
	return event
}
