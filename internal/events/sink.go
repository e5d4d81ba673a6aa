package events

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameSize guards readers against corrupt length prefixes
const maxFrameSize = 16 << 20

// MsgpackSink appends events to a writer as length-prefixed msgpack frames:
// a big-endian uint32 byte count followed by the encoded Event. It is the
// hand-off point for whatever persists run counters; the engine never writes
// storage itself.
type MsgpackSink struct {
	mu     sync.Mutex
	w      io.Writer
	log    zerolog.Logger
	unsubs []func()
}

// NewMsgpackSink creates a sink writing to w
func NewMsgpackSink(w io.Writer, log zerolog.Logger) *MsgpackSink {
	return &MsgpackSink{
		w:   w,
		log: log.With().Str("component", "msgpack_sink").Logger(),
	}
}

// Attach subscribes the sink to the given event types on bus.
func (s *MsgpackSink) Attach(bus *Bus, types ...EventType) {
	for _, t := range types {
		s.unsubs = append(s.unsubs, bus.Subscribe(t, s.handle))
	}
}

// Detach removes every subscription made by Attach.
func (s *MsgpackSink) Detach() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

func (s *MsgpackSink) handle(event *Event) {
	if err := s.Write(event); err != nil {
		s.log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to write event frame")
	}
}

// Write encodes a single event frame.
func (s *MsgpackSink) Write(event *Event) error {
	payload, err := msgpack.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("event frame of %d bytes exceeds limit", len(payload))
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write event frame: %w", err)
	}
	return nil
}

// ReadFrames decodes every frame from r until EOF.
func ReadFrames(r io.Reader) ([]Event, error) {
	br := bufio.NewReader(r)
	var out []Event
	header := make([]byte, 4)

	for {
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("failed to read frame header: %w", err)
		}
		size := binary.BigEndian.Uint32(header)
		if size > maxFrameSize {
			return out, fmt.Errorf("frame of %d bytes exceeds limit", size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(br, payload); err != nil {
			return out, fmt.Errorf("failed to read frame payload: %w", err)
		}
		var e Event
		if err := msgpack.Unmarshal(payload, &e); err != nil {
			return out, fmt.Errorf("failed to decode frame: %w", err)
		}
		out = append(out, e)
	}
}
