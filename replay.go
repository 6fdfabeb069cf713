package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

const replayVersion = 1

var ErrReplayClosed = errors.New("replay closed")

// ReplayHeader opens every replay file
type ReplayHeader struct {
	Version int              `json:"version"`
	Lobby   LobbyDataPayload `json:"lobby"`
}

// ReplayFrame is one published tick as a spectator saw it
type ReplayFrame struct {
	Tick  int                `json:"tick"`
	State SpectatorGameState `json:"state"`
}

// ReplayWriter appends msgpack records to <dir>/<matchID>.replay
type ReplayWriter struct {
	mu     sync.Mutex
	f      *os.File
	bw     *bufio.Writer
	enc    *msgpack.Encoder
	path   string
	closed bool
}

// NewReplayWriter creates the replay file, truncating any previous one
func NewReplayWriter(dir, matchID string) (*ReplayWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, matchID+".replay")
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(f)
	enc := msgpack.NewEncoder(bw)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	return &ReplayWriter{f: f, bw: bw, enc: enc, path: path}, nil
}

// Path returns the file being written
func (w *ReplayWriter) Path() string { return w.path }

func (w *ReplayWriter) encode(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrReplayClosed
	}
	return w.enc.Encode(v)
}

// WriteHeader records the lobby the match started from
func (w *ReplayWriter) WriteHeader(lobby LobbyDataPayload) error {
	return w.encode(ReplayHeader{Version: replayVersion, Lobby: lobby})
}

// WriteFrame records one tick
func (w *ReplayWriter) WriteFrame(tick int, state SpectatorGameState) error {
	return w.encode(ReplayFrame{Tick: tick, State: state})
}

// Close flushes and closes the file; later calls are no-ops
func (w *ReplayWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flushing replay: %w", err)
	}
	return w.f.Close()
}

// ReadReplay decodes a replay file. Frames are decoded generically since
// payload enum fields are polymorphic on the wire.
func ReadReplay(path string) (ReplayHeader, []map[string]any, error) {
	var hdr ReplayHeader
	f, err := os.Open(path)
	if err != nil {
		return hdr, nil, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(bufio.NewReader(f))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&hdr); err != nil {
		return hdr, nil, fmt.Errorf("decoding replay header: %w", err)
	}
	if hdr.Version != replayVersion {
		return hdr, nil, fmt.Errorf("unsupported replay version %d", hdr.Version)
	}

	var frames []map[string]any
	for {
		var fr map[string]any
		if err := dec.Decode(&fr); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return hdr, frames, fmt.Errorf("decoding replay frame %d: %w", len(frames), err)
		}
		frames = append(frames, fr)
	}
	return hdr, frames, nil
}
