package audio

import (
	"context"
	"sync"
)

// MockSink records playback requests instead of touching an audio
// device.
type MockSink struct {
	mu      sync.Mutex
	clips   [][]byte
	PlayErr error
	closed  bool
}

// NewMockSink returns an empty recording sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Play records the clip and returns the scripted error, if any.
func (m *MockSink) Play(ctx context.Context, mp3Data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlayErr != nil {
		return m.PlayErr
	}
	clip := make([]byte, len(mp3Data))
	copy(clip, mp3Data)
	m.clips = append(m.clips, clip)
	return nil
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Clips returns the recorded playback requests.
func (m *MockSink) Clips() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.clips))
	copy(out, m.clips)
	return out
}

// Closed reports whether Close has been called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
