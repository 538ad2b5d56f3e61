// Package audio plays extracted MP3 artifacts through the system audio
// device.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// ErrBusy is returned when playback is requested while another clip is
// still playing.
var ErrBusy = errors.New("audio: player busy")

// Sink plays one MP3 clip to completion. Implementations are safe for
// use from a single goroutine at a time.
type Sink interface {
	Play(ctx context.Context, mp3Data []byte) error
	Close() error
}

// Player decodes MP3 bytes and plays them through the default output
// device. The underlying audio context is created on first use and its
// sample rate is fixed from then on.
type Player struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	sampleRate int
	playing    bool
	closed     bool
}

// NewPlayer returns a Player. No audio device is touched until the
// first Play call.
func NewPlayer() *Player {
	return &Player{}
}

// Play decodes and plays the clip, blocking until playback finishes or
// the context is canceled.
func (p *Player) Play(ctx context.Context, mp3Data []byte) error {
	dec, err := mp3.NewDecoder(bytes.NewReader(mp3Data))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("audio: player closed")
	}
	if p.playing {
		p.mu.Unlock()
		return ErrBusy
	}
	if p.otoCtx == nil {
		otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   dec.SampleRate(),
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			p.mu.Unlock()
			return fmt.Errorf("open audio device: %w", err)
		}
		<-ready
		p.otoCtx = otoCtx
		p.sampleRate = dec.SampleRate()
	} else if dec.SampleRate() != p.sampleRate {
		p.mu.Unlock()
		return fmt.Errorf("audio: device opened at %d Hz, clip is %d Hz", p.sampleRate, dec.SampleRate())
	}
	p.playing = true
	player := p.otoCtx.NewPlayer(dec)
	p.mu.Unlock()

	defer func() {
		player.Close()
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	player.Play()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	if err := player.Err(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

// Close releases the audio context, if one was opened.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Duration reports the decoded length of an MP3 clip. Zero-length or
// undecodable input yields an error.
func Duration(mp3Data []byte) (time.Duration, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(mp3Data))
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	// The decoder exposes 16-bit stereo samples.
	n, err := io.Copy(io.Discard, dec)
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	samples := n / 4
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate()), nil
}
