package audio

import (
	"context"
	"errors"
	"testing"
)

var (
	_ Sink = (*Player)(nil)
	_ Sink = (*MockSink)(nil)
)

func TestMockSinkRecordsClips(t *testing.T) {
	sink := NewMockSink()
	if err := sink.Play(context.Background(), []byte("clip-a")); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := sink.Play(context.Background(), []byte("clip-b")); err != nil {
		t.Fatalf("Play: %v", err)
	}

	clips := sink.Clips()
	if len(clips) != 2 {
		t.Fatalf("recorded %d clips, want 2", len(clips))
	}
	if string(clips[0]) != "clip-a" || string(clips[1]) != "clip-b" {
		t.Errorf("clips = %q, %q", clips[0], clips[1])
	}
}

func TestMockSinkScriptedError(t *testing.T) {
	sink := NewMockSink()
	sink.PlayErr = errors.New("no device")
	if err := sink.Play(context.Background(), []byte("clip")); err == nil {
		t.Error("scripted error not returned")
	}
	if len(sink.Clips()) != 0 {
		t.Error("failed playback recorded a clip")
	}
}

func TestMockSinkHonorsCanceledContext(t *testing.T) {
	sink := NewMockSink()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Play(ctx, []byte("clip")); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPlayerRejectsGarbage(t *testing.T) {
	p := NewPlayer()
	defer p.Close()
	if err := p.Play(context.Background(), []byte("not an mp3")); err == nil {
		t.Error("garbage input accepted")
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	if _, err := Duration([]byte("not an mp3")); err == nil {
		t.Error("garbage input accepted")
	}
}
