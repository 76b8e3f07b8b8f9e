package browser

import "testing"

func TestStreamerConfigClamped(t *testing.T) {
	tests := []struct {
		name string
		in   StreamerConfig
		want StreamerConfig
	}{
		{"zero value", StreamerConfig{}, StreamerConfig{FPS: MinFPS, Quality: MinQuality}},
		{"in range", StreamerConfig{FPS: 2, Quality: 80}, StreamerConfig{FPS: 2, Quality: 80}},
		{"too fast", StreamerConfig{FPS: 60, Quality: 80}, StreamerConfig{FPS: MaxFPS, Quality: 80}},
		{"too slow", StreamerConfig{FPS: 0.1, Quality: 80}, StreamerConfig{FPS: MinFPS, Quality: 80}},
		{"quality high", StreamerConfig{FPS: 2, Quality: 150}, StreamerConfig{FPS: 2, Quality: MaxQuality}},
		{"quality low", StreamerConfig{FPS: 2, Quality: -3}, StreamerConfig{FPS: 2, Quality: MinQuality}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.clamped(); got != tt.want {
				t.Errorf("clamped() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInjectQueueBounds(t *testing.T) {
	s := NewStreamer(nil, StreamerConfig{FPS: 1, Quality: 50})
	for i := 0; i < cap(s.inputs); i++ {
		if !s.Inject(Input{Kind: InputKey, Key: "Enter"}) {
			t.Fatalf("inject %d refused before the queue filled", i)
		}
	}
	if s.Inject(Input{Kind: InputKey, Key: "Enter"}) {
		t.Error("inject accepted past the queue capacity")
	}
}

func TestInjectAfterStop(t *testing.T) {
	s := NewStreamer(nil, StreamerConfig{FPS: 1, Quality: 50})
	close(s.stop)
	if s.Inject(Input{Kind: InputKey, Key: "Enter"}) {
		t.Error("inject accepted after stop")
	}
}
