package segment

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/chaz8081/gostt-stream/internal/audio"
)

func testSettings() audio.Settings {
	s := audio.DefaultSettings()
	s.MinSilenceDuration = 800 * time.Millisecond
	s.MaxSegmentDuration = 0
	return s
}

func voicedChunk(s audio.Settings) []float32 {
	c := make([]float32, s.ChunkSamples())
	for i := range c {
		c[i] = 0.5
	}
	return c
}

func silentChunk(s audio.Settings) []float32 {
	return make([]float32, s.ChunkSamples())
}

// feed pushes n chunks of the given kind and collects closed segments.
func feed(seg *Segmenter, chunk []float32, n int, out []AudioSegment) []AudioSegment {
	for i := 0; i < n; i++ {
		if a, ok := seg.Push(chunk); ok {
			out = append(out, a)
		}
	}
	return out
}

func TestVoiceSilenceVoiceScenario(t *testing.T) {
	s := testSettings()
	seg := New(s)

	var got []AudioSegment
	got = feed(seg, voicedChunk(s), 30, got) // 3s voiced
	got = feed(seg, silentChunk(s), 20, got) // 2s silence
	got = feed(seg, voicedChunk(s), 10, got) // 1s voiced
	if a, ok := seg.Flush(); ok {
		got = append(got, a)
	}

	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if d := got[0].Duration(); d != 3*time.Second {
		t.Errorf("segment 0 duration = %s, want 3s", d)
	}
	if d := got[1].Duration(); d != time.Second {
		t.Errorf("segment 1 duration = %s, want 1s", d)
	}
	if got[0].Seq != 0 || got[1].Seq != 1 {
		t.Errorf("seqs = %d, %d, want 0, 1", got[0].Seq, got[1].Seq)
	}
	if got[1].Offset != 5*time.Second {
		t.Errorf("segment 1 offset = %s, want 5s", got[1].Offset)
	}
}

func TestLeadingSilenceDiscarded(t *testing.T) {
	s := testSettings()
	seg := New(s)

	got := feed(seg, silentChunk(s), 50, nil)
	if len(got) != 0 {
		t.Fatalf("silence alone produced %d segments", len(got))
	}
	if seg.State() != Listening {
		t.Errorf("State() = %v, want listening", seg.State())
	}
	if _, ok := seg.Flush(); ok {
		t.Error("Flush() after silence only should emit nothing")
	}
}

func TestShortGapIsKept(t *testing.T) {
	s := testSettings()
	seg := New(s)

	var got []AudioSegment
	got = feed(seg, voicedChunk(s), 5, got)
	got = feed(seg, silentChunk(s), 3, got) // 300ms < 800ms
	if seg.State() != FlushingOnSilence {
		t.Errorf("State() = %v, want flushing", seg.State())
	}
	got = feed(seg, voicedChunk(s), 5, got)
	if seg.State() != Accumulating {
		t.Errorf("State() = %v, want accumulating", seg.State())
	}
	got = feed(seg, silentChunk(s), 8, got)

	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if d := got[0].Duration(); d != 1300*time.Millisecond {
		t.Errorf("duration = %s, want 1.3s (gap kept, trailing silence dropped)", d)
	}
}

func TestMaxSegmentDurationCuts(t *testing.T) {
	s := testSettings()
	s.MaxSegmentDuration = time.Second
	seg := New(s)

	got := feed(seg, voicedChunk(s), 25, nil)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	for i, a := range got {
		if a.Duration() != time.Second {
			t.Errorf("segment %d duration = %s, want 1s", i, a.Duration())
		}
	}
	tail, ok := seg.Flush()
	if !ok || tail.Duration() != 500*time.Millisecond {
		t.Errorf("Flush() = %s/%v, want 500ms/true", tail.Duration(), ok)
	}
	if tail.Offset != 2*time.Second {
		t.Errorf("tail offset = %s, want 2s", tail.Offset)
	}
}

func TestStereoIsDownmixed(t *testing.T) {
	s := testSettings()
	s.Channels = 2
	seg := New(s)

	got := feed(seg, voicedChunk(s), 10, nil)
	got = feed(seg, silentChunk(s), 8, got)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if n := len(got[0].Samples); n != 16000 {
		t.Errorf("mono samples = %d, want 16000", n)
	}
}

func TestEmptyChunkIgnored(t *testing.T) {
	seg := New(testSettings())
	if _, ok := seg.Push(nil); ok {
		t.Error("Push(nil) should not close a segment")
	}
	if seg.State() != Listening {
		t.Errorf("State() = %v, want listening", seg.State())
	}
}

func TestSegmentsCoverVoicedInput(t *testing.T) {
	s := testSettings()
	s.MaxSegmentDuration = 2 * time.Second
	voiced, silent := voicedChunk(s), silentChunk(s)
	chunk := s.ChunkDuration

	for seed := uint64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7))
		seg := New(s)

		var (
			got      []AudioSegment
			voicedAt []time.Duration
			pos      time.Duration
		)
		for i := 0; i < 200; i++ {
			c := silent
			if rng.IntN(3) > 0 {
				c = voiced
				voicedAt = append(voicedAt, pos)
			}
			if a, ok := seg.Push(c); ok {
				got = append(got, a)
			}
			pos += chunk
		}
		if a, ok := seg.Flush(); ok {
			got = append(got, a)
		}

		var prevEnd time.Duration
		for i, a := range got {
			if a.Duration() <= 0 {
				t.Fatalf("seed %d: segment %d is empty", seed, i)
			}
			if a.Seq != uint64(i) {
				t.Fatalf("seed %d: segment %d has seq %d", seed, i, a.Seq)
			}
			if a.Offset < prevEnd {
				t.Fatalf("seed %d: segment %d overlaps previous (offset %s < %s)", seed, i, a.Offset, prevEnd)
			}
			prevEnd = a.Offset + a.Duration()
		}

		for _, at := range voicedAt {
			covered := false
			for _, a := range got {
				if at >= a.Offset && at+chunk <= a.Offset+a.Duration() {
					covered = true
					break
				}
			}
			if !covered {
				t.Fatalf("seed %d: voiced chunk at %s not covered by any segment", seed, at)
			}
		}
	}
}

func TestDigitalSilenceNeverVoiced(t *testing.T) {
	s := testSettings()
	s.SilenceThreshold = 1e-9
	seg := New(s)

	var got []AudioSegment
	got = feed(seg, silentChunk(s), 10, got) // 1s leading silence
	got = feed(seg, voicedChunk(s), 30, got) // 3s voiced
	got = feed(seg, silentChunk(s), 20, got) // 2s silence
	got = feed(seg, voicedChunk(s), 10, got) // 1s voiced
	if a, ok := seg.Flush(); ok {
		got = append(got, a)
	}

	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if got[0].Offset != time.Second || got[0].Duration() != 3*time.Second {
		t.Errorf("segment 0 = %s at %s, want 3s at 1s", got[0].Duration(), got[0].Offset)
	}
	if got[1].Offset != 6*time.Second || got[1].Duration() != time.Second {
		t.Errorf("segment 1 = %s at %s, want 1s at 6s", got[1].Duration(), got[1].Offset)
	}
}
