package transcribe

import "testing"

func checkWER(t *testing.T, got, want WERResult) {
	t.Helper()
	if diff := got.WER - want.WER; diff > 0.001 || diff < -0.001 {
		t.Errorf("WER = %f, want %f", got.WER, want.WER)
	}
	if got.RefWords != want.RefWords {
		t.Errorf("RefWords = %d, want %d", got.RefWords, want.RefWords)
	}
	if got.Substitutions != want.Substitutions || got.Insertions != want.Insertions || got.Deletions != want.Deletions {
		t.Errorf("S/I/D = %d/%d/%d, want %d/%d/%d",
			got.Substitutions, got.Insertions, got.Deletions,
			want.Substitutions, want.Insertions, want.Deletions)
	}
}

func TestComputeWER(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		want       WERResult
	}{
		{
			name:       "identical",
			reference:  "turn the lights off",
			hypothesis: "turn the lights off",
			want:       WERResult{RefWords: 4},
		},
		{
			name:       "substitution",
			reference:  "turn the lights off",
			hypothesis: "turn the light off",
			want:       WERResult{WER: 0.25, Substitutions: 1, RefWords: 4},
		},
		{
			name:       "insertion",
			reference:  "turn the lights off",
			hypothesis: "turn all the lights off",
			want:       WERResult{WER: 0.25, Insertions: 1, RefWords: 4},
		},
		{
			name:       "deletion",
			reference:  "please turn the lights off",
			hypothesis: "turn the lights off",
			want:       WERResult{WER: 0.2, Deletions: 1, RefWords: 5},
		},
		{
			name:       "case and punctuation ignored",
			reference:  "Turn the LIGHTS off!",
			hypothesis: "  turn the lights, off ",
			want:       WERResult{RefWords: 4},
		},
		{
			name:       "empty reference",
			reference:  "",
			hypothesis: "hello",
			want:       WERResult{},
		},
		{
			name:       "empty hypothesis",
			reference:  "turn it off",
			hypothesis: "",
			want:       WERResult{WER: 1, Deletions: 3, RefWords: 3},
		},
		{
			name:       "mixed errors",
			reference:  "set a timer for ten minutes",
			hypothesis: "set timer for two minutes please",
			want:       WERResult{WER: 0.5, Substitutions: 1, Insertions: 1, Deletions: 1, RefWords: 6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkWER(t, ComputeWER(tt.reference, tt.hypothesis), tt.want)
		})
	}
}

func TestComputeSegmentWER(t *testing.T) {
	const reference = "Ask not what your country can do for you."

	tests := []struct {
		name     string
		segments []string
		want     WERResult
	}{
		{
			name:     "split at pauses",
			segments: []string{"Ask not what", "your country", "can do for you."},
			want:     WERResult{RefWords: 9},
		},
		{
			name:     "per segment punctuation",
			segments: []string{"Ask not.", "What your country can do, for you!"},
			want:     WERResult{RefWords: 9},
		},
		{
			name:     "blank segments",
			segments: []string{"", "ask not what your country", "   ", "can do for you"},
			want:     WERResult{RefWords: 9},
		},
		{
			name:     "skipped segment",
			segments: []string{"ask not what", "can do for you"},
			want:     WERResult{WER: 2.0 / 9.0, Deletions: 2, RefWords: 9},
		},
		{
			name:     "word repeated across a cut",
			segments: []string{"ask not what your", "your country can do for you"},
			want:     WERResult{WER: 1.0 / 9.0, Insertions: 1, RefWords: 9},
		},
		{
			name:     "misheard word",
			segments: []string{"ask not what", "you're country", "can do for you"},
			want:     WERResult{WER: 1.0 / 9.0, Substitutions: 1, RefWords: 9},
		},
		{
			name:     "no segments",
			segments: nil,
			want:     WERResult{WER: 1, Deletions: 9, RefWords: 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkWER(t, ComputeSegmentWER(reference, tt.segments), tt.want)
		})
	}
}

func TestComputeSegmentWERMatchesJoined(t *testing.T) {
	segments := []string{"set timer", "for two", "minutes please"}
	got := ComputeSegmentWER("set a timer for ten minutes", segments)
	joined := ComputeWER("set a timer for ten minutes", "set timer for two minutes please")
	if got != joined {
		t.Errorf("ComputeSegmentWER() = %+v, want %+v", got, joined)
	}
}
