package transcribe

// WhisperOptions tunes the whisper backend.
type WhisperOptions struct {
	// Language is a whisper language code or "auto". Ignored by English-only
	// variants.
	Language string
	// Threads caps inference threads; 0 lets whisper.cpp decide.
	Threads uint
}
