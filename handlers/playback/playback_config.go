package playback

type PlaybackConfig struct {
	PlayOwnAudio bool `json:"play_own_audio"` // Also play translations synthesized for the local speaker.
}

// DefaultConfig returns a PlaybackConfig with sensible defaults
func DefaultConfig() PlaybackConfig {
	return PlaybackConfig{}
}
