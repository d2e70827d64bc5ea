package transport

type TransportConfig struct {
	SampleRate int    `json:"sample_rate"` // Rate microphone audio is converted to before analysis.
	Channels   int    `json:"channels"`
	LocalName  string `json:"local_name"`  // Display name sent with translation audio.
	SendBuffer int    `json:"send_buffer"` // Outgoing messages held while the channel is busy.
}

// DefaultConfig returns a TransportConfig with sensible defaults
func DefaultConfig() TransportConfig {
	return TransportConfig{
		SampleRate: 16000,
		Channels:   1,
		SendBuffer: 64,
	}
}
