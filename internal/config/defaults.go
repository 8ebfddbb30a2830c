package config

// Default returns the canonical runtime configuration used when no file is
// present.
func Default() Config {
	return Config{
		Production:      false,
		Language:        "en",
		PreferredMethod: "",
		Capture: CaptureConfig{
			Source:       "default",
			SampleRate:   16000,
			ChunkMS:      20,
			MaxDurationS: 600,
		},
		Streaming: StreamingConfig{
			URL:             "ws://127.0.0.1:8000/ws/transcription",
			ConnectTimeoutS: 5,
		},
		Hosted: HostedConfig{
			URL:      "https://api.openai.com/v1/audio/transcriptions",
			Model:    "whisper-1",
			TimeoutS: 30,
		},
		OnDevice: OnDeviceConfig{},
		Connectivity: ConnectivityConfig{
			ProbeAddr: "1.1.1.1:443",
			IntervalS: 5,
		},
		Queue: QueueConfig{
			Dir: "", // resolved under the state dir when empty
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9091",
		},
		Transcript: TranscriptConfig{
			TrailingSpace:       false,
			CapitalizeSentences: true,
		},
	}
}
