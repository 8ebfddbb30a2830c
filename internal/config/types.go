// Package config resolves, parses, validates, and defaults voicepipe
// configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Production      bool   `yaml:"production"`
	Language        string `yaml:"language"`
	PreferredMethod string `yaml:"preferred_method"`

	Capture      CaptureConfig      `yaml:"capture"`
	Streaming    StreamingConfig    `yaml:"streaming"`
	Hosted       HostedConfig       `yaml:"hosted"`
	OnDevice     OnDeviceConfig     `yaml:"ondevice"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Queue        QueueConfig        `yaml:"queue"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Transcript   TranscriptConfig   `yaml:"transcript"`
}

// CaptureConfig controls the microphone stream and session limits.
type CaptureConfig struct {
	Source       string `yaml:"source"`
	SampleRate   int    `yaml:"sample_rate"`
	ChunkMS      int    `yaml:"chunk_ms"`
	MaxDurationS int    `yaml:"max_duration_s"`
}

// StreamingConfig controls the duplex transcription socket.
type StreamingConfig struct {
	URL             string `yaml:"url"`
	ConnectTimeoutS int    `yaml:"connect_timeout_s"`
}

// HostedConfig controls the hosted transcription API request.
type HostedConfig struct {
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Prompt   string `yaml:"prompt"`
	TimeoutS int    `yaml:"timeout_s"`
}

// OnDeviceConfig names the local recognizer command, if any.
type OnDeviceConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// ConnectivityConfig controls the online/offline probe.
type ConnectivityConfig struct {
	ProbeAddr string `yaml:"probe_addr"`
	IntervalS int    `yaml:"interval_s"`
}

// QueueConfig locates the offline replay store.
type QueueConfig struct {
	Dir string `yaml:"dir"`
}

// MetricsConfig controls the Prometheus exposition listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TranscriptConfig controls transcript assembly formatting.
type TranscriptConfig struct {
	TrailingSpace       bool `yaml:"trailing_space"`
	CapitalizeSentences bool `yaml:"capitalize_sentences"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Message string
}
