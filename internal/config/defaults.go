package config

import "time"

// Default returns a Config with sensible defaults: a 1024-connection
// classic server listening on the traditional port, diagnostics enabled
// on a separate loopback port with TLS off.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxConnections: 1024,
			QueueDepth:     4096,
			FramePoolSize:  2048,
		},
		Listen: ListenConfig{
			Address: "0.0.0.0:25565",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Diag: DiagConfig{
			Enabled: true,
			Address: "127.0.0.1:8081",
			Trace: TraceConfig{
				Enabled:      true,
				Path:         "/ws/trace",
				BufferSize:   256,
				PingInterval: Duration(30 * time.Second),
			},
			HTTP3: HTTP3Config{
				Enabled: false,
			},
			TLS: TLSConfig{
				Auto: false,
			},
		},
	}
}
