package config

import "path/filepath"

func Defaults() *Config {
	dataDir := filepath.Join(DefaultConfigDir(), "data")
	return &Config{
		General: GeneralConfig{
			DataDir:         dataDir,
			LogLevel:        "info",
			DefaultProvider: "openai",
			Concurrency:     3,
			ListenAddr:      ":8080",
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      true,
				APIKey:       "${OPENAI_API_KEY}",
				DefaultModel: "gpt-4o-mini",
			},
			"ollama": {
				Enabled:      false,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.2",
			},
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Enabled:     false,
				WebhookPath: "/webhook/whatsapp",
			},
			CLI:          CLIConfig{Enabled: true},
			SegmentLimit: 1500,
		},
		Knowledge: KnowledgeConfig{
			TopK:      3,
			ChunkSize: 512,
			Overlap:   50,
		},
		Tickets: TicketsConfig{
			ImagesDir: filepath.Join(dataDir, "tickets", "images"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   10,
			WindowMinutes: 10,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}
