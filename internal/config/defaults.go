package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:              "~/.config/dwell",
			SQLiteFile:        "activity.db",
			SQLiteJournalMode: "wal",
		},
		Capture: CaptureConfig{
			FlushIntervalSeconds:   30,
			MinIntervalSeconds:     1,
			MaxOpenIntervalSeconds: 300,
		},
		Sampler: SamplerConfig{
			PollIntervalSeconds: 1,
			BrowserBundleIDs:    DefaultBrowserBundleIDs(),
		},
		Transport: TransportConfig{
			DialRetrySeconds:     5,
			ReconnectWaitSeconds: 10,
		},
		Retention: RetentionConfig{
			Days: 90,
		},
		Export: ExportConfig{
			Dir: "~/Documents/dwell-export",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "dwell.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Exclusions: ExclusionsConfig{
			InternalSchemes: InternalSchemes(),
			DenylistDomains: DefaultDenylistDomains(),
			DenylistRegex:   DefaultDenylistRegex(),
		},
	}
}

// DefaultBrowserBundleIDs returns the bundle identifiers treated as browsers
// by the window sampler.
func DefaultBrowserBundleIDs() []string {
	return []string{
		"com.google.Chrome",
		"com.google.Chrome.canary",
		"org.mozilla.firefox",
		"com.apple.Safari",
		"com.microsoft.edgemac",
		"com.brave.Browser",
		"com.operasoftware.Opera",
	}
}
