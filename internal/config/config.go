// Package config defines the process's configuration surface (spec.md
// §6) and its layered loader: struct defaults → TOML file →
// BIGBROTHER_-prefixed environment variables, env winning. Grounded on
// internal/config/koanf.go's Defaults→File→Env layering, adapted from
// YAML to TOML because the wire format spec.md §6 names is TOML.
package config

import "time"

// NetworkConfig tunes REST/CDN behavior.
type NetworkConfig struct {
	Timeout                  time.Duration `koanf:"timeout"`
	DownloadConcurrencyLimit int64         `koanf:"download_concurrency_limit"`
}

// CatchupConfig tunes backfill pagination and concurrency.
type CatchupConfig struct {
	MessagesPerRequest int `koanf:"messages_per_request"`
	WriteBatchSize     int `koanf:"write_batch_size"`
	ChannelConcurrency int `koanf:"channel_concurrency"`
}

// MetadataConfig tunes metadata catchup pagination.
type MetadataConfig struct {
	MemberFetchLimit int `koanf:"member_fetch_limit"`
}

// StorageConfig tunes the Log Writer Pool.
type StorageConfig struct {
	AutoflushIntervalMS int `koanf:"autoflush_interval_ms"`
}

// LoggingConfig mirrors internal/logging.Config's fields, sourced from
// config instead of being hardcoded, following the teacher's
// Logging.Level/Format section.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// OpsConfig tunes the operational HTTP surface (component K), an
// ambient addition beyond spec.md §6's named keys, the same way the
// teacher's own Logging section rides alongside its Non-goal features.
type OpsConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// Config is the full configuration surface named in spec.md §6, plus
// the ambient logging/ops sections.
type Config struct {
	DiscordToken string `koanf:"discord_token"`
	DataPath     string `koanf:"data_path"`

	Network  NetworkConfig  `koanf:"network"`
	Catchup  CatchupConfig  `koanf:"catchup"`
	Metadata MetadataConfig `koanf:"metadata"`
	Storage  StorageConfig  `koanf:"storage"`
	Logging  LoggingConfig  `koanf:"logging"`
	Ops      OpsConfig      `koanf:"ops"`
}

// AutoflushInterval converts Storage.AutoflushIntervalMS to a
// time.Duration for internal/streamlog.Config.
func (c *Config) AutoflushInterval() time.Duration {
	return time.Duration(c.Storage.AutoflushIntervalMS) * time.Millisecond
}

// defaultConfig returns every field's default value per spec.md §6.
func defaultConfig() *Config {
	return &Config{
		DiscordToken: "",
		DataPath:     "data",
		Network: NetworkConfig{
			Timeout:                  120 * time.Second,
			DownloadConcurrencyLimit: 10,
		},
		Catchup: CatchupConfig{
			MessagesPerRequest: 100,
			WriteBatchSize:     1000,
			ChannelConcurrency: 4,
		},
		Metadata: MetadataConfig{
			MemberFetchLimit: 1000,
		},
		Storage: StorageConfig{
			AutoflushIntervalMS: 60000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Ops: OpsConfig{
			ListenAddr: ":9090",
		},
	}
}
