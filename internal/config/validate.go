package config

import (
	"errors"
	"fmt"
)

// Validate chains per-section checks, grounded on
// internal/config/config_validate.go's Validate/validateX pattern.
func (c *Config) Validate() error {
	if err := c.validateDiscord(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateCatchup(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDiscord() error {
	if c.DiscordToken == "" {
		return errors.New("discord_token is required (set BIGBROTHER_DISCORD_TOKEN or the discord_token key in the config file)")
	}
	if c.DataPath == "" {
		return errors.New("data_path must not be empty")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.Timeout <= 0 {
		return errors.New("network.timeout must be positive")
	}
	if c.Network.DownloadConcurrencyLimit <= 0 {
		return errors.New("network.download_concurrency_limit must be positive")
	}
	return nil
}

func (c *Config) validateCatchup() error {
	if c.Catchup.MessagesPerRequest <= 0 || c.Catchup.MessagesPerRequest > 100 {
		return errors.New("catchup.messages_per_request must be between 1 and 100")
	}
	if c.Catchup.WriteBatchSize <= 0 {
		return errors.New("catchup.write_batch_size must be positive")
	}
	if c.Catchup.ChannelConcurrency <= 0 {
		return errors.New("catchup.channel_concurrency must be positive")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if c.Metadata.MemberFetchLimit <= 0 || c.Metadata.MemberFetchLimit > 1000 {
		return errors.New("metadata.member_fetch_limit must be between 1 and 1000")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.AutoflushIntervalMS <= 0 {
		return errors.New("storage.autoflush_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q is not one of json, console", c.Logging.Format)
	}
	return nil
}
