package bot

// BotConfig represents the configuration for the Telegram transport
type BotConfig struct {
	// Long polling timeout in seconds
	UpdateTimeout int
	// Log every request made to the Bot API
	Debug bool
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		UpdateTimeout: 60,
	}
}
