package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	MinGuests          int           `mapstructure:"min_guests"`
	MaxGuests          int           `mapstructure:"max_guests"`
	SuggestionCooldown time.Duration `mapstructure:"suggestion_cooldown"`
	DebounceWindow     time.Duration `mapstructure:"debounce_window"`
	EmptyRoomGrace     time.Duration `mapstructure:"empty_room_grace"`
	RecentChatLimit    int           `mapstructure:"recent_chat_limit"`

	HistoryBackend string `mapstructure:"history_backend"` // memory | redis
	HistoryMaxLen  int    `mapstructure:"history_max_len"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`

	YouTubeAPIKey  string `mapstructure:"youtube_api_key"`
	YouTubeBaseURL string `mapstructure:"youtube_base_url"`

	AuthSecret string `mapstructure:"auth_secret"`
}

// Load reads config/config.<env>.yaml with sane defaults; a missing file
// is fine, env vars and defaults still apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	v.SetConfigFile(fmt.Sprintf("config/config.%s.yaml", env))
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("min_guests", 2)
	v.SetDefault("max_guests", 50)
	v.SetDefault("suggestion_cooldown", "60s")
	v.SetDefault("debounce_window", "500ms")
	v.SetDefault("empty_room_grace", "60s")
	v.SetDefault("recent_chat_limit", 50)
	v.SetDefault("history_backend", "memory")
	v.SetDefault("history_max_len", 500)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("youtube_base_url", "")
	v.SetDefault("auth_secret", "")

	v.SetEnvPrefix("VDJ")
	v.AutomaticEnv()

	// a missing config file is not an error, defaults and env still apply
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
