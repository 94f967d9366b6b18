package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Settings are the tunables of the delivery core. Defaults work out of the
// box; every key can be overridden through the environment with the
// NOTICEHUB_ prefix (e.g. NOTICEHUB_BATCH_PAGE_SIZE=100).
type Settings struct {
	ServerAddr              string   `mapstructure:"server_addr"`
	BatchPageSize           int64    `mapstructure:"batch_page_size"`
	UsersCollection         string   `mapstructure:"users_collection"`
	NotificationsCollection string   `mapstructure:"notifications_collection"`
	CORSOrigins             []string `mapstructure:"cors_origins"`
}

func NewSettings() (*Settings, error) {
	v := viper.New()
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("batch_page_size", 50)
	v.SetDefault("users_collection", "users")
	v.SetDefault("notifications_collection", "notifications")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})

	v.SetEnvPrefix("noticehub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	// Missing collection identifiers are configuration errors, fatal to the core.
	if s.UsersCollection == "" || s.NotificationsCollection == "" {
		return nil, errors.New("users and notifications collection names must be set")
	}
	if s.BatchPageSize <= 0 {
		return nil, errors.New("batch_page_size must be positive")
	}
	return &s, nil
}
