package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Archive ArchiveConfig `yaml:"archive"`
	Queue   QueueConfig   `yaml:"queue"`
	Log     LogConfig     `yaml:"log"`
	Experts []Expert      `yaml:"experts"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type QueueConfig struct {
	// EscalateSchedule is a 5-field cron expression for the escalation job.
	EscalateSchedule string `yaml:"escalate_schedule"`
	// EscalateAfterHours bumps a pending ticket one priority tier once it
	// has waited this long.
	EscalateAfterHours int `yaml:"escalate_after_hours"`
	// RetentionDays removes completed/cancelled tickets older than this.
	RetentionDays int `yaml:"retention_days"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Expert is a config-declared reviewer account. Role and specializations
// seed the expert registry at startup; the password is only checked at login.
type Expert struct {
	UID             string   `yaml:"uid"`
	Email           string   `yaml:"email"`
	Password        string   `yaml:"password"`
	Role            string   `yaml:"role"`
	Specializations []string `yaml:"specializations"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "reviews.db"
	}
	if cfg.Queue.EscalateSchedule == "" {
		cfg.Queue.EscalateSchedule = "*/30 * * * *"
	}
	if cfg.Queue.EscalateAfterHours == 0 {
		cfg.Queue.EscalateAfterHours = 12
	}
	if cfg.Queue.RetentionDays == 0 {
		cfg.Queue.RetentionDays = 30
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// FindExpert finds a configured expert account by email
func (c *Config) FindExpert(email string) *Expert {
	for i := range c.Experts {
		if c.Experts[i].Email == email {
			return &c.Experts[i]
		}
	}
	return nil
}
