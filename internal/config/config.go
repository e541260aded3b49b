package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env-default:"local"`
	DB         `yaml:"db"`
	HTTPServer `yaml:"http_server"`
	Auth       `yaml:"auth"`
}

type DB struct {
	// Empty means the transient in-process store; set a postgres URL for the
	// persistent one.
	DbURL string `yaml:"db_url" env:"DB_URL" env-default:""`
}

type HTTPServer struct {
	Address      string        `yaml:"address" env-required:"true"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"10s"`
}

type Auth struct {
	Tenant       string        `yaml:"tenant" env:"TENANT" env-default:"users-management"`
	JWTSecret    string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	StoreTimeout time.Duration `yaml:"store_timeout" env-default:"5s"`
}

func MustLoadConfig(configPath string) *Config {
	if _, err := os.Stat(configPath); err != nil {
		panic("config file not found")
	}

	config, err := loadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	return config
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if err := cleanenv.ReadConfig(path, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
