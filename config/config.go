package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Data       DataConfig       `yaml:"data"`
	Generation GenerationConfig `yaml:"generation"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type DataConfig struct {
	Dir          string `yaml:"dir"`
	UploadDir    string `yaml:"upload_dir"`
	RegistrySeed string `yaml:"registry_seed"`
}

type GenerationConfig struct {
	// MaxWorkers bounds how many subsections generate in parallel per job.
	MaxWorkers int `yaml:"max_workers"`
	// SubsectionTimeout converts a slow generator call into a per-subsection
	// failure instead of stalling the whole job.
	SubsectionTimeout time.Duration `yaml:"subsection_timeout"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	// Local development convenience, same as a plain `export`.
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/workspace.db",
		},
		LLM: LLMConfig{
			APIURL:    "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 4096,
		},
		Data: DataConfig{
			Dir:          "./data",
			RegistrySeed: "./data/registry.yaml",
		},
		Generation: GenerationConfig{
			MaxWorkers:        2,
			SubsectionTimeout: 5 * time.Minute,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// 环境变量优先级高于配置文件
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}
	if seed := os.Getenv("REGISTRY_SEED"); seed != "" {
		config.Data.RegistrySeed = seed
	}

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}

	if workers := os.Getenv("GENERATION_MAX_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			config.Generation.MaxWorkers = n
		}
	}
	if timeout := os.Getenv("GENERATION_SUBSECTION_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			config.Generation.SubsectionTimeout = d
		}
	}

	if config.Data.UploadDir == "" {
		config.Data.UploadDir = filepath.Join(config.Data.Dir, "uploads")
	}

	return config
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
