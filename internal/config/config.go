package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/session"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		Mode          string `yaml:"mode"`
		Selection     string `yaml:"selection"`
		Daily         bool   `yaml:"daily"`
		CacheTTL      string `yaml:"cache_ttl"`
		IdleTTL       string `yaml:"idle_ttl"`
		QuestionsFile string `yaml:"questions_file"`
	} `yaml:"quiz"`
	Leaderboard struct {
		Size      int    `yaml:"size"`
		Direction string `yaml:"direction"`
	} `yaml:"leaderboard"`
	Identity struct {
		CookieMaxAge     string `yaml:"cookie_max_age"`
		CompletionMaxAge string `yaml:"completion_max_age"`
	} `yaml:"identity"`
}

// Load reads YAML config from path, fills defaults and rejects unknown policies.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(data)
}

// Parse decodes raw YAML the same way Load does.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Quiz.Mode == "" {
		c.Quiz.Mode = string(session.StreakWithRetry)
	}
	if c.Quiz.Selection == "" {
		c.Quiz.Selection = string(session.RandomWithoutReplacement)
	}
	if c.Leaderboard.Size <= 0 {
		c.Leaderboard.Size = 10
	}
	if c.Leaderboard.Direction == "" {
		c.Leaderboard.Direction = string(domain.Ascending)
	}
}

func (c Config) validate() error {
	if _, err := session.ParseMode(c.Quiz.Mode); err != nil {
		return fmt.Errorf("quiz.mode: %w", err)
	}
	if _, err := session.ParseSelection(c.Quiz.Selection); err != nil {
		return fmt.Errorf("quiz.selection: %w", err)
	}
	if _, err := domain.ParseDirection(c.Leaderboard.Direction); err != nil {
		return fmt.Errorf("leaderboard.direction: %w", err)
	}
	return nil
}

// Session returns the state machine policies; Load has already validated them.
func (c Config) Session() session.Config {
	mode, _ := session.ParseMode(c.Quiz.Mode)
	sel, _ := session.ParseSelection(c.Quiz.Selection)
	return session.Config{Mode: mode, Selection: sel}
}

func (c Config) Direction() domain.Direction {
	dir, _ := domain.ParseDirection(c.Leaderboard.Direction)
	return dir
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// QuestionBank is the on-disk shape of the YAML question file.
type QuestionBank struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadQuestionBank reads and validates a YAML question bank.
func LoadQuestionBank(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bank QuestionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	seen := make(map[string]struct{}, len(bank.Questions))
	for _, q := range bank.Questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrMalformedQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.Day != "" {
			if _, err := domain.ParseScope(q.Day); err != nil {
				return nil, fmt.Errorf("%w: question %q day: %v", domain.ErrMalformedQuestion, q.ID, err)
			}
		}
	}
	return bank.Questions, nil
}
