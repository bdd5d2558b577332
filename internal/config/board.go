package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Board holds runtime-tunable behaviour read from board.yml.
type Board struct {
	Timezone string `mapstructure:"timezone"`

	Agenda struct {
		CacheTTL time.Duration `mapstructure:"cacheTTL"`
	} `mapstructure:"agenda"`

	Notifications struct {
		SMS          bool          `mapstructure:"sms"`
		Email        bool          `mapstructure:"email"`
		ReminderLead time.Duration `mapstructure:"reminderLead"`
		MaxAttempts  int           `mapstructure:"maxAttempts"`
	} `mapstructure:"notifications"`
}

func DefaultBoard() Board {
	var b Board
	b.Timezone = "UTC"
	b.Agenda.CacheTTL = 2 * time.Minute
	b.Notifications.SMS = true
	b.Notifications.Email = false
	b.Notifications.ReminderLead = 24 * time.Hour
	b.Notifications.MaxAttempts = 5
	return b
}

// Location returns the configured agenda timezone, falling back to UTC.
func (b Board) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(b.Timezone))
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

// BoardSettings serves the current Board snapshot and swaps it on file change.
type BoardSettings struct {
	current atomic.Value
}

// NewStaticBoardSettings returns a holder that never reloads.
func NewStaticBoardSettings(b Board) *BoardSettings {
	h := &BoardSettings{}
	h.current.Store(b)
	return h
}

func NewBoardSettings(cfg Config, log *zap.Logger) (*BoardSettings, error) {
	v := viper.New()
	if path := strings.TrimSpace(cfg.BoardConfigPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("board")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/taskboard")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBoard()
	v.SetDefault("board.timezone", defaults.Timezone)
	v.SetDefault("board.agenda.cacheTTL", defaults.Agenda.CacheTTL)
	v.SetDefault("board.notifications.sms", defaults.Notifications.SMS)
	v.SetDefault("board.notifications.email", defaults.Notifications.Email)
	v.SetDefault("board.notifications.reminderLead", defaults.Notifications.ReminderLead)
	v.SetDefault("board.notifications.maxAttempts", defaults.Notifications.MaxAttempts)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && strings.TrimSpace(cfg.BoardConfigPath) == "" {
			return nil, err
		}
		found = false
	}

	board, err := decodeBoard(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticBoardSettings(board)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBoard(v)
		if err != nil {
			log.Warn("board config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("board config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *BoardSettings) Get() Board {
	if h == nil {
		return DefaultBoard()
	}
	b, ok := h.current.Load().(Board)
	if !ok {
		return DefaultBoard()
	}
	return b
}

func decodeBoard(v *viper.Viper) (Board, error) {
	var b Board
	if err := v.UnmarshalKey("board", &b); err != nil {
		return Board{}, err
	}
	if err := validateBoard(b); err != nil {
		return Board{}, err
	}
	return b, nil
}

func validateBoard(b Board) error {
	if _, err := time.LoadLocation(strings.TrimSpace(b.Timezone)); err != nil {
		return errors.New("board.timezone is not a valid IANA zone")
	}
	if b.Notifications.MaxAttempts <= 0 {
		return errors.New("board.notifications.maxAttempts must be positive")
	}
	if b.Agenda.CacheTTL < 0 {
		return errors.New("board.agenda.cacheTTL cannot be negative")
	}
	return nil
}
