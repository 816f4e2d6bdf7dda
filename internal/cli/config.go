package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/htmllex/analyzer/internal/client"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultTimeout = 60 * time.Second

// Settings are the resolved client settings.
type Settings struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Verbose  bool          `mapstructure:"verbose"`
	NoColor  bool          `mapstructure:"no-color"`
	Msgpack  bool          `mapstructure:"msgpack"`
}

// loadSettings resolves settings from flags, environment and config file.
func loadSettings(cmd *cobra.Command, v *viper.Viper) (*Settings, error) {
	v.SetDefault("endpoint", client.DefaultEndpoint)
	v.SetDefault("timeout", defaultTimeout)

	v.SetEnvPrefix("HTMLLEX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".htmllex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if s.Endpoint == "" {
		return nil, fmt.Errorf("endpoint must not be empty")
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultTimeout
	}
	return &s, nil
}

// newLogger writes to the command's error stream.
func newLogger(cmd *cobra.Command, s *Settings) *logger.Logger {
	log := logger.New("htmllex", s.Verbose)
	log.SetOutput(cmd.ErrOrStderr())
	return log
}

func newController(s *Settings, log *logger.Logger) *client.Controller {
	return client.New(client.Options{
		Endpoint:   s.Endpoint,
		HTTPClient: &http.Client{Timeout: s.Timeout},
		Msgpack:    s.Msgpack,
		Log:        log,
	})
}
