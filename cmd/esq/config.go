package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-es-query/auth"
	esclient "github.com/robert-malhotra/go-es-query/client"
	"github.com/robert-malhotra/go-es-query/pkg/compiler"
	"github.com/robert-malhotra/go-es-query/pkg/logger"
	"github.com/robert-malhotra/go-es-query/search"
)

// fileConfig is the layout of the --config file. Flags given on the command
// line take precedence over it.
type fileConfig struct {
	URL       string           `yaml:"url"`
	Timeout   time.Duration    `yaml:"timeout"`
	TypeField string           `yaml:"type_field"`
	RateLimit float64          `yaml:"rate_limit"`
	Auth      auth.Credentials `yaml:"auth"`
	Log       logger.Config    `yaml:"log"`
}

func loadConfig(cmd *cli.Command) (fileConfig, error) {
	var cfg fileConfig
	if path := cmd.String(configFlag); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overrideString(cmd, urlFlag, &cfg.URL)
	overrideString(cmd, typeFieldFlag, &cfg.TypeField)
	overrideString(cmd, logLevelFlag, &cfg.Log.Level)
	overrideString(cmd, logFormatFlag, &cfg.Log.Format)
	overrideString(cmd, apiKeyIDFlag, &cfg.Auth.APIKeyID)
	overrideString(cmd, apiKeyFlag, &cfg.Auth.APIKey)
	overrideString(cmd, usernameFlag, &cfg.Auth.Username)
	overrideString(cmd, passwordFlag, &cfg.Auth.Password)
	overrideString(cmd, tokenFlag, &cfg.Auth.Token)
	if cmd.IsSet(timeoutFlag) || cfg.Timeout == 0 {
		cfg.Timeout = cmd.Duration(timeoutFlag)
	}
	if cmd.IsSet(rateLimitFlag) {
		cfg.RateLimit = cmd.Float64(rateLimitFlag)
	}
	return cfg, nil
}

func overrideString(cmd *cli.Command, name string, dst *string) {
	if v := cmd.String(name); v != "" && (cmd.IsSet(name) || *dst == "") {
		*dst = v
	}
}

// session is everything a command needs to talk to the cluster.
type session struct {
	compiler *compiler.Compiler
	executor *search.Executor
}

// newSession connects to the cluster. With offline set only the compiler is
// built and no URL is needed.
func newSession(cmd *cli.Command, offline bool) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log, cmd.Root().ErrWriter)
	if err != nil {
		return nil, err
	}

	opts := []compiler.Option{compiler.WithLogger(log)}
	if cfg.TypeField != "" {
		opts = append(opts, compiler.WithTypeField(cfg.TypeField))
	}
	s := &session{compiler: compiler.New(opts...)}
	if offline {
		return s, nil
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("flag --url is required")
	}
	transport, err := cfg.Auth.Transport(http.DefaultTransport)
	if err != nil {
		return nil, err
	}

	conn, err := esclient.New(
		esclient.WithBaseURL(cfg.URL),
		esclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout, Transport: transport}),
		esclient.WithLogger(esclient.SlogLogger(log)),
		esclient.WithRateLimiter(rate.Limit(cfg.RateLimit), 1),
	)
	if err != nil {
		return nil, err
	}
	s.executor = search.New(conn, search.WithCompiler(s.compiler), search.WithLogger(log))
	return s, nil
}
