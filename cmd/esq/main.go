package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

const (
	urlFlag       = "url"
	timeoutFlag   = "timeout"
	configFlag    = "config"
	logLevelFlag  = "log-level"
	logFormatFlag = "log-format"
	typeFieldFlag = "type-field"
	rateLimitFlag = "rate-limit"
	apiKeyIDFlag  = "api-key-id"
	apiKeyFlag    = "api-key"
	usernameFlag  = "username"
	passwordFlag  = "password"
	tokenFlag     = "token"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:                      "esq",
		Usage:                     "Build, inspect and run document search queries",
		Flags:                     globalFlags(),
		DisableSliceFlagSeparator: true,
		Writer:                    stdout,
		ErrWriter:                 stderr,
		Commands: []*cli.Command{
			newSearchCommand(),
			newCountCommand(),
			newInsertCommand(),
			newDeleteCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    urlFlag,
			Aliases: []string{"u"},
			Usage:   "cluster base URL",
			Sources: cli.EnvVars("ES_URL"),
		},
		&cli.DurationFlag{
			Name:    timeoutFlag,
			Aliases: []string{"t"},
			Usage:   "HTTP client timeout (e.g. 30s, 1m)",
			Value:   30 * time.Second,
		},
		&cli.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "YAML file with connection, auth and logging settings",
			Sources: cli.EnvVars("ESQ_CONFIG"),
		},
		&cli.StringFlag{Name: logLevelFlag, Usage: "debug, info, warn or error"},
		&cli.StringFlag{Name: logFormatFlag, Usage: "text or json"},
		&cli.StringFlag{Name: typeFieldFlag, Usage: "document field holding the document type"},
		&cli.Float64Flag{Name: rateLimitFlag, Usage: "maximum requests per second, 0 for unlimited"},
		&cli.StringFlag{Name: apiKeyIDFlag, Usage: "API key id; combined with --api-key"},
		&cli.StringFlag{
			Name:    apiKeyFlag,
			Usage:   "API key, or the encoded id:key credential when --api-key-id is empty",
			Sources: cli.EnvVars("ES_API_KEY"),
		},
		&cli.StringFlag{Name: usernameFlag, Usage: "basic auth user"},
		&cli.StringFlag{
			Name:    passwordFlag,
			Usage:   "basic auth password",
			Sources: cli.EnvVars("ES_PASSWORD"),
		},
		&cli.StringFlag{Name: tokenFlag, Usage: "bearer token"},
	}
}
