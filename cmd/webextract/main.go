package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigman78/webextract/internal/extract"
)

// usageError marks malformed flags or arguments. It exits with code 2;
// every other failure exits with 1.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "error: %v\n\n%s", err, cmd.UsageString())
			return 2
		}
		fmt.Fprintf(stderr, "%s %v\n", colorError("error:"), err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "webextract [url] [output]",
		Short: "Download a page and its assets, rewriting every reference to the local copy",
		Long: `Downloads the HTML of a page together with its stylesheets, scripts, images,
icons, fonts and optionally videos. Assets are sorted into one folder per kind
and every reference in the page and its stylesheets is rewritten to point at
the local copy. The page is saved as a FreeMarker layout unless --mode html
(or --html) is set.

Every flag can also be set through a WEBEXTRACT_<FLAG> environment variable
(dashes become underscores) or a --config file.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(2)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config %s: %w", path, err)
				}
			}

			log := newLogger(v.GetString("loglevel"), stderr)
			cfg, err := buildConfig(v, args, log)
			if err != nil {
				return err
			}
			if !log.IsLevelEnabled(logrus.InfoLevel) {
				cfg.Progress = extract.NewAssetProgress(stderr)
			}
			return extractPage(cmd.Context(), cfg, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("webextract {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	f := cmd.Flags()
	f.String("url", "", "page URL to extract (same as the first argument)")
	f.String("directory", "", "output directory (same as the second argument, default websites/<host>)")
	f.String("file", "", "use a saved HTML file instead of downloading the page")
	f.BoolP("videos", "v", false, "also download videos")
	f.String("mode", extract.OutputTemplate.String(), "page output: template (FreeMarker layout) or html")
	f.BoolP("html", "w", false, "save the page as index.html, same as --mode html")
	f.Int("threads", 1, "concurrent asset downloads per step")
	f.Duration("timeout", extract.DefaultTimeout, "per-request timeout")
	f.String("user-agent", extract.DefaultUserAgent, "User-Agent header sent with every request")
	f.Float64("rate", 0, "maximum requests per second, 0 for no limit")
	f.Int("retries", 0, "retries on 429 and 5xx responses")
	f.String("loglevel", "warn", "log level: debug, info, warn or error")
	f.String("config", "", "read settings from a yaml, json or toml file")

	_ = v.BindPFlags(f)
	v.SetEnvPrefix("WEBEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

// buildConfig merges positional arguments with the bound settings.
// Explicit --url and --directory win over positional arguments.
func buildConfig(v *viper.Viper, args []string, log *logrus.Logger) (*extract.Config, error) {
	rawURL := v.GetString("url")
	if rawURL == "" && len(args) > 0 {
		rawURL = args[0]
	}
	if rawURL == "" {
		return nil, errors.New("URL is required")
	}

	threads := v.GetInt("threads")
	if threads <= 0 {
		return nil, errors.New("--threads must be greater than 0")
	}
	if v.GetDuration("timeout") <= 0 {
		return nil, errors.New("--timeout must be positive")
	}
	if v.GetInt("retries") < 0 {
		return nil, errors.New("--retries must not be negative")
	}

	src, err := extract.NormalizeSourceURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	dir := v.GetString("directory")
	if dir == "" && len(args) > 1 {
		dir = args[1]
	}
	if dir == "" {
		dir = filepath.Join("websites", src.BareHost)
	}

	mode, err := extract.ParseOutputMode(v.GetString("mode"))
	if err != nil {
		return nil, fmt.Errorf("--mode: %w", err)
	}
	if v.GetBool("html") {
		mode = extract.OutputHTML
	}

	return &extract.Config{
		SourceURL:      src.CanonicalURL,
		SuppliedHTML:   v.GetString("file"),
		Directory:      dir,
		DownloadVideos: v.GetBool("videos"),
		OutputMode:     mode,
		Workers:        threads,
		Timeout:        v.GetDuration("timeout"),
		UserAgent:      v.GetString("user-agent"),
		RatePerSec:     v.GetFloat64("rate"),
		Retries:        v.GetInt("retries"),
		Logger:         log,
	}, nil
}

// newLogger writes text logs to w. An unknown level falls back to warn.
func newLogger(level string, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.WarnLevel)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		log.Warnf("log level %q not recognized", level)
		return log
	}
	log.SetLevel(lvl)
	return log
}

func extractPage(ctx context.Context, cfg *extract.Config, stdout io.Writer) error {
	printStart(stdout, cfg)
	res, err := extract.Run(ctx, cfg)
	if err != nil {
		return err
	}
	printSummary(stdout, cfg, res)
	return nil
}
