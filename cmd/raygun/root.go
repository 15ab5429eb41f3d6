// root.go defines the root command and the flags shared by every command.

package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/strongdm/raygun4go/pkg/raygun"
	"github.com/strongdm/raygun4go/pkg/raygun/client"
	httptransport "github.com/strongdm/raygun4go/pkg/raygun/transport/http"
	"github.com/strongdm/raygun4go/pkg/raygun/transport/multi"
	"github.com/strongdm/raygun4go/pkg/raygun/transport/noop"
	"github.com/strongdm/raygun4go/pkg/raygun/transport/stderr"
)

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath  string
	apiKey      string
	endpoint    string
	rumEndpoint string
	queueDir    string
	version     string
	transport   string
	echo        bool
	scrub       bool
	fingerprint bool
	verbose     bool

	flags *pflag.FlagSet
	out   io.Writer
	err   io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "raygun",
		Short:         "Send crash reports and RUM events to Raygun",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.out = cmd.OutOrStdout()
			opts.err = cmd.ErrOrStderr()
		},
	}
	opts.flags = root.PersistentFlags()
	addRootFlags(opts.flags, opts)

	root.AddCommand(
		newSendCmd(opts),
		newFlushCmd(opts),
		newQueueCmd(opts),
		newRUMCmd(opts),
	)
	return root
}

func addRootFlags(fs *pflag.FlagSet, opts *rootOptions) {
	fs.StringVarP(&opts.configPath, "config", "c", "", "YAML settings file")
	fs.StringVar(&opts.apiKey, "api-key", "", "application API key (overrides api_key)")
	fs.StringVar(&opts.endpoint, "endpoint", "", "crash reporting endpoint (overrides crash_reporting_endpoint)")
	fs.StringVar(&opts.rumEndpoint, "rum-endpoint", "", "RUM endpoint (overrides rum_endpoint)")
	fs.StringVar(&opts.queueDir, "queue-dir", "", "offline queue directory (overrides offline_storage.dir)")
	fs.StringVar(&opts.version, "app-version", "", "application version (overrides application_version)")
	fs.StringVar(&opts.transport, "transport", "http", `payload transport: "http", "stderr" or "noop"`)
	fs.BoolVar(&opts.echo, "echo", false, "also print every payload to stderr")
	fs.BoolVar(&opts.scrub, "scrub", false, "redact secrets and personal data from crash reports")
	fs.BoolVar(&opts.fingerprint, "fingerprint", false, "group crash reports by error class and leading frames")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	fs.SortFlags = false
}

// settings loads the config file, if any, and applies flag overrides.
func (o *rootOptions) settings() (raygun.Settings, error) {
	s := raygun.DefaultSettings()
	if o.configPath != "" {
		loaded, err := raygun.LoadSettings(o.configPath)
		if err != nil {
			return raygun.Settings{}, err
		}
		s = loaded
	}
	overrides := map[string]*string{
		"api-key":      &s.APIKey,
		"endpoint":     &s.CrashReportingEndpoint,
		"rum-endpoint": &s.RUMEndpoint,
		"queue-dir":    &s.OfflineStorage.Dir,
		"app-version":  &s.ApplicationVersion,
	}
	for name, field := range overrides {
		if o.flags != nil && o.flags.Changed(name) {
			v, _ := o.flags.GetString(name)
			*field = v
		}
	}
	if err := s.Validate(); err != nil {
		return raygun.Settings{}, err
	}
	return s, nil
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	if !o.verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// sender builds the transport selected by --transport and --echo.
func (o *rootOptions) sender(s raygun.Settings, logger *zap.Logger) (raygun.Sender, error) {
	var primary raygun.Sender
	switch o.transport {
	case "http":
		primary = httptransport.New(s.APIKey, httptransport.WithLogger(logger))
	case "stderr":
		primary = stderr.New(stderr.WithVerbose(), stderr.WithWriter(o.err))
	case "noop":
		primary = noop.New()
	default:
		return nil, errors.Errorf("unknown transport %q", o.transport)
	}
	if o.echo && o.transport != "stderr" {
		return multi.New(primary, stderr.New(stderr.WithWriter(o.err))), nil
	}
	return primary, nil
}

// newClient builds a client from the shared flags. Transports other than
// http skip the connectivity probe.
func (o *rootOptions) newClient(extra ...client.Option) (*client.Client, error) {
	s, err := o.settings()
	if err != nil {
		return nil, err
	}
	logger, err := o.logger()
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}
	sender, err := o.sender(s, logger)
	if err != nil {
		return nil, err
	}
	opts := []client.Option{client.WithLogger(logger), client.WithSender(sender)}
	if o.transport != "http" {
		opts = append(opts, client.WithConnectivity(raygun.AlwaysConnected))
	}
	if o.scrub {
		opts = append(opts, client.WithScrubber(raygun.NewScrubber(raygun.DefaultScrubberConfig())))
	}
	if o.fingerprint {
		opts = append(opts, client.WithFingerprintGrouping())
	}
	return client.New(s, append(opts, extra...)...)
}
