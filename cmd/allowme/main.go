package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/younsl/allowme/internal/version"
	"github.com/younsl/allowme/pkg/authorizer"
	"github.com/younsl/allowme/pkg/aws"
	"github.com/younsl/allowme/pkg/config"
	"github.com/younsl/allowme/pkg/formatter"
	"github.com/younsl/allowme/pkg/ipecho"
)

const (
	ipSourceHTTP = "http"
	ipSourceIMDS = "imds"

	defaultTimeout = 30 * time.Second
)

type rootOptions struct {
	configPath        string
	region            string
	profile           string
	ip                string
	ipSource          string
	replaceOnAnyError bool
	timeout           time.Duration
	verbose           bool
	showVersion       bool
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "allowme",
		Short: "Allow your current public IP through a VPC network ACL and security group",
		Long: `allowme looks up your current public IPv4 address and allows it,
as a /32 CIDR, through the network ACL and the security group
recorded by 'allowme setup'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintln(stdout, version.Get())
				return nil
			}
			return runAuthorize(cmd.Context(), opts, stdout, stderr)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (default: $XDG_CONFIG_HOME/allowme/config.env)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Log every step")

	rootCmd.Flags().BoolVarP(&opts.showVersion, "version", "v", false, "Show version information")
	rootCmd.Flags().StringVarP(&opts.region, "region", "r", "", "AWS region (overrides AWS_REGION from the config file)")
	rootCmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "AWS shared config profile (overrides AWS_PROFILE from the config file)")
	rootCmd.Flags().StringVar(&opts.ip, "ip", "", "Use this IPv4 address instead of looking it up")
	rootCmd.Flags().StringVar(&opts.ipSource, "ip-source", ipSourceHTTP, "Where to look up the public address: http or imds")
	rootCmd.Flags().BoolVar(&opts.replaceOnAnyError, "replace-on-any-error", false, "Replace the network ACL entry whenever creating it fails, not only when the rule number is taken")
	rootCmd.Flags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "Timeout for the whole run")

	rootCmd.AddCommand(newSetupCmd(opts, stdout), newVersionCmd(stdout))

	return rootCmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, version.Get())
		},
	}
}

func runAuthorize(ctx context.Context, opts *rootOptions, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, opts.verbose)

	path, err := resolveConfigPath(opts.configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if opts.region != "" {
		cfg.Region = opts.region
	}
	if opts.profile != "" {
		cfg.Profile = opts.profile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	resolver, err := newResolver(ctx, opts, cfg)
	if err != nil {
		return err
	}

	client, err := aws.NewNetworkClient(ctx, cfg.Region, cfg.Profile)
	if err != nil {
		return err
	}

	policy := authorizer.FallbackAlreadyExists
	if opts.replaceOnAnyError {
		policy = authorizer.FallbackAnyError
	}

	auth := authorizer.New(cfg, client, resolver,
		authorizer.WithFallbackPolicy(policy),
		authorizer.WithLogger(logger),
	)

	s := startSpinner(stderr, cfg.SecurityGroupID)
	report, runErr := auth.Run(ctx)
	report.Region = client.Region()
	s.FinalMSG = fmt.Sprintf("✓ Ingress update finished in %.2f seconds\n", report.Duration.Seconds())
	if runErr != nil {
		s.FinalMSG = fmt.Sprintf("✗ Ingress update finished with errors in %.2f seconds\n", report.Duration.Seconds())
	}
	s.Stop()

	formatter.PrintReportTable(stdout, report)
	formatter.PrintReportErrors(stderr, report)

	return runErr
}

func newResolver(ctx context.Context, opts *rootOptions, cfg config.Config) (ipecho.Resolver, error) {
	if opts.ip != "" {
		addr, err := netip.ParseAddr(opts.ip)
		if err != nil {
			return nil, fmt.Errorf("invalid --ip %q: %w", opts.ip, err)
		}
		return ipecho.Static(addr), nil
	}

	switch opts.ipSource {
	case ipSourceHTTP:
		return ipecho.NewHTTPResolver(cfg.EchoEndpoint()), nil
	case ipSourceIMDS:
		return ipecho.NewIMDSResolver(ctx)
	default:
		return nil, fmt.Errorf("unknown --ip-source %q (want %s or %s)", opts.ipSource, ipSourceHTTP, ipSourceIMDS)
	}
}

// startSpinner creates and starts a spinner while the EC2 calls are in flight
func startSpinner(w io.Writer, groupID string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = fmt.Sprintf(" Updating network ACL and %s ...", groupID)
	s.Start()
	return s
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(level).With().Timestamp().Logger()
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// formatError adds the setup instruction to configuration errors
func formatError(err error) string {
	var verr *config.ValidationError
	switch {
	case errors.Is(err, config.ErrNotConfigured):
		return fmt.Sprintf("Error: %v\nRun 'allowme setup --acl-id <acl-id> --sg-id <sg-id>' first.", err)
	case errors.As(err, &verr):
		return fmt.Sprintf("Error: %v\nFix the config file or run 'allowme setup' again.", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
