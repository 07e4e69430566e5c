package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mirthctl/mirthctl/config"
	"github.com/mirthctl/mirthctl/filter"
	"github.com/mirthctl/mirthctl/mirth"
)

var (
	cfgFile    string
	cfg        *config.Config
	logger     zerolog.Logger
	client     *mirth.Client
	operations *mirth.Operations
	compiler   filter.CachingCompiler

	version   = "dev"
	buildTime = "unknown"

	// Command flags shared by the list commands
	filterExpr string
	preset     string
	dryRun     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mirthctl",
	Short: "A tool to inspect and manage a Mirth Connect server",
	Long: `mirthctl is a CLI for the Mirth Connect REST API. It lists channels
with their deployed state and message counters, searches messages and
server events with filter expressions, and sends or reprocesses channel
messages.`,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: teardownApp,
}

// SetVersion records the build information injected from main.
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", v, bt)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "d", false, "perform a dry run without making changes")

	rootCmd.AddCommand(testCmd)
}

// initializeApp initializes the configuration, logger and the Mirth session
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	// Override dry-run from command line if specified
	if cmd.Flags().Changed("dry-run") {
		cfg.Safety.DryRun = dryRun
	}

	// Create Mirth client
	opts := []mirth.Option{
		mirth.WithUserAgent("mirthctl/" + version),
	}
	if cfg.Mirth.Timeout > 0 {
		opts = append(opts, mirth.WithTimeout(time.Duration(cfg.Mirth.Timeout)*time.Second))
	}
	if !cfg.Mirth.VerifySSL {
		opts = append(opts, mirth.WithInsecureSkipVerify())
	}

	client, err = mirth.NewClient(cfg.Mirth.URL, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Mirth client: %w", err)
	}

	// Establish the session
	status, err := client.Login(cmd.Context(), cfg.Mirth.Username, cfg.Mirth.Password)
	if err != nil {
		if status != nil {
			return fmt.Errorf("login rejected by %s: %s", cfg.Mirth.URL, status.Status)
		}
		return fmt.Errorf("failed to log in to %s: %w", cfg.Mirth.URL, err)
	}

	operations = mirth.NewOperations(client, logger)
	compiler = filter.NewExprCompiler(filter.WithCache(32))

	return nil
}

// teardownApp closes the Mirth session. Logout failures only mean the
// session expires on its own, so they are logged and swallowed.
func teardownApp(cmd *cobra.Command, args []string) error {
	if client == nil {
		return nil
	}
	if err := client.Logout(cmd.Context()); err != nil {
		logger.Debug().Err(err).Msg("Logout failed")
	}
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format, color only when stderr is a terminal
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connection to Mirth Connect",
	Long:  `Test the connection and login to your Mirth Connect server and display basic information.`,
	RunE:  runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	fmt.Printf("Testing connection to Mirth Connect at %s...\n", client.URL())

	// The session was established during initialization
	fmt.Println("✓ Login successful!")

	ctx := cmd.Context()
	if serverVersion, err := client.ServerVersion(ctx); err == nil {
		fmt.Printf("- Server version: %s\n", serverVersion)
	}

	channels, err := client.GetChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channels: %w", err)
	}

	statuses, err := client.GetChannelStatuses(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channel statuses: %w", err)
	}

	fmt.Printf("\nServer Statistics:\n")
	fmt.Printf("- Total channels: %d\n", len(channels))
	fmt.Printf("- Deployed channels: %d\n", len(statuses))

	return nil
}

// getFilterExpression determines the filter expression to use. An empty
// result means no filtering.
func getFilterExpression() (string, error) {
	// Priority: command line filter > preset > default
	if filterExpr != "" {
		return filterExpr, nil
	}

	if preset != "" {
		if expression, ok := cfg.Filter.Presets[preset]; ok {
			return expression, nil
		}
		return "", fmt.Errorf("preset '%s' not found in config", preset)
	}

	return cfg.Filter.DefaultExpression, nil
}

// confirm prompts the user with a yes/no question, defaulting to no.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)

	var response string
	fmt.Scanln(&response)

	return strings.ToLower(strings.TrimSpace(response)) == "y"
}
