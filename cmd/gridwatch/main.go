package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HamStudy/gridwatch/internal/config"
	"github.com/HamStudy/gridwatch/internal/core"
	"github.com/HamStudy/gridwatch/internal/k8s"
	"github.com/HamStudy/gridwatch/internal/lookup"
	"github.com/HamStudy/gridwatch/internal/profile"
	"github.com/HamStudy/gridwatch/internal/store"
	"github.com/HamStudy/gridwatch/internal/ui"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// CLIFlags holds all command-line flags
type CLIFlags struct {
	// Kubernetes connection flags
	kubeconfig         string
	context            string
	namespace          string
	user               string
	token              string
	asUser             string
	insecureSkipVerify bool
	timeout            string

	// Local files
	configDir string
	stateDir  string
	logFile   string

	// UI flags
	theme string
	group string // Initial lookup group

	// Other flags
	version bool
	help    bool
}

func newFlagSet(flags *CLIFlags, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("gridwatch", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&flags.kubeconfig, "kubeconfig", "", "Path to the kubeconfig file (can also use KUBECONFIG env var)")
	fs.StringVar(&flags.context, "context", "", "The name of the kubeconfig context to use")
	fs.StringVar(&flags.namespace, "namespace", "", "Namespace holding the lookup configmaps")
	fs.StringVar(&flags.namespace, "n", "", "Shorthand for --namespace")
	fs.StringVar(&flags.user, "user", "", "The name of the kubeconfig user to use")
	fs.StringVar(&flags.token, "token", "", "Bearer token for authentication to the API server")
	fs.StringVar(&flags.asUser, "as", "", "Username to impersonate for the operation")
	fs.BoolVar(&flags.insecureSkipVerify, "insecure-skip-tls-verify", false, "If true, the server's certificate will not be checked for validity")
	fs.StringVar(&flags.timeout, "request-timeout", "0s", "The length of time to wait before giving up on a single server request")

	fs.StringVar(&flags.configDir, "config-dir", "", "Directory holding config.yaml")
	fs.StringVar(&flags.stateDir, "state-dir", "", "Directory holding the saved view state and log")
	fs.StringVar(&flags.logFile, "log-file", "", "Write logs to this file instead of the state directory")

	fs.StringVar(&flags.theme, "theme", "default", "Color theme (default, light, high-contrast)")

	fs.BoolVar(&flags.version, "version", false, "Print version information and quit")
	fs.BoolVar(&flags.version, "v", false, "Shorthand for --version")
	fs.BoolVar(&flags.help, "help", false, "Show help message")
	fs.BoolVar(&flags.help, "h", false, "Shorthand for --help")

	fs.Usage = func() {
		fmt.Fprintf(output, "Gridwatch - browse lookup tables stored in Kubernetes configmaps\n\n")
		fmt.Fprintf(output, "Usage:\n")
		fmt.Fprintf(output, "  gridwatch [flags] [group]\n\n")
		fmt.Fprintf(output, "Examples:\n")
		fmt.Fprintf(output, "  # Open the first lookup group\n")
		fmt.Fprintf(output, "  gridwatch\n\n")
		fmt.Fprintf(output, "  # Open the country codes in the reference namespace\n")
		fmt.Fprintf(output, "  gridwatch -n reference countries\n\n")
		fmt.Fprintf(output, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(output, "\nKeyboard Shortcuts:\n")
		fmt.Fprintf(output, "  j/k        - Navigate up/down\n")
		fmt.Fprintf(output, "  pgup/pgdn  - Page up/down\n")
		fmt.Fprintf(output, "  g/G        - Go to top/bottom\n")
		fmt.Fprintf(output, "  Tab        - Switch lookup group\n")
		fmt.Fprintf(output, "  /          - Search codes and labels\n")
		fmt.Fprintf(output, "  r          - Refresh from the cluster\n")
		fmt.Fprintf(output, "  ?          - Show help\n")
		fmt.Fprintf(output, "  q/Ctrl+C   - Quit\n")
	}
	return fs
}

func parseFlags(args []string, output io.Writer) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := newFlagSet(flags, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// First positional argument is the initial group
	if rest := fs.Args(); len(rest) > 0 {
		flags.group = rest[0]
	}
	return flags, nil
}

func main() {
	flags, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	if flags.version {
		fmt.Printf("gridwatch version %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		os.Exit(0)
	}
	if flags.help {
		newFlagSet(&CLIFlags{}, os.Stderr).Usage()
		os.Exit(0)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	cfg, err := loadConfigWithFlags(flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The terminal belongs to the UI; logs go to a file
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}
	logFile, err := tea.LogToFile(cfg.LogFile, "gridwatch")
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	loader := config.NewLoader(cfg.ConfigDir)
	if err := loader.Load(); err != nil {
		log.Printf("Warning: using default settings: %v", err)
	}
	appCfg := loader.Get()

	st, err := store.Open(cfg.StateFile, store.WithWriteDelay(appCfg.Debounce.Store))
	if err != nil {
		log.Fatalf("Failed to open state file: %v", err)
	}
	defer st.Close()

	if cfg.CurrentNamespace == "" {
		cfg.CurrentNamespace = appCfg.Lookup.Namespace
	}

	client, source, session := connect(cfg, flags, appCfg.Lookup.Prefix)
	lookups := lookup.NewService(source, lookup.ServiceOptions{
		CacheTTL:  appCfg.Lookup.CacheTTL,
		Timeout:   appCfg.Lookup.Timeout,
		Fallbacks: fallbacks(appCfg.Lookup),
	})

	var changes <-chan lookup.Change
	if client != nil {
		watcher := lookup.NewWatcher(client, cfg.CurrentNamespace, appCfg.Lookup.Prefix, lookups)
		go watcher.Run(ctx)
		changes = watcher.Changes()
	}

	state := core.NewState(cfg)
	app := ui.NewApp(ctx, state, ui.Options{
		Lookups: lookups,
		Store:   st,
		Profile: profile.Resolve(session, profile.Load(st)),
		Config:  appCfg,
		Theme:   flags.theme,
		Changes: changes,
	})
	defer app.Close()

	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Fatalf("Error running application: %v", err)
	}
}

// connect builds the configmap source. Without a usable cluster the client
// is nil and the app still runs on the built-in lists.
func connect(cfg *core.Config, flags *CLIFlags, prefix string) (*k8s.Client, lookup.Source, k8s.Session) {
	client, err := k8s.NewClientWithOptions(cfg.KubeConfig, &k8s.ClientOptions{
		Context:            cfg.CurrentContext,
		Namespace:          cfg.CurrentNamespace,
		User:               flags.user,
		Token:              flags.token,
		InsecureSkipVerify: flags.insecureSkipVerify,
		Impersonate:        flags.asUser,
		Timeout:            flags.timeout,
	})
	if err != nil {
		log.Printf("Warning: Kubernetes unavailable, using built-in lookups: %v", err)
		session := k8s.Session{Context: cfg.CurrentContext, Namespace: cfg.CurrentNamespace}
		return nil, offlineSource{err: err}, session
	}

	session := client.Session()
	// The namespace flag wins over the kubeconfig context default
	session.Namespace = cfg.CurrentNamespace
	return client, lookup.NewConfigMapSource(client, cfg.CurrentNamespace, prefix), session
}

// offlineSource fails every fetch so the service serves its fallbacks.
type offlineSource struct {
	err error
}

func (s offlineSource) Fetch(context.Context, string) ([]lookup.Item, error) {
	return nil, s.err
}

func (s offlineSource) Groups(context.Context) ([]string, error) {
	return nil, s.err
}

func fallbacks(lc *config.LookupConfig) map[string][]lookup.Item {
	out := make(map[string][]lookup.Item, len(lc.Fallbacks))
	for group, rows := range lc.Fallbacks {
		items := make([]lookup.Item, len(rows))
		for i, row := range rows {
			items[i] = lookup.Item{Code: row.Code, Label: row.Label}
		}
		out[group] = items
	}
	return out
}

// loadConfigWithFlags loads configuration with CLI flag overrides
func loadConfigWithFlags(flags *CLIFlags) (*core.Config, error) {
	config, err := core.LoadConfig()
	if err != nil {
		return nil, err
	}

	if flags.kubeconfig != "" {
		config.KubeConfig = flags.kubeconfig
	}
	if flags.context != "" {
		config.CurrentContext = flags.context
	}
	if flags.namespace != "" {
		config.CurrentNamespace = flags.namespace
	}
	if flags.group != "" {
		config.InitialGroup = flags.group
	}
	if flags.configDir != "" {
		config.ConfigDir = flags.configDir
	}
	if flags.stateDir != "" {
		config.StateFile = filepath.Join(flags.stateDir, "state.yaml")
		config.LogFile = filepath.Join(flags.stateDir, "gridwatch.log")
	}
	if flags.logFile != "" {
		config.LogFile = flags.logFile
	}

	return config, nil
}
