// Command personad runs one persona agent as a long-lived process. Runtime
// wiring comes from the environment (.env is loaded if present); the persona
// itself is a directory of yaml files under PERSONA_ROOT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"personad/internal/agent"
	"personad/internal/backup"
	"personad/internal/config"
	"personad/internal/embedding"
	"personad/internal/llm"
	"personad/internal/logging"
	"personad/internal/mode"
	"personad/internal/platform"
	"personad/internal/store"
)

var (
	verbose bool
	console bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "personad",
	Short: "personad - autonomous social persona agent",
	Long: `personad runs a single persona: it keeps its own tiered memory,
decides when something it saw is worth posting about, paces itself like a
person, and engages with notifications and its feed in sessions.

Configuration is environment-driven (PERSONA_NAME, PERSONA_ROOT, DATA_ROOT,
provider keys); a .env file in the working directory is loaded first.
Run without arguments to start the agent loop.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		var err error
		logger, err = logging.New(logging.Config{
			Verbose: verbose || os.Getenv("VERBOSE") == "1",
			File:    os.Getenv("LOG_FILE"),
			Console: console,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runAgent,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop (the default command)",
	RunE:  runAgent,
}

var backupCmd = &cobra.Command{
	Use:   "backup [backup-dir]",
	Short: "Archive the persona's data directory as a tar.gz",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive> [data-dir]",
	Short: "Unpack an archive into a fresh data directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRestore,
}

var listCmd = &cobra.Command{
	Use:   "list [backup-dir]",
	Short: "List archives, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts for the persona's store",
	RunE:  runStats,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
	rootCmd.PersistentFlags().BoolVar(&console, "console", false, "human-readable log encoder")
	rootCmd.AddCommand(runCmd, backupCmd, restoreCmd, listCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	rt, err := config.LoadRuntime()
	if err != nil {
		return err
	}
	persona, err := config.LoadPersona(rt.PersonaDir())
	if err != nil {
		return fmt.Errorf("failed to load persona %s: %w", rt.PersonaName, err)
	}

	client, err := buildClient(rt)
	if err != nil {
		return err
	}

	provider, err := buildProvider(rt)
	if err != nil {
		return err
	}
	embedder := buildEmbedder(rt)

	st, err := store.Open(filepath.Join(rt.DataDir(), "agent.db"), logging.Named(logger, logging.CategoryStore))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	a, err := agent.New(agent.Options{
		Persona:         persona,
		Client:          client,
		Store:           st,
		Provider:        provider,
		Embedder:        embedder,
		Mode:            mode.Name(rt.AgentMode),
		Logger:          logger,
		FallbackLogPath: rt.FallbackLogPath(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Persona config is immutable per run; a change on disk requests a stop
	// at the next session boundary so a supervisor can restart us.
	watcher, err := config.NewWatcher(rt.PersonaDir(), logging.Named(logger, logging.CategorySession))
	if err != nil {
		logger.Warn("persona watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
		go func() {
			select {
			case <-ctx.Done():
			case <-watcher.Changed():
				a.RequestStop()
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-ctx.Done():
		case s := <-sigs:
			logger.Info("signal received, stopping after current session", zap.String("signal", s.String()))
			a.RequestStop()
			cancel()
		}
	}()

	return a.Run(ctx)
}

func buildClient(rt *config.Runtime) (platform.Client, error) {
	if !rt.DryRun {
		// The live platform adapter links in separately per deployment; this
		// build carries only the dry-run adapter.
		return nil, fmt.Errorf("no live platform adapter in this build; set DRY_RUN=1")
	}
	logger.Info("dry run: platform actions are recorded, not sent")
	fake := platform.NewFake()
	return platform.NewTimedClient(fake, platform.DefaultCallTimeout,
		logging.Named(logger, logging.CategoryPlatform)), nil
}

func buildProvider(rt *config.Runtime) (llm.Provider, error) {
	apiKey := rt.GeminiAPIKey
	if rt.LLMProvider == "openai" || rt.LLMProvider == "compat" {
		apiKey = rt.OpenAIAPIKey
	}
	if apiKey == "" && rt.LLMBaseURL == "" {
		logger.Warn("no llm credentials; running with heuristic perception only")
		return nil, nil
	}
	p, err := llm.New(llm.Config{
		Provider: rt.LLMProvider,
		APIKey:   apiKey,
		Model:    rt.LLMModel,
		BaseURL:  rt.LLMBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build llm provider: %w", err)
	}
	logger.Info("llm provider ready", zap.String("provider", p.Name()))
	return p, nil
}

// buildEmbedder is best effort: the vector index degrades to keyword search
// without one.
func buildEmbedder(rt *config.Runtime) embedding.Engine {
	e, err := embedding.NewEngine(embedding.Config{
		Provider:       rt.EmbeddingProvider,
		OllamaEndpoint: rt.OllamaEndpoint,
		OllamaModel:    rt.EmbeddingModel,
		GenAIAPIKey:    rt.GeminiAPIKey,
		GenAIModel:     rt.EmbeddingModel,
	})
	if err != nil {
		logger.Warn("embedding engine unavailable, vector search falls back to keywords", zap.Error(err))
		return nil
	}
	logger.Info("embedding engine ready", zap.String("engine", e.Name()))
	return e
}

func runBackup(cmd *cobra.Command, args []string) error {
	rt, err := config.LoadRuntime()
	if err != nil {
		return err
	}
	dir := defaultBackupDir(rt)
	if len(args) > 0 {
		dir = args[0]
	}
	path, err := backup.Create(rt.DataDir(), dir, rt.PersonaName, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	rt, err := config.LoadRuntime()
	if err != nil {
		return err
	}
	target := rt.DataDir()
	if len(args) > 1 {
		target = args[1]
	}
	if err := backup.Restore(args[0], target); err != nil {
		return err
	}
	fmt.Printf("restored %s into %s\n", args[0], target)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := config.LoadRuntime()
	if err != nil {
		return err
	}
	dir := defaultBackupDir(rt)
	if len(args) > 0 {
		dir = args[0]
	}
	archives, err := backup.List(dir)
	if err != nil {
		return err
	}
	for _, a := range archives {
		fmt.Println(a)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	rt, err := config.LoadRuntime()
	if err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(rt.DataDir(), "agent.db"), logging.Named(logger, logging.CategoryStore))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-24s %d\n", name, stats[name])
	}
	return nil
}

func defaultBackupDir(rt *config.Runtime) string {
	return filepath.Join(rt.DataRoot, "personas", rt.PersonaName, "backups")
}
