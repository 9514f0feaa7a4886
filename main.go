package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"pkt.systems/psi"
	"pkt.systems/pslog"

	"webterm/internal/app"
	"webterm/internal/storage"
	"webterm/internal/transport"
	"webterm/internal/tui"
)

// Version is set at build time via ldflags
var version = "dev"

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("webterm command failed")
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "webterm",
		Short:         "Web terminal server and terminal client",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				configPathOverride = cfgPath
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.webterm/config.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newDaemonCmd())
	root.AddCommand(newConnectCmd())
	root.AddCommand(newStandaloneCmd())
	root.AddCommand(newTelegramCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newPasswdCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var addr string
	var daemon, daemonChild bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web terminal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			files := daemonFiles{dir: cfg.DataDir}
			if daemon {
				return daemonize(files, daemonChildArgs(os.Args[1:]), cmd.OutOrStdout())
			}
			if daemonChild {
				defer files.removePID()
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx := cmd.Context()
			collab, closeStore := newCollaborator(ctx, cfg)
			defer closeStore()
			server := NewWebUIServer(collab, cfg.Server.PasswordHash, cfg.Server.SystemInfoPerMinute)
			server.TrustProxy = cfg.Server.TrustedProxy
			return server.Start(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "run in the background")
	cmd.Flags().BoolVar(&daemonChild, "daemon-child", false, "")
	cmd.Flags().MarkHidden("daemon-child")
	return cmd
}

// daemonChildArgs swaps --daemon for --daemon-child so the re-executed
// process serves in the foreground of its new session.
func daemonChildArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "--daemon" || arg == "--daemon=true" {
			arg = "--daemon-child"
		}
		out = append(out, arg)
	}
	return out
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control a background server started with 'serve --daemon'",
	}
	run := func(fn func(daemonFiles, io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			return fn(daemonFiles{dir: cfg.DataDir}, cmd.OutOrStdout())
		}
	}
	cmd.AddCommand(&cobra.Command{Use: "stop", Short: "Stop the background server", RunE: run(daemonStop)})
	cmd.AddCommand(&cobra.Command{Use: "status", Short: "Show whether the background server runs", RunE: run(daemonStatus)})
	return cmd
}

func newConnectCmd() *cobra.Command {
	var url string
	var raw, noChart bool
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a terminal client to a webterm server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			if url == "" {
				url = cfg.Client.URL
			}
			ctx, closeLog := clientContext(cmd.Context(), cfg)
			defer closeLog()

			perfURL := ""
			if base, err := transport.HTTPBase(url); err != nil {
				pslog.Ctx(ctx).Warn("performance polling disabled", "err", err)
			} else {
				perfURL = base + "/api/system-info"
			}

			conn, err := transport.Dial(ctx, url, nil)
			if err != nil {
				return err
			}
			return runClient(ctx, cfg, conn, perfURL, raw, noChart)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server WebSocket URL (overrides client.url)")
	cmd.Flags().BoolVar(&raw, "raw", false, "use the plain terminal instead of the full-screen UI")
	cmd.Flags().BoolVar(&noChart, "no-chart", false, "do not keep the performance chart")
	return cmd
}

func newStandaloneCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "standalone",
		Short: "Run the client against an in-process server, no network",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			ctx, closeLog := clientContext(cmd.Context(), cfg)
			defer closeLog()

			collab, closeStore := newCollaborator(ctx, cfg)
			defer closeStore()
			return runClient(ctx, cfg, newLoopback(ctx, collab), "", raw, true)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "use the plain terminal instead of the full-screen UI")
	return cmd
}

func newTelegramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Serve allowed Telegram users through the bot API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			collab, closeStore := newCollaborator(ctx, cfg)
			defer closeStore()
			return runTelegram(ctx, cfg, collab)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := getConfigPath()
			if err := writeDefaultConfig(path, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func newPasswdCmd() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Print a bcrypt hash for server.password_hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, fromStdin)
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return err
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "password-from-stdin", false, "read the password from stdin")
	return cmd
}

func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin {
		if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			first, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return "", err
			}
			fmt.Fprint(cmd.ErrOrStderr(), "Confirm password: ")
			second, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return "", err
			}
			if string(first) != string(second) {
				return "", errors.New("passwords do not match")
			}
			if len(first) == 0 {
				return "", errors.New("password is empty")
			}
			return string(first), nil
		}
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pass := strings.TrimSpace(line)
	if pass == "" {
		return "", errors.New("password from stdin is empty")
	}
	return pass, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "webterm %s\n", version)
			return err
		},
	}
}

// newCollaborator wires the executor, the audit log and the host sampler.
// The audit log lives in the sqlite store when it can be opened and in
// memory otherwise.
func newCollaborator(ctx context.Context, cfg Config) (*Collaborator, func()) {
	logger := pslog.Ctx(ctx)
	var audit storage.AuditLog
	closeStore := func() {}
	if local, err := storage.OpenLocal(cfg.dataPath("webterm.db"), cfg.Server.AuditLogLimit); err != nil {
		logger.Warn("audit log kept in memory", "err", err)
		audit = storage.NewMemory(cfg.Server.AuditLogLimit)
	} else {
		audit = local
		closeStore = func() { local.Close() }
	}
	collab := NewCollaborator(CollaboratorOptions{
		Executor: NewExecutor(cfg.Server.Shell, cfg.commandTimeout()),
		Audit:    audit,
		Blocked:  cfg.Server.BlockedCommands,
	})
	return collab, closeStore
}

// clientContext sends logging to client.log under the data directory, since
// the terminal belongs to the client UI.
func clientContext(ctx context.Context, cfg Config) (context.Context, func()) {
	var w io.Writer = io.Discard
	closeFn := func() {}
	if err := os.MkdirAll(cfg.DataDir, 0700); err == nil {
		if f, err := os.OpenFile(cfg.dataPath("client.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			w = f
			closeFn = func() { f.Close() }
		}
	}
	opts := pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.InfoLevel}
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	}
	logger := pslog.NewWithOptions(w, opts)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	return pslog.ContextWithLogger(ctx, logger), closeFn
}

// runClient builds the client session on conn and runs the full-screen UI,
// or the raw console when raw is set.
func runClient(ctx context.Context, cfg Config, conn transport.Conn, perfURL string, raw, noChart bool) error {
	defer conn.Close()
	logger := pslog.Ctx(ctx)
	var kv storage.KV
	if local, err := storage.OpenLocal(cfg.dataPath("webterm.db"), 0); err != nil {
		logger.Warn("local storage unavailable, using memory", "err", err)
		kv = storage.NewMemory(0)
	} else {
		defer local.Close()
		kv = local
	}

	sessCfg := app.Config{
		Storage:      kv,
		Theme:        cfg.Client.Theme,
		PerfURL:      perfURL,
		SlowCommand:  cfg.slowCommand(),
		Capabilities: app.Capabilities{Chart: cfg.Client.Chart && !noChart},
		Log:          logger,
	}
	if raw {
		return runConsole(ctx, conn, sessCfg, cfg.pollInterval(), os.Stdin, os.Stdout)
	}
	return tui.Run(ctx, conn, tui.Options{Session: sessCfg, PollInterval: cfg.pollInterval()})
}
