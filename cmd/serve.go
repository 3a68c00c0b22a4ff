package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/pomo/internal/api"
	"github.com/joescharf/pomo/internal/daemon"
	"github.com/joescharf/pomo/internal/pomodoro"
	"github.com/joescharf/pomo/internal/progress"
	dashboard "github.com/joescharf/pomo/internal/ui"
)

const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pomo API server",
	Long: `Run the pomo API server in the foreground. It owns the authoritative
timer, the task list and the session history, stored in serve.db_path.

Use 'pomo serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmdContext(cmd.Context))
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.PersistentFlags().String("db", "", "server database path (default serve.db_path)")
	_ = viper.BindPFlag("serve.port", serveCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("serve.db_path", serveCmd.PersistentFlags().Lookup("db"))

	serveCmd.AddCommand(serveStartCmd, serveStopCmd, serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func stateDir() string {
	return viper.GetString("state_dir")
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(stateDir(), "pomo-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(stateDir(), "pomo-serve.log")
}

func serveAddr() string {
	return net.JoinHostPort("", strconv.Itoa(viper.GetInt("serve.port")))
}

func serveRun(ctx context.Context) error {
	pf := pidFile()
	if err := pf.Acquire(os.Getpid()); err != nil {
		return fmt.Errorf("pomo server %w", err)
	}
	defer func() { _ = pf.Release(os.Getpid()) }()

	st, err := openStore(viper.GetString("serve.db_path"))
	if err != nil {
		return err
	}
	defer st.Close()

	svc := pomodoro.NewService(clock, st, configuredSettings(), logger)
	pb := progress.NewBuilder(st, clock, time.Local)
	handler, err := dashboard.Mount(api.NewServer(st, svc, pb, clock, logger).Router())
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}

	srv := &http.Server{
		Addr:              serveAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	ui.Info("Serving pomo at http://localhost%s", srv.Addr)
	logger.Info().Str("addr", srv.Addr).Int("pid", os.Getpid()).Msg("server started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("pomo server already running (PID %d)", pid)
	}
	if dryRun {
		ui.DryRunMsg("Would start pomo server on %s", serveAddr())
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	if err := os.MkdirAll(stateDir(), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("serve.port"))}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Started pomo server (PID %d) on %s", child.Process.Pid, serveAddr())
	ui.VerboseLog("Logging to %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	if dryRun {
		ui.DryRunMsg("Would stop pomo server")
		return nil
	}
	pid, err := pidFile().Terminate(context.Background(), sigTERM(), sigKILL(), shutdownGrace+time.Second)
	if errors.Is(err, daemon.ErrNotRunning) {
		return errors.New("pomo server is not running")
	}
	if err != nil {
		return err
	}
	ui.Success("Stopped pomo server (PID %d)", pid)
	return nil
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("pomo server is not running")
		return nil
	}
	ui.Success("pomo server is running (PID %d)", pid)
	ui.Info("Log: %s", serveLogPath())
	return nil
}
