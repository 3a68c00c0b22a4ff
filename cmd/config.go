package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pomo"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage pomo configuration.

Running bare 'pomo config' is the same as 'pomo config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# pomo configuration
# See: pomo config show (for effective values and sources)

# API server the timer syncs with. Leave empty to always use the local timer.
server_url: "{{ .ServerURL }}"

# State directory for the timer state file and PID files (default: ~/.config/pomo)
# state_dir: {{ .StateDir }}

# Local session journal (default: ~/.config/pomo/pomo.db)
# db_path: {{ .DBPath }}

# Log level: debug, info, warn, error (default: warn)
log_level: {{ .LogLevel }}

# pomo serve
serve:
  port: {{ .ServePort }}
  # db_path: {{ .ServeDBPath }}

# Timer
timer:
  # Deadline for each server status request
  status_timeout: {{ .StatusTimeout }}
  # Display refresh while watching
  poll_interval: {{ .PollInterval }}
  # Task and progress reload while watching
  refresh_interval: {{ .RefreshInterval }}
  # How often local mode checks whether the server is back (0 disables)
  reprobe_interval: {{ .ReprobeInterval }}

  # Durations used by the local timer and by a fresh server
  work_minutes: {{ .WorkMinutes }}
  short_break_minutes: {{ .ShortBreakMinutes }}
  long_break_minutes: {{ .LongBreakMinutes }}
  long_break_interval: {{ .LongBreakInterval }}
`

type configTemplateData struct {
	ServerURL         string
	StateDir          string
	DBPath            string
	LogLevel          string
	ServePort         int
	ServeDBPath       string
	StatusTimeout     time.Duration
	PollInterval      time.Duration
	RefreshInterval   time.Duration
	ReprobeInterval   time.Duration
	WorkMinutes       int
	ShortBreakMinutes int
	LongBreakMinutes  int
	LongBreakInterval int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		ServerURL:         viper.GetString("server_url"),
		StateDir:          viper.GetString("state_dir"),
		DBPath:            viper.GetString("db_path"),
		LogLevel:          viper.GetString("log_level"),
		ServePort:         viper.GetInt("serve.port"),
		ServeDBPath:       viper.GetString("serve.db_path"),
		StatusTimeout:     viper.GetDuration("timer.status_timeout"),
		PollInterval:      viper.GetDuration("timer.poll_interval"),
		RefreshInterval:   viper.GetDuration("timer.refresh_interval"),
		ReprobeInterval:   viper.GetDuration("timer.reprobe_interval"),
		WorkMinutes:       viper.GetInt("timer.work_minutes"),
		ShortBreakMinutes: viper.GetInt("timer.short_break_minutes"),
		LongBreakMinutes:  viper.GetInt("timer.long_break_minutes"),
		LongBreakInterval: viper.GetInt("timer.long_break_interval"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "server_url", EnvVar: "POMO_SERVER_URL"},
	{Key: "state_dir", EnvVar: "POMO_STATE_DIR"},
	{Key: "db_path", EnvVar: "POMO_DB_PATH"},
	{Key: "log_level", EnvVar: "POMO_LOG_LEVEL"},
	{Key: "serve.port", EnvVar: "POMO_SERVE_PORT"},
	{Key: "serve.db_path", EnvVar: "POMO_SERVE_DB_PATH"},
	{Key: "timer.status_timeout", EnvVar: "POMO_TIMER_STATUS_TIMEOUT"},
	{Key: "timer.poll_interval", EnvVar: "POMO_TIMER_POLL_INTERVAL"},
	{Key: "timer.refresh_interval", EnvVar: "POMO_TIMER_REFRESH_INTERVAL"},
	{Key: "timer.reprobe_interval", EnvVar: "POMO_TIMER_REPROBE_INTERVAL"},
	{Key: "timer.work_minutes", EnvVar: "POMO_TIMER_WORK_MINUTES"},
	{Key: "timer.short_break_minutes", EnvVar: "POMO_TIMER_SHORT_BREAK_MINUTES"},
	{Key: "timer.long_break_minutes", EnvVar: "POMO_TIMER_LONG_BREAK_MINUTES"},
	{Key: "timer.long_break_interval", EnvVar: "POMO_TIMER_LONG_BREAK_INTERVAL"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-28s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'pomo config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
