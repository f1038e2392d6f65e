package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/taskstream/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int          `mapstructure:"config_version" yaml:"config_version"`
	Engine        EngineConfig `mapstructure:"engine" yaml:"engine"`
	Task          TaskConfig   `mapstructure:"task" yaml:"task"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EngineConfig controls how the engine is reached.
type EngineConfig struct {
	Address            string `mapstructure:"address" yaml:"address"`
	DialTimeoutSeconds int    `mapstructure:"dial_timeout_seconds" yaml:"dial_timeout_seconds"`
	MaxRecvMB          int    `mapstructure:"max_recv_mb" yaml:"max_recv_mb"`
	KeepaliveSeconds   int    `mapstructure:"keepalive_seconds" yaml:"keepalive_seconds"`
	ClientID           string `mapstructure:"client_id" yaml:"client_id"`
}

// TaskConfig holds the settings sent with every new task.
type TaskConfig struct {
	Mode         string             `mapstructure:"mode" yaml:"mode"`
	AutoApproval AutoApprovalConfig `mapstructure:"auto_approval" yaml:"auto_approval"`
}

// AutoApprovalConfig mirrors schema.AutoApproval.
type AutoApprovalConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxRequests int           `mapstructure:"max_requests" yaml:"max_requests"`
	Actions     ActionsConfig `mapstructure:"actions" yaml:"actions"`
}

// ActionsConfig lists the individually approvable actions.
type ActionsConfig struct {
	ReadFiles           bool `mapstructure:"read_files" yaml:"read_files"`
	ReadFilesExternally bool `mapstructure:"read_files_externally" yaml:"read_files_externally"`
	EditFiles           bool `mapstructure:"edit_files" yaml:"edit_files"`
	EditFilesExternally bool `mapstructure:"edit_files_externally" yaml:"edit_files_externally"`
	ExecuteSafeCommands bool `mapstructure:"execute_safe_commands" yaml:"execute_safe_commands"`
	ExecuteAllCommands  bool `mapstructure:"execute_all_commands" yaml:"execute_all_commands"`
	UseBrowser          bool `mapstructure:"use_browser" yaml:"use_browser"`
	UseMCP              bool `mapstructure:"use_mcp" yaml:"use_mcp"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Engine: EngineConfig{
			Address:            "127.0.0.1:50051",
			DialTimeoutSeconds: 10,
			MaxRecvMB:          50,
			KeepaliveSeconds:   0,
		},
		Task: TaskConfig{
			Mode: string(schema.ModeAct),
			AutoApproval: AutoApprovalConfig{
				Enabled:     true,
				MaxRequests: 20,
				Actions: ActionsConfig{
					ReadFiles:           true,
					EditFiles:           true,
					ExecuteSafeCommands: true,
				},
			},
		},
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/taskstream/config.yaml, falling
// back to ~/.config.
func DefaultConfigPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); dir != "" {
		return filepath.Join(dir, "taskstream", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "taskstream", "config.yaml"), nil
}

// Validate checks the values Load cannot express through defaults.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Engine.Address) == "" {
		errs = append(errs, errors.New("engine.address is required"))
	}
	if c.Engine.DialTimeoutSeconds < 0 {
		errs = append(errs, errors.New("engine.dial_timeout_seconds must not be negative"))
	}
	if c.Engine.MaxRecvMB <= 0 {
		errs = append(errs, errors.New("engine.max_recv_mb must be positive"))
	}
	if c.Engine.KeepaliveSeconds < 0 {
		errs = append(errs, errors.New("engine.keepalive_seconds must not be negative"))
	}
	if _, err := schema.ParseMode(c.Task.Mode); err != nil {
		errs = append(errs, fmt.Errorf("task.mode: %w %q", err, c.Task.Mode))
	}
	if c.Task.AutoApproval.MaxRequests < 0 {
		errs = append(errs, errors.New("task.auto_approval.max_requests must not be negative"))
	}
	return errors.Join(errs...)
}

// Settings converts the task section into the settings sent to the engine.
func (t TaskConfig) Settings() (schema.TaskSettings, error) {
	mode, err := schema.ParseMode(t.Mode)
	if err != nil {
		return schema.TaskSettings{}, fmt.Errorf("task.mode: %w %q", err, t.Mode)
	}
	actions := t.AutoApproval.Actions
	return schema.TaskSettings{
		Mode: mode,
		AutoApproval: schema.AutoApproval{
			Enabled:     t.AutoApproval.Enabled,
			MaxRequests: t.AutoApproval.MaxRequests,
			Actions: schema.ApprovalActions{
				ReadFiles:           actions.ReadFiles,
				ReadFilesExternally: actions.ReadFilesExternally,
				EditFiles:           actions.EditFiles,
				EditFilesExternally: actions.EditFilesExternally,
				ExecuteSafeCommands: actions.ExecuteSafeCommands,
				ExecuteAllCommands:  actions.ExecuteAllCommands,
				UseBrowser:          actions.UseBrowser,
				UseMCP:              actions.UseMCP,
			},
		},
	}, nil
}
