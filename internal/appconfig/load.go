package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg := DefaultConfig()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("engine.address", cfg.Engine.Address)
	v.SetDefault("engine.dial_timeout_seconds", cfg.Engine.DialTimeoutSeconds)
	v.SetDefault("engine.max_recv_mb", cfg.Engine.MaxRecvMB)
	v.SetDefault("engine.keepalive_seconds", cfg.Engine.KeepaliveSeconds)
	v.SetDefault("engine.client_id", cfg.Engine.ClientID)
	v.SetDefault("task.mode", cfg.Task.Mode)
	v.SetDefault("task.auto_approval.enabled", cfg.Task.AutoApproval.Enabled)
	v.SetDefault("task.auto_approval.max_requests", cfg.Task.AutoApproval.MaxRequests)
	actions := cfg.Task.AutoApproval.Actions
	v.SetDefault("task.auto_approval.actions.read_files", actions.ReadFiles)
	v.SetDefault("task.auto_approval.actions.read_files_externally", actions.ReadFilesExternally)
	v.SetDefault("task.auto_approval.actions.edit_files", actions.EditFiles)
	v.SetDefault("task.auto_approval.actions.edit_files_externally", actions.EditFilesExternally)
	v.SetDefault("task.auto_approval.actions.execute_safe_commands", actions.ExecuteSafeCommands)
	v.SetDefault("task.auto_approval.actions.execute_all_commands", actions.ExecuteAllCommands)
	v.SetDefault("task.auto_approval.actions.use_browser", actions.UseBrowser)
	v.SetDefault("task.auto_approval.actions.use_mcp", actions.UseMCP)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Engine.Address = expandEnv(cfg.Engine.Address)
	cfg.Engine.ClientID = expandEnv(cfg.Engine.ClientID)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
