package core

import (
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	KubeConfig       string
	CurrentContext   string
	CurrentNamespace string
	InitialGroup     string
	ConfigDir        string
	StateFile        string
	LogFile          string
}

// LoadConfig loads the application configuration
func LoadConfig() (*Config, error) {
	config := &Config{}

	// Pass the raw KUBECONFIG value; the k8s client splits multiple paths
	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		kubeconfig = filepath.Join(home, ".kube", "config")
	}
	config.KubeConfig = kubeconfig

	config.CurrentNamespace = os.Getenv("GRIDWATCH_NAMESPACE")
	config.CurrentContext = os.Getenv("GRIDWATCH_CONTEXT")
	config.InitialGroup = os.Getenv("GRIDWATCH_GROUP")

	configDir := os.Getenv("GRIDWATCH_CONFIG_DIR")
	if configDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(dir, "gridwatch")
	}
	config.ConfigDir = configDir

	stateDir := os.Getenv("GRIDWATCH_STATE_DIR")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		stateDir = filepath.Join(home, ".local", "state", "gridwatch")
	}
	config.StateFile = filepath.Join(stateDir, "state.yaml")
	config.LogFile = filepath.Join(stateDir, "gridwatch.log")

	return config, nil
}
