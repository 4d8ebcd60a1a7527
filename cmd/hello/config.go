package main

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jimmyptl-jer/Docker/internal/config"
	"github.com/jimmyptl-jer/Docker/internal/port"
)

// configView is the printable form of the resolved configuration.
type configView struct {
	Port              int    `yaml:"port" json:"port"`
	Host              string `yaml:"host" json:"host"`
	URL               string `yaml:"url" json:"url"`
	Greeting          string `yaml:"greeting" json:"greeting"`
	ReadHeaderTimeout string `yaml:"read_header_timeout" json:"read_header_timeout"`
	IdleTimeout       string `yaml:"idle_timeout" json:"idle_timeout"`
	Watch             bool   `yaml:"watch" json:"watch"`
	LogLevel          string `yaml:"log_level" json:"log_level"`
	LogFormat         string `yaml:"log_format" json:"log_format"`
	File              string `yaml:"file,omitempty" json:"file,omitempty"`
	PortWarning       string `yaml:"port_warning,omitempty" json:"port_warning,omitempty"`
	PortAvailable     bool   `yaml:"port_available" json:"port_available"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration",
	Long:  "Resolve defaults, config file, dotenv file and environment the way 'serve' does, and print the result.",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

var configJSON bool

func init() {
	configCmd.Flags().BoolVar(&configJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(configOptions(cmd))
	if err != nil {
		return err
	}

	view := newConfigView(cfg)
	out := cmd.OutOrStdout()

	if configJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	data, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func newConfigView(cfg *config.Config) configView {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	v := configView{
		Port:              cfg.Port,
		Host:              cfg.Host,
		URL:               fmt.Sprintf("http://%s/", net.JoinHostPort(host, fmt.Sprint(cfg.Port))),
		Greeting:          cfg.Greeting,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout.String(),
		IdleTimeout:       cfg.IdleTimeout.String(),
		Watch:             cfg.Watch,
		LogLevel:          cfg.LogLevel,
		LogFormat:         cfg.LogFormat,
		File:              cfg.File,
		PortAvailable:     port.Available(cfg.Host, cfg.Port),
	}
	if cfg.PortErr != nil {
		v.PortWarning = cfg.PortErr.Error()
	}
	return v
}
