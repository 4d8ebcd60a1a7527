package main

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jimmyptl-jer/Docker/internal/config"
	"github.com/jimmyptl-jer/Docker/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that a running responder answers with the greeting",
	Long: "GET the responder once and exit 0 only if it answers 200 with the expected greeting.\n" +
		"Suitable for a container HEALTHCHECK.",
	Args: cobra.NoArgs,
	RunE: runProbe,
}

var (
	probeURL     string
	probeExpect  string
	probeAnyBody bool
	probeTCP     bool
	probeTimeout time.Duration
)

func init() {
	probeCmd.Flags().StringVar(&probeURL, "url", "", "URL to check (default http://127.0.0.1:$PORT/)")
	probeCmd.Flags().StringVar(&probeExpect, "expect", "", "Expected body (default: the configured greeting)")
	probeCmd.Flags().BoolVar(&probeAnyBody, "any-body", false, "Accept any body as long as the status is 200")
	probeCmd.Flags().BoolVar(&probeTCP, "tcp", false, "Only check that 127.0.0.1:$PORT accepts TCP connections")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 3*time.Second, "Timeout for the whole check")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(configOptions(cmd))
	if err != nil {
		return err
	}

	if probeTCP {
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Port))
		if err := probe.Dial(cmd.Context(), addr, probeTimeout); err != nil {
			return fmt.Errorf("probe %s: %w", addr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK    tcp://%s\n", addr)
		return nil
	}

	pc := probe.Config{
		URL:     probeURL,
		Expect:  probeExpect,
		Timeout: probeTimeout,
	}
	if pc.URL == "" {
		pc.URL = fmt.Sprintf("http://127.0.0.1:%d/", cfg.Port)
	}
	if pc.Expect == "" {
		pc.Expect = cfg.Greeting
	}
	if probeAnyBody {
		pc.Expect = ""
	}

	res, err := probe.Check(cmd.Context(), pc)
	if err != nil {
		return fmt.Errorf("probe %s: %w", pc.URL, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "OK    %s (%d, %s)\n", pc.URL, res.Status, res.Duration.Round(time.Millisecond))
	return nil
}
