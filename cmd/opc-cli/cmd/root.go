package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	opcda "github.com/wends155/opc-cli-sub000"
	zaplog "github.com/wends155/opc-cli-sub000/contrib/logging/zap"
	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/driver/dcom"
	"github.com/wends155/opc-cli-sub000/driver/sim"
	"github.com/wends155/opc-cli-sub000/internal/tui/explorer"
)

var (
	cfgFile      string
	flagBackend  string
	flagHost     string
	flagVersion  string
	flagMaxTags  int
	flagLogFile  string
	flagLogLevel string

	cfg *Config
)

var rootCmd = &cobra.Command{
	Use:   "opc-cli",
	Short: "Interactive OPC DA client",
	Long: `opc-cli browses, reads and writes tags on OPC DA servers.

Run without a subcommand to start the interactive terminal UI. The
list, browse, read and write subcommands cover scripted use.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		applyFlagOverrides(cmd)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

// Execute runs the CLI. Errors are printed here so main stays trivial.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to YAML config file")
	pf.StringVar(&flagBackend, "backend", "", "transport backend: dcom or sim")
	pf.StringVar(&flagHost, "host", "", "remote host for the dcom backend")
	pf.StringVar(&flagVersion, "da-version", "", "OPC DA generation: 1.0, 2.0 or 3.0")
	pf.IntVar(&flagMaxTags, "max-tags", 0, "cap on tags discovered per browse")
	pf.StringVar(&flagLogFile, "log-file", "", "log file path")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
}

func applyFlagOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("backend") {
		cfg.Backend = flagBackend
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = flagHost
	}
	if cmd.Flags().Changed("da-version") {
		cfg.DAVersion = flagVersion
	}
	if cmd.Flags().Changed("max-tags") {
		cfg.MaxTags = flagMaxTags
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Log.File = flagLogFile
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
}

func newConnector(cfg *Config) (driver.Connector, error) {
	switch cfg.Backend {
	case "sim":
		return demoConnector(), nil
	case "dcom", "":
		var opts []dcom.Option
		if cfg.Host != "" {
			opts = append(opts, dcom.WithHost(cfg.Host))
		}
		v, err := parseDAVersion(cfg.DAVersion)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dcom.WithDAVersion(v))
		return dcom.NewConnector(opts...)
	default:
		return nil, fmt.Errorf("unknown backend %q (want dcom or sim)", cfg.Backend)
	}
}

func parseDAVersion(s string) (dcom.DAVersion, error) {
	switch s {
	case "1.0", "1":
		return dcom.DA10, nil
	case "2.0", "2", "":
		return dcom.DA20, nil
	case "3.0", "3":
		return dcom.DA30, nil
	default:
		return 0, fmt.Errorf("unknown DA version %q (want 1.0, 2.0 or 3.0)", s)
	}
}

// newClient wires the connector, logger and options into a client. The
// returned cleanup closes the client and flushes the logger.
func newClient(cfg *Config) (*opcda.Client, func(), error) {
	connector, err := newConnector(cfg)
	if err != nil {
		return nil, nil, err
	}

	sugar, flush := newLogger(cfg.Log)

	client, err := opcda.NewClient(connector,
		opcda.WithListTimeout(cfg.ListTimeout),
		opcda.WithBrowseTimeout(cfg.BrowseTimeout),
		opcda.WithReadTimeout(cfg.ReadTimeout),
		opcda.WithWriteTimeout(cfg.WriteTimeout),
		opcda.WithMaxBrowseTags(cfg.MaxTags),
		opcda.WithMaxBrowseDepth(cfg.MaxDepth),
		opcda.WithLogger(zaplog.New(sugar)),
	)
	if err != nil {
		flush()
		return nil, nil, err
	}

	cleanup := func() {
		client.Close()
		flush()
	}
	return client, cleanup, nil
}

func runTUI() error {
	client, cleanup, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return explorer.Run(client)
}

// demoConnector builds the in-memory backend with a namespace shaped like the
// common simulation servers, so the UI can be exercised without DCOM.
func demoConnector() *sim.Connector {
	c := sim.NewConnector()
	c.AddServer("Demo.Simulation.1", sim.ServerConfig{
		Organization:       driver.OrganizationHierarchical,
		SupportsFlatBrowse: true,
		Root: sim.Branch(map[string]*sim.Node{
			"Random": sim.Branch(map[string]*sim.Node{
				"Int1":  sim.ReadOnlyLeaf(opcda.IntValue(42)),
				"Real4": sim.ReadOnlyLeaf(opcda.FloatValue(3.14)),
			}),
			"Bucket Brigade": sim.Branch(map[string]*sim.Node{
				"Int4":   sim.Leaf(opcda.IntValue(0)),
				"Real8":  sim.Leaf(opcda.FloatValue(0)),
				"String": sim.Leaf(opcda.StringValue("hello")),
			}),
			"Square Waves": sim.Branch(map[string]*sim.Node{
				"Boolean": sim.ReadOnlyLeaf(opcda.BoolValue(true)),
			}),
		}),
	})
	return c
}
