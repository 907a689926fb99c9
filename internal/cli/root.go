// Package cli implements the pans-scales command line tool.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pans-scales-server/internal/cache"
	"github.com/pans-scales-server/internal/config"
	"github.com/pans-scales-server/internal/service"
	"github.com/pans-scales-server/internal/setup"
	"github.com/pans-scales-server/internal/store"
	"github.com/pans-scales-server/pkg/scales"
)

type options struct {
	dataDir string
	verbose bool
}

// NewRootCommand builds the command tree. Output goes to the command's
// configured writer.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pans-scales",
		Short: "Score PANS screening instruments",
		Long: `pans-scales scores the PANS symptom scale, the diagnostic criteria checklist,
the PANS 31-item rating scale, the PTEC treatment evaluation checklist and the
Caregiver Burden Inventory from JSON or YAML answer files.

Saved results are kept in a SQLite database under the data directory
(default ~/.pans-scales, or $PANS_DATA_DIR).`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory (overrides PANS_DATA_DIR)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	root.AddCommand(
		newScoreCommand(opts),
		newInstrumentsCommand(),
		newExportCommand(opts),
		newImportCommand(opts),
		newSetupCommand(),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *options) liteConfig() *config.LiteConfig {
	cfg := config.LoadLiteConfig()
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func (o *options) logger(cfg *config.LiteConfig) (*logrus.Logger, error) {
	logging := cfg.LoggingConfig()
	if !o.verbose {
		logging.Level = "warn"
	}
	logging.Format = "text"
	return config.NewLogger(logging)
}

// openStore opens the results database under the data directory.
func (o *options) openStore() (*store.SQLiteStore, *config.LiteConfig, error) {
	cfg := o.liteConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.ResultsDBPath())
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScoreCommand(opts *options) *cobra.Command {
	var (
		instrument string
		file       string
		subject    string
		persist    bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one answer file",
		Example: `  pans-scales score --instrument cbi --file answers.yaml
  cat answers.json | pans-scales score -i pans31 -f - --persist --subject s-17`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readAnswers(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			cfg := opts.liteConfig()
			logger, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			engine, err := scales.NewEngine()
			if err != nil {
				return err
			}

			svcOpts := service.Options{SaveTimeout: cfg.SaveTimeout}
			if persist {
				s, _, err := opts.openStore()
				if err != nil {
					return err
				}
				defer s.Close()
				svcOpts.Store = s
				svcOpts.Cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
			}

			svc := service.NewScoringService(logger, engine, svcOpts)
			resp, err := svc.Score(cmd.Context(), service.ScoreRequest{
				Instrument: scalesKind(instrument),
				Answers:    raw,
				SubjectID:  subject,
				Persist:    persist,
			})
			if err != nil {
				return err
			}
			if persist && !resp.Save.Saved {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: result not saved: %s\n", resp.Save.Error)
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&instrument, "instrument", "i", "", "Instrument: symptom_scale, diagnostic_criteria, pans31, ptec or cbi")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Answer file (.json, .yaml, .yml) or - for stdin")
	cmd.Flags().StringVar(&subject, "subject", "", "Pseudonymous subject identifier stored with the result")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save the result in the data directory")
	_ = cmd.MarkFlagRequired("instrument")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readAnswers returns the answer document as JSON. YAML input is converted
// so that strict decoding applies to both formats.
func readAnswers(stdin io.Reader, file string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	ext := strings.ToLower(filepath.Ext(file))
	if ext == ".json" || (ext != ".yaml" && ext != ".yml" && len(trimmed) > 0 && trimmed[0] == '{') {
		return trimmed, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML answers: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML answers: %w", err)
	}
	return out, nil
}

func newInstrumentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "instruments [kind]",
		Short: "Describe the supported instruments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := scales.NewEngine()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return writeJSON(cmd.OutOrStdout(), engine.Instruments())
			}
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), engine.Describe(kind))
		},
	}
}

func newExportCommand(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved results as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if output == "" || output == "-" {
				return s.ExportJSON(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create export file: %w", err)
			}
			defer f.Close()
			if err := s.ExportJSON(cmd.Context(), f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported results to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCommand(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import results from a JSON export",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			imported, skipped, err := s.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d results, skipped %d\n", imported, skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Export document to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSetupCommand() *cobra.Command {
	var (
		opts      setup.Options
		noPersist bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server in a desktop client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if noPersist {
				off := false
				opts.Persist = &off
			}
			entry, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s -> %s in %s\n", nameOrDefault(opts.ServerName), entry.Command, opts.ConfigPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "client-config", "", "Client configuration file holding mcpServers")
	cmd.Flags().StringVar(&opts.ServerName, "name", setup.DefaultServerName, "Server entry name")
	cmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "Path to the mcp-server binary (searched for when empty)")
	cmd.Flags().StringVar(&opts.DataDir, "server-data-dir", "", "Data directory passed to the server")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "Run the server without saving results")
	_ = cmd.MarkFlagRequired("client-config")
	return cmd
}

func nameOrDefault(name string) string {
	if name == "" {
		return setup.DefaultServerName
	}
	return name
}
