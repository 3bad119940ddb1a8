// Package bridgecli is the smd2gc-hid command-line surface, mirroring
// pkg/agent/agentcli's root-command-plus-lazy-provider shape.
//
//go:generate go run ../../cmd/docgen ../../docs/presets docs_generated.go
package bridgecli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/proboterror/SMD2GC/hidcore"
	"github.com/proboterror/SMD2GC/internal/bridge"
	"github.com/proboterror/SMD2GC/internal/hidtransport"
	"github.com/proboterror/SMD2GC/internal/joybussim"
	"github.com/proboterror/SMD2GC/internal/megadrive"
	"github.com/proboterror/SMD2GC/internal/presetstore"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "smd2gc"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type loggerProvider func() *zap.Logger

func NewRootCmd(configDir string) *cobra.Command {
	cfg := bridge.Config{
		PresetsFile:      filepath.Join(configDir, "presets.yml"),
		DeviceConfigFile: filepath.Join(configDir, "devices.yml"),
		DataDir:          filepath.Join(configDir, "data"),
		ConsoleID:        "smd2gc-hid",
		ArenaSize:        0,
		PollInterval:     time.Millisecond,
		ReportSize:       64,
	}

	rootCmd := &cobra.Command{
		Use:   "smd2gc-hid",
		Short: "SMD2GC HID bridge",
		Long:  `smd2gc-hid parses USB HID report descriptors and decodes input reports into GameCube/Mega Drive controller state.`,
	}

	var logger *zap.Logger
	logProvider := func() *zap.Logger { return logger }

	rootCmd.PersistentFlags().StringVar(&cfg.PresetsFile, "presets", cfg.PresetsFile, "preset table YAML file")
	rootCmd.PersistentFlags().StringVar(&cfg.DeviceConfigFile, "device-config", cfg.DeviceConfigFile, "per-device arena-size/report-id overrides YAML file (optional)")
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory (badger device store)")
	rootCmd.PersistentFlags().StringVar(&cfg.ConsoleID, "console-id", cfg.ConsoleID, "uhid device id for the virtual console")
	rootCmd.PersistentFlags().IntVar(&cfg.ArenaSize, "arena-size", cfg.ArenaSize, "parser arena capacity in bytes (0 selects the default)")
	rootCmd.PersistentFlags().DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "console/Mega Drive poll interval")
	rootCmd.PersistentFlags().IntVar(&cfg.ReportSize, "report-size", cfg.ReportSize, "maximum input report size in bytes")

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loggerConfig := zap.NewProductionConfig()
		if verbose {
			loggerConfig = zap.NewDevelopmentConfig()
		}
		l, err := loggerConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	}

	rootCmd.AddCommand(newParseDescriptorCmd(&cfg, logProvider))
	rootCmd.AddCommand(newDecodeReportCmd(&cfg, logProvider))
	rootCmd.AddCommand(newServeCmd(&cfg, logProvider))
	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

// newDocsCmd prints the long-form explanation of a preset
// "interpretation" keyword, rendered ahead of time from
// docs/presets/*.md by cmd/docgen (see the go:generate directive atop
// this file). With no argument it lists every documented keyword.
func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs [interpretation]",
		Short: "Explain a preset interpretation keyword (axis, equal, threshold-above, ...)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				keys := make([]string, 0, len(presetDocs))
				for k := range presetDocs {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			}
			text, ok := presetDocs[args[0]]
			if !ok {
				return fmt.Errorf("docs: no documentation for interpretation %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newParseDescriptorCmd(cfg *bridge.Config, logger loggerProvider) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "parse-descriptor <descriptor-file>",
		Short: "Parse a USB HID report descriptor and print its report/segment graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read descriptor: %w", err)
			}
			presets, err := presetstore.Load(cfg.PresetsFile)
			if err != nil {
				return fmt.Errorf("load presets: %w", err)
			}

			parser := hidcore.NewParser(cfg.ArenaSize, logger())
			if err := parser.ParseDescriptor(desc, presets); err != nil {
				return fmt.Errorf("parse descriptor: %w", err)
			}

			if raw {
				return parser.Dump(cmd.OutOrStdout())
			}
			return printParsedGraph(cmd.OutOrStdout(), parser)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the human-readable dump instead of JSON")
	return cmd
}

type reportJSON struct {
	ReportID     uint8        `json:"reportId"`
	AppUsage     uint32       `json:"appUsage"`
	AppUsagePage uint16       `json:"appUsagePage"`
	Length       uint16       `json:"lengthBits"`
	Segments     []hidcore.Segment `json:"segments"`
}

func printParsedGraph(w io.Writer, parser *hidcore.Parser) error {
	reports := parser.Reports()
	out := make([]reportJSON, len(reports))
	for i, rep := range reports {
		out[i] = reportJSON{
			ReportID:     rep.ReportID,
			AppUsage:     rep.AppUsage,
			AppUsagePage: rep.AppUsagePage,
			Length:       rep.Length,
			Segments:     parser.SegmentsForReport(i),
		}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func newDecodeReportCmd(cfg *bridge.Config, logger loggerProvider) *cobra.Command {
	var descriptorPath string
	var loopback bool
	cmd := &cobra.Command{
		Use:   "decode-report <report-file>",
		Short: "Decode one runtime input report against a descriptor and print the dispatched events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if descriptorPath == "" {
				return fmt.Errorf("decode-report: --descriptor is required")
			}
			desc, err := os.ReadFile(descriptorPath)
			if err != nil {
				return fmt.Errorf("read descriptor: %w", err)
			}
			report, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}
			presets, err := presetstore.Load(cfg.PresetsFile)
			if err != nil {
				return fmt.Errorf("load presets: %w", err)
			}

			parser := hidcore.NewParser(cfg.ArenaSize, logger())
			if err := parser.ParseDescriptor(desc, presets); err != nil {
				return fmt.Errorf("parse descriptor: %w", err)
			}

			snapshot := bridge.NewSnapshot()
			type event struct {
				Channel string `json:"channel"`
				Detail  string `json:"detail"`
			}
			var events []event
			callbacks := hidcore.Callbacks{
				Gamepad: func(control, value uint32) {
					events = append(events, event{"gamepad", fmt.Sprintf("control=%d value=%d", control, value)})
					snapshot.Callbacks().Gamepad(control, value)
				},
				Keyboard: func(scancode uint8, pressed bool) {
					events = append(events, event{"keyboard", fmt.Sprintf("scancode=%#x pressed=%v", scancode, pressed)})
					snapshot.Callbacks().Keyboard(scancode, pressed)
				},
				Mouse: func(dx, dy, dz int16, buttons uint8) {
					events = append(events, event{"mouse", fmt.Sprintf("dx=%d dy=%d dz=%d buttons=%#02x", dx, dy, dz, buttons)})
					snapshot.Callbacks().Mouse(dx, dy, dz, buttons)
				},
			}
			if err := parser.ParseReport(report, callbacks); err != nil {
				return fmt.Errorf("parse report: %w", err)
			}

			b, err := json.MarshalIndent(events, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal events: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))

			if loopback {
				console := joybussim.NewFakeConsole()
				if err := console.EnterMode(func() joybussim.GCReport { return snapshot.GCReport() }); err != nil {
					return fmt.Errorf("loopback: %w", err)
				}
				gc, err := json.MarshalIndent(console.Reports(), "", "  ")
				if err != nil {
					return fmt.Errorf("marshal loopback report: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(gc))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&descriptorPath, "descriptor", "", "report descriptor file to parse first")
	cmd.Flags().BoolVar(&loopback, "loopback", false, "also run the decoded state through a simulated console poll")
	return cmd
}

func newServeCmd(cfg *bridge.Config, logger loggerProvider) *cobra.Command {
	var noHardware bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge: discover USB HID sources, poll Mega Drive, drive the virtual console",
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := presetstore.Load(cfg.PresetsFile)
			if err != nil {
				return fmt.Errorf("load presets: %w", err)
			}

			var backend hidtransport.Backend
			var console joybussim.Console
			var mdReader megadrive.Reader

			if noHardware {
				backend = hidtransport.NewFakeBackend()
				console = joybussim.NewFakeConsole()
				mdReader = megadrive.NewFakeReader()
			} else {
				backend = hidtransport.NewLinuxBackend(logger())
				uhidConsole, err := joybussim.NewUhidConsole(logger(), cfg.ConsoleID, cfg.PollInterval)
				if err != nil {
					return fmt.Errorf("create console: %w", err)
				}
				console = uhidConsole
				mdReader = megadrive.NewFakeReader() // real GPIO reader is out of scope
			}

			b := bridge.New(logger(), *cfg, backend, console, mdReader)
			return b.Run(cmd.Context(), presets)
		},
	}
	cmd.Flags().BoolVar(&noHardware, "no-hardware", false, "use in-memory fakes instead of real USB HID/uhid backends")
	return cmd
}
