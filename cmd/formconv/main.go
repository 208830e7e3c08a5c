// Command formconv turns a plain-language form description into an XLSForm
// workbook and prints the converted form definition.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yangwenmai/formconv/internal/app"
	"github.com/yangwenmai/formconv/internal/config"
)

func main() {
	config.LoadEnvFile(".env")
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	var verbose bool

	cmd := &cobra.Command{
		Use:   "formconv [flags] <description>",
		Short: "Generate an XLSForm from a description and convert it",
		Example: `  formconv "a customer feedback survey with a 1-5 rating"
  formconv --mode stub "anything"
  formconv --converter-url http://localhost:8000/result.json "intake form"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := cfg.SlogLevel()
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			cfg.AgentMode = strings.ToLower(cfg.AgentMode)

			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error: description is required")
				return fmt.Errorf("empty description")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return generate(ctx, cfg, query, cmd.OutOrStdout(), cmd.ErrOrStderr(), isTerminal(os.Stdout))
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.AgentMode, "mode", cfg.AgentMode, "agent mode: model, cli or stub")
	f.StringVar(&cfg.ModelID, "model", cfg.ModelID, "provider-prefixed model ID")
	f.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for workbooks and results")
	f.StringVar(&cfg.ConverterURL, "converter-url", cfg.ConverterURL, "conversion service endpoint")
	f.StringVar(&cfg.SearchPolicyFile, "search-policy", cfg.SearchPolicyFile, "YAML file with artifact search strategies")
	f.DurationVar(&cfg.ArtifactDeadline, "artifact-deadline", cfg.ArtifactDeadline, "how long to wait for the agent's workbook")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func generate(ctx context.Context, cfg config.Config, query string, stdout, stderr io.Writer, pretty bool) error {
	pipeline, err := app.BuildPipeline(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}

	res, err := pipeline.Generate(ctx, query)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}

	slog.Info("saved", "artifact", res.ArtifactPath, "result", res.ResultPath)
	return printDocument(stdout, res.Document, pretty)
}

// printDocument writes doc indented when pretty is set and doc is valid JSON,
// and byte-for-byte otherwise.
func printDocument(w io.Writer, doc []byte, pretty bool) error {
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, doc, "", "  "); err == nil {
			buf.WriteByte('\n')
			_, err = w.Write(buf.Bytes())
			return err
		}
	}
	_, err := w.Write(doc)
	return err
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
