package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/usecases"
	"github.com/0xcro3dile/coderag-go/internal/infrastructure/mcp"
	"github.com/0xcro3dile/coderag-go/internal/infrastructure/tui"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API: POST /index, GET /index/status, POST /query,
GET /query/stream, POST /process_image and POST /process_image_base64.

With --watch, changes to indexed file types under the corpus root trigger
a full rebuild.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if watch {
				go func() {
					if err := a.WatchCorpus(ctx); err != nil {
						logger.Error("watch mode stopped: %v", err)
					}
				}()
			}
			return a.Server().Start(ctx)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild the index when corpus files change")
	return cmd
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the index and wait for it to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if err := a.BuildAndWait(cmd.Context()); err != nil {
				return fmt.Errorf("index build failed: %w", err)
			}
			st := a.Builds.Status()
			r := st.Report
			fmt.Fprintf(out, "Indexed %d files into %d chunks in %s", r.Files, r.Chunks, st.Duration.Round(time.Millisecond))
			if r.Failed > 0 || r.Empty > 0 {
				fmt.Fprintf(out, " (%d failed, %d empty)", r.Failed, r.Empty)
			}
			fmt.Fprintln(out)
			if r.Skipped {
				fmt.Fprintln(out, "No content found; the existing index was left untouched.")
			}
			return nil
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		k       int
		asJSON  bool
		stream  bool
		sources bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if stream && !asJSON {
				tokens, srcs, err := a.Query.StreamAnswer(ctx, question, k)
				if err != nil {
					return err
				}
				for tok := range tokens {
					if tok.Error != nil {
						return tok.Error
					}
					fmt.Fprint(out, tok.Content)
				}
				fmt.Fprintln(out)
				if sources {
					printSources(out, srcs)
				}
				return nil
			}

			answer, err := a.Query.Answer(ctx, question, k)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(map[string]any{
					"answer":  answer.Text,
					"sources": answer.Sources,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding answer: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintln(out, answer.Text)
			if sources {
				printSources(out, answer.Sources)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer and sources as JSON")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the answer as it is generated")
	cmd.Flags().BoolVar(&sources, "sources", true, "list the sources used")
	return cmd
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long: `Launch an interactive question loop in the terminal.

Controls:
  Enter        - Ask
  PgUp/PgDown  - Scroll history
  exit, Esc    - Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()
			return tui.Run(cmd.Context(), a.Query, a.Config.Query.TopK)
		},
	}
}

func newOCRCmd(opts *rootOptions) *cobra.Command {
	var question string
	cmd := &cobra.Command{
		Use:   "ocr <image>",
		Short: "Extract text from an image and optionally answer a question about it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Query.AnswerFromImage(cmd.Context(), data, question)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Extracted text:")
			fmt.Fprintln(out, result.ExtractedText)
			if result.Answer != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Answer:")
				fmt.Fprintln(out, result.Answer)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "question about the image")
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index to MCP clients over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
tools ask, search, index and index_status.

Client configuration:
  {
    "mcpServers": {
      "coderag": {
        "command": "/path/to/coderag",
        "args": ["mcp", "--config", "/path/to/coderag.yaml"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load()
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcp.NewServer(a.Query, a.Builds)
			if err != nil {
				return err
			}
			return server.Run(cmd.Context())
		},
	}
}

func printSources(w io.Writer, sources []entities.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, src := range sources {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, src.File)
		if src.Excerpt != "" {
			fmt.Fprintf(w, "      %s\n", strings.ReplaceAll(usecases.Truncate(src.Excerpt, 120), "\n", " "))
		}
	}
}
