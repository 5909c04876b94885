// Package cli is the coderag command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/coderag-go/internal/config"
	"github.com/0xcro3dile/coderag-go/internal/infrastructure/app"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// Version is set at build time.
var Version = "dev"

// rootOptions holds the persistent flags and the app factory.
type rootOptions struct {
	configPath string
	verbose    bool
	newApp     func(*config.AppConfig) (*app.App, error)
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{newApp: app.New})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "coderag",
		Short: "Question answering over a codebase and its documents",
		Long: `coderag indexes source code, images (via OCR) and PDFs from a project
tree into a vector store and answers questions grounded on the most
relevant chunks.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetVerbose(opts.verbose)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "coderag.yaml", "config file (.yaml or .toml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newIndexCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newOCRCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

// load reads the config and wires the application.
func (o *rootOptions) load() (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	return o.newApp(cfg)
}
