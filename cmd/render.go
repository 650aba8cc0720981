package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mist/internal/config"
	"github.com/conneroisu/mist/internal/demo"
	"github.com/conneroisu/mist/internal/errors"
	"github.com/conneroisu/mist/internal/host/htmldoc"
	"github.com/conneroisu/mist/pkg/app"
	"github.com/conneroisu/mist/pkg/router"
	"github.com/conneroisu/mist/pkg/vdom"
)

var renderCmd = &cobra.Command{
	Use:     "render [path]",
	Aliases: []string{"r"},
	Short:   "Render a route to HTML",
	Long: `Mount the application in a headless document at the given path and
print the resulting HTML. Without --full only the mount point's contents
are printed.

Examples:
  mist render                         # Render the root route
  mist render /todos --state s.yml    # Render /todos with the state in s.yml
  mist render /about --full           # Print the whole document`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

var (
	renderState string
	renderFull  bool
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderState, "state", "s", "", "YAML file with the application state")
	renderCmd.Flags().BoolVar(&renderFull, "full", false, "Print the whole document")
	AddFlagValidation(renderCmd, "state", ValidateStateFile)
}

func runRender(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) == 1 {
		path = router.CleanPath(args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cmd, cfg)

	statePath := renderState
	if statePath == "" {
		statePath = cfg.App.StateFile
	}
	store, err := loadStore(cfg, statePath, logger)
	if err != nil {
		return err
	}

	return renderRoute(cmd.OutOrStdout(), cfg, path, renderFull, func(doc *htmldoc.Document) (*app.App, error) {
		r, err := router.New(demo.Routes(), router.NewMemoryHistory(cfg.App.BaseURL, path), nil)
		if err != nil {
			return nil, err
		}
		return app.New(doc, store, r,
			app.WithLogger(logger),
			app.WithReconcilerOptions(
				vdom.WithKeyedTags(cfg.App.KeyedTags...),
				vdom.WithKeyProp(cfg.App.KeyProp),
			),
		), nil
	})
}

// renderRoute mounts the app built by newApp into a fresh document and
// writes the mount point's contents, or the whole document when full is
// set, to w.
func renderRoute(w io.Writer, cfg *config.Config, path string, full bool, newApp func(*htmldoc.Document) (*app.App, error)) error {
	doc := htmldoc.New()
	a, err := newApp(doc)
	if err != nil {
		return err
	}
	if err := a.Start(cfg.App.Target); err != nil {
		return err
	}
	defer a.Stop()

	if last := a.LastError(); last != nil {
		return errors.Wrap(last, errors.ErrorTypeRender, errors.ErrCodeEffectFailed,
			fmt.Sprintf("rendering %s", path))
	}

	if full {
		if err := doc.Render(w); err != nil {
			return errors.NewIOError(errors.ErrCodeInternalError, "writing document", err)
		}
		_, err := fmt.Fprintln(w)
		return err
	}

	target, ok := doc.Query(cfg.App.Target)
	if !ok {
		return errors.MountTargetNotFound(cfg.App.Target)
	}
	_, err = fmt.Fprintln(w, doc.InnerHTML(target))
	return err
}
