package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/htmllex/analyzer/internal/client"
	"github.com/htmllex/analyzer/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrInvalidFiles is returned by submit --strict when any file has errors.
var ErrInvalidFiles = errors.New("one or more files have errors")

type submitOptions struct {
	output string
	watch  bool
	strict bool
}

func newSubmitCommand(v *viper.Viper) *cobra.Command {
	opts := &submitOptions{}

	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Analyze files once, or on every change with --watch",
		Long: `Send every FILE to the analysis service in one request and print the
errors and tokens found in each, in the order the service returns them.

Examples:
  htmllex submit index.html about.html
  htmllex submit --output json page.html
  htmllex submit --watch page.html`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, v, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "resubmit whenever a file changes")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with an error when any file has errors")

	return cmd
}

func runSubmit(cmd *cobra.Command, v *viper.Viper, opts *submitOptions, paths []string) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unsupported output format: %s", opts.output)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("file does not exist: %s", p)
		}
	}

	s, err := loadSettings(cmd, v)
	if err != nil {
		return err
	}

	log := newLogger(cmd, s)
	ctrl := newController(s, log)
	ctrl.Select(client.PathFiles(paths))

	p := &printer{
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		renderer: render.New(!s.NoColor),
		json:     opts.output == "json",
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	outcome := ctrl.Submit(ctx)
	p.print(outcome)

	if !opts.watch {
		if outcome.Kind == client.Failed {
			return outcome.Err
		}
		if opts.strict && hasErrors(outcome) {
			return ErrInvalidFiles
		}
		return nil
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	return watchFiles(ctx, paths, log, func(string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Changes that land while a submission is in flight are rejected
			// and logged by the controller.
			p.print(ctrl.Submit(ctx))
		}()
	})
}

func hasErrors(o client.Outcome) bool {
	for i := range o.Results {
		if !o.Results[i].Valid() {
			return true
		}
	}
	return false
}

// printer serializes output from concurrent submissions.
type printer struct {
	mu       sync.Mutex
	out      io.Writer
	errOut   io.Writer
	renderer *render.Renderer
	json     bool
}

func (p *printer) print(o client.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch o.Kind {
	case client.Succeeded:
		if p.json {
			enc := json.NewEncoder(p.out)
			enc.SetIndent("", "  ")
			_ = enc.Encode(o.Results)
			return
		}
		fmt.Fprint(p.out, p.renderer.Render(o.Results))
		fmt.Fprintf(p.out, "\n%s\n", render.Summary(o.Results))
	case client.Failed:
		fmt.Fprintf(p.errOut, "Error analyzing files: %v\n", o.Err)
	}
}
