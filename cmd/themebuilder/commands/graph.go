package commands

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

// GraphCmd implements the 'graph' command.
type GraphCmd struct {
	Format string `short:"f" help:"Output format: text, mermaid" default:"text" enum:"text,mermaid"`
	Output string `short:"o" help:"Output file path (optional, prints to stdout if not specified)"`
}

// Run prints the registered tasks and their dependencies.
func (cmd *GraphCmd) Run(root *CLI) error {
	r, err := root.runner(root.Prod)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	var buf bytes.Buffer
	if err := r.WriteGraph(&buf, cmd.Format); err != nil {
		return err
	}

	if cmd.Output != "" {
		if err := os.WriteFile(cmd.Output, buf.Bytes(), 0o644); err != nil {
			return ferrors.FileSystemError("write graph").WithCause(err).
				WithContext("path", cmd.Output).Build()
		}
		slog.Info("Task graph written", "file", cmd.Output, "format", cmd.Format)
		return nil
	}
	fmt.Print(buf.String())
	return nil
}
