package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nestcore/internal/core"
)

// ExportCmd implements the 'export' command.
type ExportCmd struct {
	Print bool `short:"p" help:"Also print the archive document to stdout"`
}

func (e *ExportCmd) Run(g *Global, root *CLI) (err error) {
	ctx := context.Background()
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, g.Logger, appOptions{})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close(ctx)) }()

	obj, err := a.service.Archive(ctx, a.archives)
	if err != nil {
		return err
	}
	fmt.Fprintln(g.Stdout, obj.Key)
	if !e.Print {
		return nil
	}
	doc, err := core.ReadArchive(ctx, a.archives, obj.Key)
	if err != nil {
		return fmt.Errorf("read back archive: %w", err)
	}
	enc := json.NewEncoder(g.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

