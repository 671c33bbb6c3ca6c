package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"nestcore/pkg/domain"
)

// InspectCmd implements the 'inspect' command. Stored nests are loaded the
// same way the server loads them, so capacity changes in the block
// configuration are reconciled and written back.
type InspectCmd struct {
	At   string `help:"Describe the nest at x,y,z instead of listing all nests" placeholder:"X,Y,Z"`
	Lang string `help:"Language of the nest description" default:"en"`
	JSON bool   `name:"json" help:"Print JSON instead of text"`
}

func (i *InspectCmd) Run(g *Global, root *CLI) (err error) {
	var pos domain.BlockPos
	if i.At != "" {
		if pos, err = domain.ParseBlockPos(i.At); err != nil {
			return usageError{msg: err.Error()}
		}
	}
	tag, err := language.Parse(i.Lang)
	if err != nil {
		return usageError{msg: fmt.Sprintf("invalid language %q", i.Lang)}
	}

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

	if _, err := a.service.LoadNestBoxes(ctx); err != nil {
		return fmt.Errorf("load nests: %w", err)
	}

	enc := json.NewEncoder(g.Stdout)
	enc.SetIndent("", "  ")
	if i.At == "" {
		views := a.service.Nests()
		if i.JSON {
			return enc.Encode(views)
		}
		if len(views) == 0 {
			fmt.Fprintln(g.Stdout, "no nests stored")
			return nil
		}
		for _, v := range views {
			occupier := v.Occupier
			if occupier == "" {
				occupier = "-"
			}
			fmt.Fprintf(g.Stdout, "%s\t%s\t(%s)\teggs %d/%d\tfertile %d\tremaining %.2f days\toccupier %s\n",
				v.ID, v.BlockCode, v.Position, v.Eggs, v.Capacity, v.Fertile, v.TimeToIncubate, occupier)
		}
		return nil
	}

	view, lines, err := a.service.Describe(pos, tag)
	if err != nil {
		return err
	}
	if i.JSON {
		return enc.Encode(struct {
			Nest any      `json:"nest"`
			Info []string `json:"info"`
		}{Nest: view, Info: lines})
	}
	fmt.Fprintf(g.Stdout, "%s %s at %s\n", view.BlockCode, view.ID, view.Position)
	for _, line := range lines {
		fmt.Fprintln(g.Stdout, line)
	}
	return nil
}
