// Command pd loads persona documents, selects one for a free-text intent,
// and optionally dispatches the intent to the Anthropic Messages API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mpoloni/persona-deck/dispatch"
	provider "github.com/mpoloni/persona-deck/dispatch/anthropic"
	"github.com/mpoloni/persona-deck/persona"
	"github.com/mpoloni/persona-deck/selector"

	"github.com/mpoloni/persona-deck/cmd/pd/config"
	"github.com/mpoloni/persona-deck/cmd/pd/persist"
	"github.com/mpoloni/persona-deck/cmd/pd/sanitize"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pd:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	opts, err := parseCLIArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.PersonaDir != "" {
		cfg.PersonaDir = opts.PersonaDir
	}
	if opts.MinScore >= 0 {
		cfg.MinScore = opts.MinScore
	}
	if opts.FallbackID != "" {
		cfg.FallbackID = opts.FallbackID
	}
	if opts.SessionID != "" {
		cfg.SessionID = opts.SessionID
	}

	ctx := context.Background()
	reg, err := persona.Load(ctx, persona.FileSource{Root: cfg.PersonaDir})
	if err != nil {
		return err
	}

	switch opts.Command {
	case "list":
		return runList(reg, opts.JSON, out)
	case "show":
		if len(opts.Args) != 1 {
			return errors.New("usage: pd show <persona-id>")
		}
		return runShow(reg, opts.Args[0], opts.JSON, out)
	case "select":
		intent, err := resolveIntent(opts.Args, os.Stdin, stdinIsTTY())
		if err != nil {
			return err
		}
		return runSelect(ctx, reg, cfg, intent, opts.JSON, out)
	case "dispatch":
		intent, err := resolveIntent(opts.Args, os.Stdin, stdinIsTTY())
		if err != nil {
			return err
		}
		return runDispatch(ctx, reg, cfg, intent, opts.JSON, out)
	default:
		return fmt.Errorf("unknown command %q (expected list, show, select, or dispatch)", opts.Command)
	}
}

func runList(reg *persona.Registry, asJSON bool, out io.Writer) error {
	records := reg.List()
	if asJSON {
		return writeJSON(out, records)
	}
	for _, rec := range records {
		line := rec.ID
		if rec.Name != "" && rec.Name != rec.ID {
			line += "\t" + rec.Name
		}
		if rec.ModelHint != "" {
			line += "\t(hint: " + rec.ModelHint + ")"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runShow(reg *persona.Registry, id string, asJSON bool, out io.Writer) error {
	rec, err := reg.Get(id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, rec)
	}
	fmt.Fprintln(out, "id:", rec.ID)
	if rec.Name != "" {
		fmt.Fprintln(out, "name:", rec.Name)
	}
	if rec.ModelHint != "" {
		fmt.Fprintln(out, "model_hint:", rec.ModelHint)
	}
	if rec.Source != "" {
		fmt.Fprintln(out, "source:", rec.Source)
	}
	fmt.Fprintln(out, "trigger:", rec.TriggerDescription)
	fmt.Fprintln(out)
	fmt.Fprintln(out, rec.Instructions)
	return nil
}

func runSelect(ctx context.Context, reg *persona.Registry, cfg config.Config, intent string, asJSON bool, out io.Writer) error {
	sel := selector.Keyword{MinScore: cfg.MinScore}
	match, ok, err := sel.Select(ctx, intent, reg)
	if err != nil {
		return err
	}
	if !ok {
		if cfg.FallbackID == "" {
			return dispatch.ErrNoMatch
		}
		rec, err := reg.Get(cfg.FallbackID)
		if err != nil {
			return err
		}
		match = selector.Match{Record: rec}
	}
	if asJSON {
		return writeJSON(out, map[string]any{
			"persona_id": match.Record.ID,
			"score":      match.Score,
			"fallback":   !ok,
		})
	}
	if !ok {
		fmt.Fprintf(out, "%s (fallback)\n", match.Record.ID)
		return nil
	}
	fmt.Fprintf(out, "%s (score %.2f)\n", match.Record.ID, match.Score)
	return nil
}

func runDispatch(ctx context.Context, reg *persona.Registry, cfg config.Config, intent string, asJSON bool, out io.Writer) error {
	if err := cfg.RequireAnthropic(); err != nil {
		return err
	}

	providerCfg := provider.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	}
	if cfg.Temperature > 0 {
		temp := cfg.Temperature
		providerCfg.Temperature = &temp
	}
	invoker, err := provider.New(providerCfg)
	if err != nil {
		return err
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Registry:   reg,
		Selector:   selector.Keyword{MinScore: cfg.MinScore},
		Invoker:    invoker,
		FallbackID: cfg.FallbackID,
		Logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
	if err != nil {
		return err
	}

	result, err := dispatcher.Dispatch(ctx, intent)
	if err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	store, err := persist.NewStore(workDir, cfg.SessionID)
	if err != nil {
		return err
	}
	if err := store.Append(ctx, persist.Entry{
		Time:       time.Now().UTC(),
		RequestID:  result.RequestID,
		Intent:     intent,
		PersonaID:  result.Persona.ID,
		Score:      result.Score,
		Reply:      result.Reply.Text,
		StopReason: result.Reply.StopReason,
		Tokens:     result.Reply.Usage.Total,
	}); err != nil {
		return err
	}

	if asJSON {
		return writeJSON(out, map[string]any{
			"request_id": result.RequestID,
			"persona_id": result.Persona.ID,
			"score":      result.Score,
			"fallback":   result.Fallback,
			"reply":      result.Reply.Text,
		})
	}
	fmt.Fprintln(out, sanitize.Text(result.Reply.Text))
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
