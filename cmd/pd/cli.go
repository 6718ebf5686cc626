package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

type cliOptions struct {
	Command    string
	Args       []string
	PersonaDir string
	MinScore   float64
	FallbackID string
	SessionID  string
	JSON       bool
}

func parseCLIArgs(args []string) (cliOptions, error) {
	opts := cliOptions{MinScore: -1}
	fs := flag.NewFlagSet("pd", flag.ContinueOnError)
	var out bytes.Buffer
	fs.SetOutput(&out)

	fs.StringVar(&opts.PersonaDir, "dir", "", "Persona document directory (overrides PD_PERSONA_DIR).")
	fs.Float64Var(&opts.MinScore, "min-score", -1, "Minimum selection score (overrides PD_MIN_SCORE).")
	fs.StringVar(&opts.FallbackID, "fallback", "", "Persona id to use when nothing matches (overrides PD_DEFAULT_PERSONA).")
	fs.StringVar(&opts.SessionID, "session", "", "Transcript session id for dispatch.")
	fs.StringVar(&opts.SessionID, "s", "", "Shorthand for --session.")
	fs.BoolVar(&opts.JSON, "json", false, "Emit machine-readable JSON output.")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("%w\n%s", err, out.String())
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return cliOptions{}, fmt.Errorf("usage: pd [flags] <list|show|select|dispatch> [args]")
	}
	opts.Command = rest[0]
	opts.Args = rest[1:]
	return opts, nil
}

// resolveIntent joins positional arguments into an intent, falling back to
// piped stdin when none were given.
func resolveIntent(args []string, in io.Reader, stdinTTY bool) (string, error) {
	intent := strings.TrimSpace(strings.Join(args, " "))
	if intent != "" {
		return intent, nil
	}
	if stdinTTY {
		return "", fmt.Errorf("an intent is required as arguments or piped stdin")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	intent = strings.TrimSpace(string(data))
	if intent == "" {
		return "", fmt.Errorf("received empty intent")
	}
	return intent, nil
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return true
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
