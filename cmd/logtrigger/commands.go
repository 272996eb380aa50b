package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"logtrigger/internal/config"
	"logtrigger/internal/logger"
	"logtrigger/internal/rules"
	"logtrigger/pkg/logging"
)

type ruleDocument struct {
	Name        string               `yaml:"name"`
	Pattern     string               `yaml:"pattern"`
	Description string               `yaml:"description,omitempty"`
	Enabled     bool                 `yaml:"enabled"`
	Active      bool                 `yaml:"active"`
	CooldownMs  int                  `yaml:"cooldown_ms,omitempty"`
	Error       string               `yaml:"error,omitempty"`
	Steps       []rules.StepTemplate `yaml:"steps,omitempty"`
}

type validateDocument struct {
	Source   string         `yaml:"source"`
	Executor string         `yaml:"executor"`
	Notify   string         `yaml:"notify"`
	Parallel bool           `yaml:"parallel"`
	Rules    []ruleDocument `yaml:"rules"`
	Problems []string       `yaml:"problems,omitempty"`
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and print the normalized rule table",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog(cmd.ErrOrStderr())

			path, err := resolveConfigFile(earlyLog)
			if err != nil {
				return err
			}

			cfg, err := config.Load(path)
			if err != nil {
				earlyLog.Error("Invalid config: %v", err)
				return err
			}

			problems, err := writeValidation(cmd.OutOrStdout(), cfg)
			if err != nil {
				return err
			}
			if problems > 0 {
				return fmt.Errorf("%d rule problem(s) found", problems)
			}
			return nil
		},
	}
}

// writeValidation renders cfg as YAML and returns the number of rule
// problems found.
func writeValidation(w io.Writer, cfg *config.Config) (int, error) {
	table, buildErr := rules.BuildTable(cfg.Definitions())

	doc := validateDocument{
		Source:   cfg.Source.Type,
		Executor: cfg.Executor.Mode,
		Notify:   cfg.Notify.Transport,
		Parallel: cfg.Pipeline.Parallel,
	}
	for _, r := range table.Rules() {
		doc.Rules = append(doc.Rules, ruleDocument{
			Name:        r.Name,
			Pattern:     r.Pattern,
			Description: r.Description,
			Enabled:     r.Enabled,
			Active:      r.Enabled && !r.Inert(),
			CooldownMs:  r.CooldownMs,
			Error:       r.Err,
			Steps:       table.Mapping(r.Name),
		})
	}
	if buildErr != nil {
		doc.Problems = splitProblems(buildErr)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return len(doc.Problems), nil
}

func splitProblems(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match [line...]",
		Short: "Evaluate lines against the rules without running any action",
		Long:  "Evaluates each argument, or each line of stdin when no argument is given, and prints the resulting firings. Cooldowns are not applied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog(cmd.ErrOrStderr())

			path, err := resolveConfigFile(earlyLog)
			if err != nil {
				return err
			}

			cfg, err := config.Load(path)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			engine := rules.NewEngine(logger.NopLogger())
			if err := engine.Reload(cfg.Definitions()); err != nil {
				earlyLog.Warn("Some rules are inert: %v", err)
			}

			var in io.Reader
			if len(args) == 0 {
				in = cmd.InOrStdin()
			}
			return writeMatches(cmd.OutOrStdout(), engine, args, in)
		},
	}
}

func writeMatches(w io.Writer, engine *rules.Engine, lines []string, in io.Reader) error {
	if in != nil {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}

	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		firings := engine.Evaluate(line)
		if len(firings) == 0 {
			fmt.Fprintf(w, "%d: no match\n", i+1)
			continue
		}
		for _, f := range firings {
			fmt.Fprintf(w, "%d: %s capture=%q\n", i+1, f.RuleName, f.Capture)
			for _, s := range f.Steps {
				mods := ""
				if s.Modifiers != 0 {
					mods = " [" + s.Modifiers.String() + "]"
				}
				fmt.Fprintf(w, "   %s %q%s\n", s.Type, s.ResolvedValue, mods)
			}
		}
	}
	return nil
}
