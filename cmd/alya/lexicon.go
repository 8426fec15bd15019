package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adasdevman/alya-sub001/interpret"
)

func newLexiconCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lexicon",
		Short: "Inspect and validate lexicon files",
	}
	cmd.AddCommand(newLexiconValidateCmd())
	cmd.AddCommand(newLexiconShowCmd())
	return cmd
}

func newLexiconValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a lexicon YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			lex, err := interpret.Load(path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d rules, %d schemas)\n", path, len(lex.Rules), len(lex.Schemas))
			return nil
		},
	}
}

func newLexiconShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the built-in French lexicon as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := yaml.Marshal(interpret.DefaultLexicon())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}
