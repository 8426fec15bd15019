package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adasdevman/alya-sub001/dispatch"
	"github.com/adasdevman/alya-sub001/fallback"
	"github.com/adasdevman/alya-sub001/internal/bus"
	"github.com/adasdevman/alya-sub001/internal/logutil"
	"github.com/adasdevman/alya-sub001/internal/slackclient"
	"github.com/adasdevman/alya-sub001/interpret"
	"github.com/adasdevman/alya-sub001/llm"
	"github.com/adasdevman/alya-sub001/providers/openai"
)

func newConsoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive REPL: type French instructions, get actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			interp, err := interpreterFromViper(logger)
			if err != nil {
				return err
			}

			var fb *fallback.Interpreter
			if viper.GetBool("fallback.enabled") {
				client, err := llmClientFromViper()
				if err != nil {
					return err
				}
				lex, err := lexiconFromViper()
				if err != nil {
					return err
				}
				fb = fallback.New(client, viper.GetString("fallback.model"), lex)
			}

			router := routerFromViper(logger)

			ctx := cmd.Context()
			interp.StartSweeper(ctx, time.Minute)

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "alya console — tape une instruction, Ctrl-D pour quitter")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 64*1024), 64*1024)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				now := time.Now()
				msg, err := bus.NewInbound(bus.ChannelWeb, "console", line, now)
				if err != nil {
					_, _ = fmt.Fprintf(out, "! %v\n", err)
					continue
				}
				outcome := interp.Interpret(msg.ChatKey, msg.Text, now)
				printOutcome(cmd, outcome)

				if outcome.Kind == interpret.OutcomeActionReady && router != nil {
					if err := router.Dispatch(ctx, *outcome.Action); err != nil {
						_, _ = fmt.Fprintf(out, "! %v\n", err)
					}
				}

				if fb != nil && outcome.Kind == interpret.OutcomeIgnored && outcome.Reason == interpret.ReasonNoIntent {
					guess, err := fb.Infer(ctx, msg.Text)
					if err != nil {
						logger.Debug("fallback declined", "error", err)
						continue
					}
					printAction(cmd, guess.Action(msg.ChatKey, now))
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().Bool("fallback", false, "Ask the configured LLM when an instruction matches no intent.")
	_ = viper.BindPFlag("fallback.enabled", cmd.Flags().Lookup("fallback"))
	cmd.Flags().Bool("dispatch", false, "Execute ready actions on their platform (requires slack.bot_token for Slack).")
	_ = viper.BindPFlag("dispatch.enabled", cmd.Flags().Lookup("dispatch"))
	return cmd
}

// routerFromViper wires the adapters the config provides credentials
// for. Returns nil when dispatch is off; actions are then only printed.
func routerFromViper(logger *slog.Logger) *dispatch.Router {
	if !viper.GetBool("dispatch.enabled") {
		return nil
	}
	router := dispatch.NewRouter(logger)
	if token := strings.TrimSpace(viper.GetString("slack.bot_token")); token != "" {
		client := slackclient.New(nil, viper.GetString("slack.base_url"), token)
		router.Register(dispatch.NewSlackAdapter(client))
	}
	return router
}

func interpreterFromViper(logger *slog.Logger) (*interpret.Interpreter, error) {
	lex, err := lexiconFromViper()
	if err != nil {
		return nil, err
	}
	opts := interpret.Options{
		Lexicon:  lex,
		MaxTurns: viper.GetInt("interpreter.max_turns"),
		Logger:   logger,
	}
	if raw := strings.TrimSpace(viper.GetString("interpreter.idle_ttl")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid interpreter.idle_ttl: %w", err)
		}
		opts.IdleTTL = ttl
	}
	return interpret.New(opts)
}

// lexiconFromViper returns nil when no lexicon file is configured, which
// makes the interpreter fall back to the built-in French lexicon.
func lexiconFromViper() (*interpret.Lexicon, error) {
	path := strings.TrimSpace(viper.GetString("lexicon"))
	if path == "" {
		return nil, nil
	}
	return interpret.Load(path)
}

func llmClientFromViper() (llm.Client, error) {
	apiKey := strings.TrimSpace(viper.GetString("llm.api_key"))
	if apiKey == "" {
		return nil, fmt.Errorf("llm.api_key is required when fallback is enabled")
	}
	return openai.New(viper.GetString("llm.base_url"), apiKey), nil
}

func printOutcome(cmd *cobra.Command, o interpret.Outcome) {
	out := cmd.OutOrStdout()
	switch o.Kind {
	case interpret.OutcomeActionReady:
		printAction(cmd, *o.Action)
	case interpret.OutcomeNeedSlot:
		_, _ = fmt.Fprintf(out, "? %s\n", o.Prompt)
	case interpret.OutcomeCancelled:
		_, _ = fmt.Fprintln(out, "— commande annulée")
	case interpret.OutcomeIgnored:
		_, _ = fmt.Fprintf(out, "— ignoré (%s)\n", o.Reason)
	}
}

func printAction(cmd *cobra.Command, a interpret.Action) {
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "! %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
