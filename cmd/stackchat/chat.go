package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/harunnryd/stackchat/internal/config"
	"github.com/harunnryd/stackchat/internal/conversation"
	chatErrors "github.com/harunnryd/stackchat/internal/errors"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the backend in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		opts, err := conversation.OptionsFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("failed to build backend: %w", err)
		}

		model, _ := cmd.Flags().GetString("model")
		temperature := cfg.Chat.Temperature
		if cmd.Flags().Changed("temperature") {
			temperature, _ = cmd.Flags().GetFloat64("temperature")
			if err := config.ValidateTemperature(temperature); err != nil {
				return err
			}
		}
		details := cfg.Chat.ShowTurnDetails
		if cmd.Flags().Changed("details") {
			details, _ = cmd.Flags().GetBool("details")
		}

		signals := NewSignalHandler(cmd.Context())
		signals.Start()
		defer signals.Stop()

		repl := NewREPL(conversation.New("", opts), cmd.InOrStdin(), cmd.OutOrStdout())
		repl.model = model
		repl.temperature = temperature
		repl.showDetails = details
		return repl.Start(signals.Context())
	},
}

// REPL drives one conversation from a line-oriented reader.
type REPL struct {
	conv        *conversation.Conversation
	reader      *bufio.Reader
	out         io.Writer
	formatter   *TableFormatter
	model       string
	temperature float64
	showDetails bool
}

func NewREPL(conv *conversation.Conversation, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		conv:        conv,
		reader:      bufio.NewReader(in),
		out:         out,
		formatter:   NewTableFormatter(),
		temperature: config.DefaultChatTemperature,
	}
}

func (r *REPL) Start(ctx context.Context) error {
	if r.model == "" {
		models := r.conv.Models(ctx)
		if len(models) == 0 {
			return chatErrors.Connection("no models available from the backend")
		}
		r.model = models[0]
	}

	fmt.Fprintf(r.out, "stackchat (%s mode, model %s)\n", r.conv.Mode(), r.model)
	fmt.Fprintln(r.out, "Commands: /models [name], /refresh, /clear, /reset, /details, /exit")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := r.readLine(ctx); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (r *REPL) readLine(ctx context.Context) error {
	fmt.Fprint(r.out, "> ")
	text, err := r.reader.ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(text) == "") {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		return r.command(ctx, text)
	}

	reply, sendErr := r.conv.Send(ctx, text, r.model, r.temperature)
	if sendErr != nil {
		fmt.Fprintln(r.out, chatErrors.UserMessage(sendErr))
		return nil
	}

	fmt.Fprintln(r.out, reply.Content)
	if r.showDetails && reply.TurnDetails != nil {
		fmt.Fprintln(r.out, r.formatter.FormatReasoning(reply.TurnDetails.ReasoningSteps))
		fmt.Fprintln(r.out, r.formatter.FormatToolUsage(reply.TurnDetails.ToolUsage))
	}
	return nil
}

func (r *REPL) command(ctx context.Context, text string) error {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/exit":
		return io.EOF
	case "/clear":
		if err := r.conv.Clear(); err != nil {
			fmt.Fprintln(r.out, chatErrors.UserMessage(err))
			return nil
		}
		fmt.Fprintln(r.out, "Chat cleared.")
	case "/reset":
		if err := r.conv.ResetAgent(); err != nil {
			fmt.Fprintln(r.out, chatErrors.UserMessage(err))
			return nil
		}
		fmt.Fprintln(r.out, "Agent session reset.")
	case "/details":
		r.showDetails = !r.showDetails
		fmt.Fprintf(r.out, "Turn details: %t\n", r.showDetails)
	case "/models":
		if len(fields) > 1 {
			r.model = fields[1]
			fmt.Fprintf(r.out, "Model set to %s\n", r.model)
			return nil
		}
		fmt.Fprintln(r.out, r.formatter.FormatModels(r.conv.Models(ctx), r.model))
	case "/refresh":
		r.conv.RefreshModels()
		fmt.Fprintln(r.out, r.formatter.FormatModels(r.conv.Models(ctx), r.model))
	default:
		fmt.Fprintf(r.out, "Unknown command %s\n", fields[0])
	}
	return nil
}

func init() {
	chatCmd.Flags().StringP("model", "m", "", "model identifier (default is the first listed model)")
	chatCmd.Flags().Float64P("temperature", "t", config.DefaultChatTemperature, "sampling temperature (inference mode)")
	chatCmd.Flags().Bool("details", config.DefaultChatShowTurnDetails, "print reasoning steps and tool usage")
	rootCmd.AddCommand(chatCmd)
}
