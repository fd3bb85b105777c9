package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/sysutil"
)

// conversation is the part of services.Router the console drives.
type conversation interface {
	Chat(ctx context.Context, userID, message string) (domain.Envelope, error)
	Handle(ctx context.Context, userID, message string) (domain.Envelope, error)
}

type chatOptions struct {
	userID string
	plain  bool
}

func newChatCommand(o *rootOptions) *cobra.Command {
	co := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Don Confiado from the terminal",
		Long: `Runs the conversation router in-process and reads one message per line.
Registrations are persisted exactly as through the API. Type "salir" or
press Ctrl-D to leave.

Example:
  donconfiado chat --user tienda-42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Logs go to stderr so they do not interleave with the conversation.
			cfg, err := o.load(os.Stderr)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, o.version)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.router, co.userID, !co.plain)
		},
	}
	cmd.Flags().StringVarP(&co.userID, "user", "u", sysutil.FirstNonEmpty(os.Getenv("USER"), "cli"), "conversation owner")
	cmd.Flags().BoolVar(&co.plain, "plain", false, "skip intent classification (general chat only)")
	return cmd
}

func isQuit(line string) bool {
	switch strings.ToLower(line) {
	case "salir", "exit", "quit":
		return true
	}
	return false
}

// runREPL reads messages from in until EOF or a quit word and prints each
// answer to out. Errors from the router are printed and the loop goes on.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, conv conversation, userID string, routed bool) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	prompt := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(out, "Don Confiado (%s). Escribe \"salir\" para terminar.\n", color.CyanString(userID))
	for {
		fmt.Fprint(out, prompt("tú> "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if isQuit(line) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			env domain.Envelope
			err error
		)
		if routed {
			env, err = conv.Handle(ctx, userID, line)
		} else {
			env, err = conv.Chat(ctx, userID, line)
		}
		if err != nil {
			fmt.Fprintln(out, color.RedString("error: %v", err))
			continue
		}
		printEnvelope(out, env)
	}
}

func printEnvelope(out io.Writer, env domain.Envelope) {
	fmt.Fprintf(out, "%s %s\n", color.GreenString("don confiado>"), env.Reply)

	var tags []string
	if env.UserIntention != "" {
		tags = append(tags, "intent="+string(env.UserIntention))
	}
	if env.Status != "" {
		tags = append(tags, "status="+string(env.Status))
	}
	if len(tags) > 0 {
		fmt.Fprintln(out, color.HiBlackString("  [%s]", strings.Join(tags, " ")))
	}
	if len(env.MissingFields) > 0 {
		fmt.Fprintln(out, color.YellowString("  faltan: %s", strings.Join(env.MissingFields, ", ")))
	}
	if env.Error != "" {
		fmt.Fprintln(out, color.RedString("  error: %s", env.Error))
	}
	for _, row := range env.Data {
		if id, ok := row["id"]; ok {
			fmt.Fprintln(out, color.GreenString("  registro id=%v", id))
		}
	}
}
