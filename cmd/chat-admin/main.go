// ABOUTME: Admin CLI for a running chat-data server
// ABOUTME: Drives every account, channel, message, and config RPC over gRPC

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/chat-data/internal/channels"
	"github.com/2389/chat-data/internal/rpc"
	"github.com/2389/chat-data/internal/secrets"
	"github.com/2389/chat-data/internal/snowflake"
)

const banner = `
       _           _                 _           _
   ___| |__   __ _| |_       __ _  __| |_ __ ___ (_)_ __
  / __| '_ \ / _' | __|____ / _' |/ _' | '_ ' _ \| | '_ \
 | (__| | | | (_| | ||_____| (_| | (_| | | | | | | | | | |
  \___|_| |_|\__,_|\__|     \__,_|\__,_|_| |_| |_|_|_| |_|
`

const callTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	flags, args := parseArgs(os.Args[2:])
	addr := resolveAddr(flags["addr"])

	epoch, err := resolveEpoch(os.Getenv("CHAT_IDS_EPOCH"))
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	// id needs no connection.
	if cmd == "id" {
		err = cmdID(os.Stdout, epoch, args)
	} else {
		err = run(ctx, addr, epoch, cmd, flags, args)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, epoch time.Time, cmd string, flags map[string]string, args []string) error {
	client, err := rpc.Dial(addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer client.Close()

	a := &admin{client: client, out: os.Stdout, in: os.Stdin, epoch: epoch}
	return a.dispatch(ctx, cmd, flags, args)
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: chat-admin <command> [args] [--addr host:port]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  accounts create <username>        Register an account (password prompted)")
	fmt.Println("  accounts login <username>         Check credentials and show the account")
	fmt.Println("  token <username>                  Issue an access token")
	fmt.Println("  verify <token>                    Resolve a token to its account")
	fmt.Println("  channels [list] [--id N]          List channels")
	fmt.Println("  channels create --name N --owner ID [--description D]")
	fmt.Println("  send --channel ID --author ID <text>")
	fmt.Println("  history --channel ID [--before ID] [--after ID] [--limit N] [--newest]")
	fmt.Println("  tail --channel ID                 Stream new messages until interrupted")
	fmt.Println("  secret                            Show the shared secret key")
	fmt.Println("  id <id>...                        Decode snowflake ids (offline)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  CHAT_ADDR                Server gRPC address (default: localhost:50051)")
	fmt.Println("  CHAT_PASSWORD            Password for accounts/token commands (skips the prompt)")
	fmt.Println("  CHAT_IDS_EPOCH           Id epoch, RFC3339 (default: 2024-01-01T00:00:00Z)")
	fmt.Println()
}

// resolveAddr picks the server address.
// Priority: --addr > CHAT_ADDR > CHAT_SERVER_GRPC_ADDR > localhost:50051
func resolveAddr(flag string) string {
	if flag != "" {
		return flag
	}
	if addr := os.Getenv("CHAT_ADDR"); addr != "" {
		return addr
	}
	if addr := os.Getenv("CHAT_SERVER_GRPC_ADDR"); addr != "" {
		return addr
	}
	return "localhost:50051"
}

func resolveEpoch(raw string) (time.Time, error) {
	if raw == "" {
		return snowflake.DefaultEpoch, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid CHAT_IDS_EPOCH %q: %w", raw, err)
	}
	return t, nil
}

// parseArgs splits --key value (or --key=value) flags from positional args.
// A flag followed by another flag or nothing is recorded as "true".
func parseArgs(args []string) (map[string]string, []string) {
	flags := make(map[string]string)
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") || arg == "--" {
			positional = append(positional, arg)
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(name, "="); ok {
			flags[k] = v
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			flags[name] = args[i+1]
			i++
			continue
		}
		flags[name] = "true"
	}
	return flags, positional
}

func int64Flag(flags map[string]string, name string) (*int64, error) {
	raw, ok := flags[name]
	if !ok {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not an id", name, raw)
	}
	return &v, nil
}

func requiredInt64(flags map[string]string, name string) (int64, error) {
	v, err := int64Flag(flags, name)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("--%s is required", name)
	}
	return *v, nil
}

type admin struct {
	client *rpc.Client
	out    io.Writer
	in     io.Reader
	epoch  time.Time
}

func (a *admin) dispatch(ctx context.Context, cmd string, flags map[string]string, args []string) error {
	switch cmd {
	case "accounts", "account":
		return a.cmdAccounts(ctx, flags, args)
	case "token":
		return a.cmdToken(ctx, flags, args)
	case "verify":
		return a.cmdVerify(ctx, args)
	case "channels", "channel":
		return a.cmdChannels(ctx, flags, args)
	case "send":
		return a.cmdSend(ctx, flags, args)
	case "history":
		return a.cmdHistory(ctx, flags)
	case "tail":
		return a.cmdTail(ctx, flags)
	case "secret":
		return a.cmdSecret(ctx)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *admin) password(flags map[string]string) string {
	if p := flags["password"]; p != "" {
		return p
	}
	if p := os.Getenv("CHAT_PASSWORD"); p != "" {
		return p
	}
	fmt.Fprint(a.out, "Password: ")
	line, _ := bufio.NewReader(a.in).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func (a *admin) cmdAccounts(ctx context.Context, flags map[string]string, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: accounts create|login <username>")
	}
	subcmd, username := args[0], args[1]
	pw := a.password(flags)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var (
		user *rpc.User
		err  error
	)
	switch subcmd {
	case "create", "add":
		user, err = a.client.CreateAccount(ctx, username, pw)
		if err != nil {
			return fmt.Errorf("CreateAccount: %w", err)
		}
		color.New(color.FgGreen).Fprintf(a.out, "  ✓ Account created\n")
	case "login":
		user, err = a.client.Login(ctx, username, pw)
		if err != nil {
			return fmt.Errorf("Login: %w", err)
		}
		color.New(color.FgGreen).Fprintf(a.out, "  ✓ Credentials accepted\n")
	default:
		return fmt.Errorf("unknown accounts subcommand: %s (use create, login)", subcmd)
	}

	a.printUser(user)
	return nil
}

func (a *admin) printUser(u *rpc.User) {
	fmt.Fprintf(a.out, "  ID:          %d\n", u.ID)
	fmt.Fprintf(a.out, "  Username:    %s\n", u.Username)
	fmt.Fprintf(a.out, "  Permissions: %d\n", u.Permissions)
	fmt.Fprintf(a.out, "  Created:     %s\n", a.idTime(u.ID))
}

func (a *admin) cmdToken(ctx context.Context, flags map[string]string, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: token <username>")
	}
	pw := a.password(flags)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	tok, err := a.client.Token(ctx, args[0], pw)
	if err != nil {
		return fmt.Errorf("Token: %w", err)
	}

	fmt.Fprintln(a.out, tok.AccessToken)
	color.New(color.FgHiBlack).Fprintf(a.out, "  %s, expires %s\n", tok.TokenType, tok.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func (a *admin) cmdVerify(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: verify <token>")
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	user, err := a.client.Verify(ctx, args[0])
	if err != nil {
		return fmt.Errorf("Verify: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.out, "  ✓ Token valid\n")
	a.printUser(user)
	return nil
}

func (a *admin) cmdChannels(ctx context.Context, flags map[string]string, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	switch subcmd {
	case "list", "ls":
		id, err := int64Flag(flags, "id")
		if err != nil {
			return err
		}
		list, err := a.client.ListChannels(ctx, id)
		if err != nil {
			return fmt.Errorf("ListChannels: %w", err)
		}
		a.printChannels(list)
		return nil
	case "create", "add":
		owner, err := requiredInt64(flags, "owner")
		if err != nil {
			return err
		}
		name := flags["name"]
		if name == "" {
			return errors.New("--name is required")
		}
		ch, err := a.client.CreateChannel(ctx, name, flags["description"], owner)
		if err != nil {
			return fmt.Errorf("CreateChannel: %w", err)
		}
		color.New(color.FgGreen).Fprintf(a.out, "  ✓ Channel created\n")
		a.printChannels([]*channels.ChannelView{ch})
		return nil
	default:
		return fmt.Errorf("unknown channels subcommand: %s (use list, create)", subcmd)
	}
}

func (a *admin) printChannels(list []*channels.ChannelView) {
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Channels")
	cyan.Fprintln(a.out, "  --------")

	if len(list) == 0 {
		fmt.Fprintln(a.out, "  (no channels)")
		fmt.Fprintln(a.out)
		return
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tOWNER\tCREATED\tDESCRIPTION")
	fmt.Fprintln(w, "  --\t----\t-----\t-------\t-----------")
	for _, ch := range list {
		owner := "-"
		if ch.Owner != nil {
			owner = ch.Owner.Username
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", ch.ID, ch.Name, owner, a.idTime(ch.ID), truncate(ch.Description, 40))
	}
	w.Flush()
	fmt.Fprintln(a.out)
}

func (a *admin) cmdSend(ctx context.Context, flags map[string]string, args []string) error {
	channelID, err := requiredInt64(flags, "channel")
	if err != nil {
		return err
	}
	authorID, err := requiredInt64(flags, "author")
	if err != nil {
		return err
	}
	content := strings.Join(args, " ")
	if content == "" {
		return errors.New("message text is required")
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msg, err := a.client.CreateMessage(ctx, content, authorID, channelID)
	if err != nil {
		return fmt.Errorf("CreateMessage: %w", err)
	}
	color.New(color.FgGreen).Fprintf(a.out, "  ✓ Sent %d\n", msg.ID)
	return nil
}

func (a *admin) cmdHistory(ctx context.Context, flags map[string]string) error {
	channelID, err := requiredInt64(flags, "channel")
	if err != nil {
		return err
	}
	req := &rpc.HistoryRequest{ChannelID: channelID, Newest: flags["newest"] == "true"}
	if req.BeforeID, err = int64Flag(flags, "before"); err != nil {
		return err
	}
	if req.AfterID, err = int64Flag(flags, "after"); err != nil {
		return err
	}
	if raw, ok := flags["limit"]; ok {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return fmt.Errorf("--limit: %q is not a number", raw)
		}
		req.Limit = int32(n)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msgs, err := a.client.History(ctx, req)
	if err != nil {
		return fmt.Errorf("History: %w", err)
	}

	if len(msgs) == 0 {
		fmt.Fprintln(a.out, "  (no messages)")
		return nil
	}
	for _, m := range msgs {
		a.printMessage(m)
	}
	return nil
}

func (a *admin) printMessage(m *channels.MessageView) {
	author := "?"
	if m.Author != nil {
		author = m.Author.Username
	}
	color.New(color.FgHiBlack).Fprintf(a.out, "%s ", a.idTime(m.ID).Local().Format("Jan 02 15:04:05"))
	color.New(color.FgCyan).Fprintf(a.out, "%s", author)
	fmt.Fprintf(a.out, ": %s", m.Content)
	color.New(color.FgHiBlack).Fprintf(a.out, " (%d)\n", m.ID)
}

// cmdTail streams messages until the context ends or the server closes the stream.
func (a *admin) cmdTail(ctx context.Context, flags map[string]string) error {
	channelID, err := requiredInt64(flags, "channel")
	if err != nil {
		return err
	}

	sub, err := a.client.Subscribe(ctx, channelID)
	if err != nil {
		return fmt.Errorf("Subscribe: %w", err)
	}
	color.New(color.FgHiBlack).Fprintf(a.out, "  tailing channel %d, ctrl-c to stop\n", channelID)

	for {
		m, err := sub.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("Subscribe: %w", err)
		}
		a.printMessage(m)
	}
}

func (a *admin) cmdSecret(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	v, err := a.client.GetStringConfig(ctx, secrets.SecretKey)
	if err != nil {
		return fmt.Errorf("GetStringConfig: %w", err)
	}
	fmt.Fprintln(a.out, v)
	return nil
}

func (a *admin) idTime(id int64) time.Time {
	return snowflake.Time(id, a.epoch)
}

// cmdID decodes ids without contacting the server.
func cmdID(out io.Writer, epoch time.Time, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: id <id>...")
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tCREATED (UTC)\tSEQ")
	for _, raw := range args {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not an id", raw)
		}
		fmt.Fprintf(w, "  %d\t%s\t%d\n", id, snowflake.Time(id, epoch).UTC().Format("2006-01-02 15:04:05.000"), snowflake.Sequence(id))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
