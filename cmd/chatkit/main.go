package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/coachpal/chatkit/internal/auth"
	"github.com/coachpal/chatkit/internal/bus"
	"github.com/coachpal/chatkit/internal/config"
	"github.com/coachpal/chatkit/internal/rest"
	"github.com/coachpal/chatkit/internal/send"
	"github.com/coachpal/chatkit/internal/session"
	"github.com/coachpal/chatkit/internal/store"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	convFlag := flag.String("conv", "", "conversation ID")
	toFlag := flag.String("to", "", "peer user ID (resolves the direct conversation)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	limitFlag := flag.Int("limit", 50, "page size for history and search")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot load config: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	tokens := &auth.FileTokenSource{Path: session.TokenPath(sessionName)}
	client := rest.NewClient(cfg.Server.APIURL, tokens, zap.NewNop(), rest.DefaultTimeouts())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "conversations":
		cmdConversations(ctx, client, *jsonFlag)
	case "history":
		if *convFlag == "" {
			fmt.Fprintln(os.Stderr, "usage: chatkit --conv <id> history")
			os.Exit(1)
		}
		cmdHistory(ctx, client, *convFlag, *limitFlag, *jsonFlag)
	case "send":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatkit (--conv <id> | --to <user>) send <text>")
			os.Exit(1)
		}
		cmdSend(ctx, client, cfg, *convFlag, *toFlag, args[1], *jsonFlag)
	case "search":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: chatkit search <query>")
			os.Exit(1)
		}
		cmdSearch(ctx, client, args[1], *convFlag, *limitFlag, *jsonFlag)
	case "unread":
		cmdUnread(ctx, client, *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatkit [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  conversations             List conversations")
	fmt.Fprintln(os.Stderr, "  history --conv <id>       Show recent messages")
	fmt.Fprintln(os.Stderr, "  send <text>               Send a message (--conv or --to)")
	fmt.Fprintln(os.Stderr, "  search <query>            Search messages (optionally --conv)")
	fmt.Fprintln(os.Stderr, "  unread                    Show unread counts")
}

func cmdConversations(ctx context.Context, client *rest.Client, jsonOut bool) {
	convs, err := client.ListConversations(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(convs)
		return
	}
	for _, c := range convs {
		marker := " "
		if c.Pinned {
			marker = "*"
		}
		fmt.Printf("%s %-24s %-20s unread=%d  %s\n", marker, c.ID, c.Title, c.UnreadCount, c.LastPreview)
	}
}

func cmdHistory(ctx context.Context, client *rest.Client, convID string, limit int, jsonOut bool) {
	msgs, err := client.ListMessages(ctx, convID, rest.Page{Limit: limit})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
		fmt.Printf("[%s] %s: %s\n", ts, m.SenderID, m.Content)
	}
}

func cmdSend(ctx context.Context, client *rest.Client, cfg *config.Config, convID, peerID, text string, jsonOut bool) {
	if convID == "" && peerID == "" {
		fmt.Fprintln(os.Stderr, "error: send needs --conv or --to")
		os.Exit(1)
	}

	// One-shot send goes through the same pipeline as the daemon, REST path.
	b := bus.New()
	s := store.New(cfg.UserID, b, zap.NewNop())
	pipeline := send.NewPipeline(s, nil, client, b, zap.NewNop())

	pending, err := pipeline.Send(ctx, send.Request{
		ConversationID: convID,
		PeerID:         peerID,
		Content:        text,
	})
	if err != nil {
		fail(err)
	}

	confirmed, _ := s.Message(pending.ConversationID, pending.ClientID)
	if jsonOut {
		outputJSON(confirmed)
		return
	}
	fmt.Printf("sent %s (%s)\n", confirmed.ID, confirmed.Status)
}

func cmdSearch(ctx context.Context, client *rest.Client, query, convID string, limit int, jsonOut bool) {
	msgs, err := client.SearchMessages(ctx, query, convID, limit)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		fmt.Printf("%s  %s: %s\n", m.ConversationID, m.SenderID, m.Content)
	}
}

func cmdUnread(ctx context.Context, client *rest.Client, jsonOut bool) {
	counts, err := client.UnreadCount(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(counts)
		return
	}
	fmt.Printf("total: %d\n", counts.Total)
	for conv, n := range counts.PerConversation {
		fmt.Printf("  %s: %d\n", conv, n)
	}
}

func outputJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(err)
	}
	fmt.Println(string(data))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
