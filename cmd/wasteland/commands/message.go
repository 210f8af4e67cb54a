// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/bureau-foundation/wasteland/cmd/wasteland/cli"
	"github.com/bureau-foundation/wasteland/lib/render"
	"github.com/bureau-foundation/wasteland/lib/schema"
)

func messageCommand() *cli.Command {
	return &cli.Command{
		Name:    "message",
		Summary: "Send and read agent messages",
		Description: `Messages are addressed to a recipient's public key and carry a type
(notification, reply, task, scavenge, or one of the merge-queue types
POLECAT_DONE, MERGE_READY, MERGED, MERGE_FAILED, REWORK_REQUEST).
Replies share the thread id of the message that started the thread.`,
		Subcommands: []*cli.Command{
			messageSendCommand(),
			messageListCommand(),
			messageReplyCommand(),
			messageThreadCommand(),
			messagePolecatDoneCommand(),
			messageMergeReadyCommand(),
			messageWatchCommand(),
		},
	}
}

// messageEntry is the JSON form of a message.
type messageEntry struct {
	EventID   string `json:"event_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	CreatedAt int64  `json:"created_at"`
	Subject   string `json:"subject"`
	Content   string `json:"content,omitempty"`
	Type      string `json:"type"`
	Priority  string `json:"priority"`
	ThreadID  string `json:"thread_id,omitempty"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

func newMessageEntry(message schema.Message) messageEntry {
	return messageEntry{
		EventID:   message.EventID,
		Sender:    message.Sender,
		Recipient: message.Recipient,
		CreatedAt: message.CreatedAt,
		Subject:   message.Subject,
		Content:   message.Content,
		Type:      string(message.Type),
		Priority:  string(message.Priority),
		ThreadID:  message.ThreadID,
		ReplyTo:   message.ReplyTo,
	}
}

func messageEntries(messages []schema.Message) []messageEntry {
	entries := make([]messageEntry, len(messages))
	for i, message := range messages {
		entries[i] = newMessageEntry(message)
	}
	return entries
}

// emitSent reports a published message: JSON with --json, otherwise
// its event id.
func emitSent(jsonOutput *cli.JSONOutput, message schema.Message) error {
	if done, err := jsonOutput.EmitJSON(newMessageEntry(message)); done {
		return err
	}
	fmt.Fprintln(cli.Stdout, message.EventID)
	return nil
}

func parseMessageType(value string) (schema.MessageType, error) {
	messageType := schema.MessageType(value)
	if !messageType.Valid() {
		return "", cli.Validation("unknown message type %q (want one of %v)", value, schema.MessageTypes)
	}
	return messageType, nil
}

// --- send ---

type messageSendParams struct {
	Connection
	cli.JSONOutput
	To          string `json:"to"        flag:"to"           desc:"recipient public key (hex)"`
	Subject     string `json:"subject"   flag:"subject"      desc:"message subject"`
	Content     string `json:"content"   flag:"content,m"    desc:"message body"`
	ContentFile string `json:"-"         flag:"content-file" desc:"read the body from a file (- for stdin)"`
	Type        string `json:"type"      flag:"type,t"       desc:"message type" default:"notification"`
	Priority    string `json:"priority"  flag:"priority,p"   desc:"low, normal, high, or urgent" default:"normal"`
	Thread      string `json:"thread_id" flag:"thread"       desc:"thread id to file the message under"`
}

func messageSendCommand() *cli.Command {
	var params messageSendParams
	return &cli.Command{
		Name:    "send",
		Summary: "Send a message",
		Usage:   "wasteland message send --to PUBKEY --subject SUBJECT [flags]",
		Examples: []cli.Example{
			{
				Description: "Ask the refinery to rework a branch",
				Command:     "wasteland message send --to $REFINERY -t REWORK_REQUEST --subject 'polecat/7' -m 'tests fail on arm64'",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			if params.To == "" {
				return cli.Validation("--to is required")
			}
			content, err := readContent(params.Content, params.ContentFile)
			if err != nil {
				return err
			}
			messageType, err := parseMessageType(params.Type)
			if err != nil {
				return err
			}
			priority, err := parsePriority(params.Priority)
			if err != nil {
				return err
			}

			session, err := params.connect(ctx, "message/send")
			if err != nil {
				return err
			}
			defer session.Close()

			message, err := session.client.SendMessage(ctx, schema.MessageParams{
				Recipient: params.To,
				Subject:   params.Subject,
				Content:   content,
				Type:      messageType,
				Priority:  priority,
				ThreadID:  params.Thread,
			})
			if err != nil {
				return classify(err)
			}
			session.logger.Info("message sent", "event_id", message.EventID, "type", string(message.Type))
			return emitSent(&params.JSONOutput, message)
		},
	}
}

// --- list ---

type messageListParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
	Types []string      `json:"type"  flag:"type,t"  desc:"only these message types"`
	From  []string      `json:"from"  flag:"from"    desc:"only messages from these public keys"`
	Sent  bool          `json:"sent"  flag:"sent"    desc:"list messages you sent instead of received"`
	Since time.Duration `json:"since" flag:"since"   desc:"only messages newer than this (e.g. 24h)"`
	Limit int           `json:"limit" flag:"limit,n" desc:"relay-side result limit (0 for none)"`
}

func messageListCommand() *cli.Command {
	var params messageListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List messages addressed to you",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			if params.Sent && len(params.From) > 0 {
				return cli.Validation("--sent and --from are mutually exclusive")
			}
			types := make([]schema.MessageType, 0, len(params.Types))
			for _, value := range params.Types {
				messageType, err := parseMessageType(value)
				if err != nil {
					return err
				}
				types = append(types, messageType)
			}

			session, err := params.connect(ctx, "message/list")
			if err != nil {
				return err
			}
			defer session.Close()

			filter := schema.MessageFilter{Types: types, Limit: params.Limit}
			if params.Since > 0 {
				since := time.Now().Add(-params.Since).Unix()
				filter.Since = &since
			}

			var messages []schema.Message
			if params.Sent {
				filter.Authors = []string{session.client.PublicKey()}
				messages, err = session.client.QueryMessages(ctx, filter)
			} else {
				filter.Authors = params.From
				messages, err = session.client.GetMyMessages(ctx, filter)
			}
			if err != nil {
				return classify(err)
			}
			slices.SortStableFunc(messages, func(a, b schema.Message) int {
				return cmp.Compare(a.CreatedAt, b.CreatedAt)
			})

			if done, err := params.EmitJSON(messageEntries(messages)); done {
				return err
			}
			printer, err := params.printer()
			if err != nil {
				return err
			}
			return printer.Messages(messages)
		},
	}
}

// --- reply ---

type messageReplyParams struct {
	Connection
	cli.JSONOutput
	Content     string `json:"content" flag:"content,m"    desc:"reply body"`
	ContentFile string `json:"-"       flag:"content-file" desc:"read the body from a file (- for stdin)"`
}

func messageReplyCommand() *cli.Command {
	var params messageReplyParams
	return &cli.Command{
		Name:    "reply",
		Summary: "Reply to a message",
		Description: `Reply to the message with the given event id. The reply goes to the
original sender, keeps the thread id, and prefixes the subject with
"Re: " once.`,
		Usage:  "wasteland message reply EVENT_ID -m TEXT",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: wasteland message reply EVENT_ID -m TEXT")
			}
			content, err := readContent(params.Content, params.ContentFile)
			if err != nil {
				return err
			}
			if content == "" {
				return cli.Validation("reply content is required (-m or --content-file)")
			}

			session, err := params.connect(ctx, "message/reply")
			if err != nil {
				return err
			}
			defer session.Close()

			// The thread query returns the message itself plus anything
			// filed under it.
			candidates, err := session.client.GetMessageThread(ctx, args[0])
			if err != nil {
				return classify(err)
			}
			index := slices.IndexFunc(candidates, func(message schema.Message) bool {
				return message.EventID == args[0]
			})
			if index < 0 {
				return cli.NotFound("message %q not found", args[0])
			}

			reply, err := session.client.ReplyToMessage(ctx, candidates[index], content)
			if err != nil {
				return classify(err)
			}
			session.logger.Info("reply sent", "event_id", reply.EventID, "thread_id", reply.ThreadID)
			return emitSent(&params.JSONOutput, reply)
		},
	}
}

// --- thread ---

type messageThreadParams struct {
	Connection
	cli.JSONOutput
	ColorOutput
}

func messageThreadCommand() *cli.Command {
	var params messageThreadParams
	return &cli.Command{
		Name:    "thread",
		Summary: "Show a message thread, oldest first",
		Usage:   "wasteland message thread THREAD_ID",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("usage: wasteland message thread THREAD_ID")
			}
			session, err := params.connect(ctx, "message/thread")
			if err != nil {
				return err
			}
			defer session.Close()

			messages, err := session.client.GetMessageThread(ctx, args[0])
			if err != nil {
				return classify(err)
			}
			if len(messages) == 0 {
				return cli.NotFound("thread %q not found", args[0])
			}
			if done, err := params.EmitJSON(messageEntries(messages)); done {
				return err
			}

			printer, err := params.printer()
			if err != nil {
				return err
			}
			for i, message := range messages {
				if i > 0 {
					fmt.Fprintln(cli.Stdout)
				}
				fmt.Fprintf(cli.Stdout, "%s  %s  %s\n",
					time.Unix(message.CreatedAt, 0).UTC().Format(time.DateTime),
					render.ShortKey(message.Sender), message.Subject)
				if message.Content != "" {
					if err := printer.Markdown(message.Content); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

// --- merge-queue shortcuts ---

type polecatDoneParams struct {
	Connection
	cli.JSONOutput
	To    string `json:"to"    flag:"to"      desc:"recipient public key (default: worker.notify)"`
	Task  string `json:"task"  flag:"task"    desc:"finished task id"`
	Notes string `json:"notes" flag:"notes,m" desc:"completion notes"`
}

func messagePolecatDoneCommand() *cli.Command {
	var params polecatDoneParams
	return &cli.Command{
		Name:    "polecat-done",
		Summary: "Report a finished task (POLECAT_DONE)",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if params.Task == "" {
				return cli.Validation("--task is required")
			}
			session, err := params.connect(ctx, "message/polecat-done")
			if err != nil {
				return err
			}
			defer session.Close()

			recipient := cmp.Or(params.To, session.config.Worker.Notify)
			if recipient == "" {
				return cli.Validation("--to is required when worker.notify is not configured")
			}
			message, err := session.client.SendPolecatDone(ctx, recipient, params.Task, params.Notes)
			if err != nil {
				return classify(err)
			}
			return emitSent(&params.JSONOutput, message)
		},
	}
}

type mergeReadyParams struct {
	Connection
	cli.JSONOutput
	To     string `json:"to"     flag:"to"      desc:"refinery public key"`
	Branch string `json:"branch" flag:"branch"  desc:"branch ready to merge"`
	Notes  string `json:"notes"  flag:"notes,m" desc:"notes for the refinery"`
}

func messageMergeReadyCommand() *cli.Command {
	var params mergeReadyParams
	return &cli.Command{
		Name:    "merge-ready",
		Summary: "Announce a branch ready to merge (MERGE_READY)",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if params.To == "" || params.Branch == "" {
				return cli.Validation("--to and --branch are required")
			}
			session, err := params.connect(ctx, "message/merge-ready")
			if err != nil {
				return err
			}
			defer session.Close()

			message, err := session.client.SendMergeReady(ctx, params.To, params.Branch, params.Notes)
			if err != nil {
				return classify(err)
			}
			return emitSent(&params.JSONOutput, message)
		},
	}
}
