package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/puddle/internal/conversation"
	"github.com/zulandar/puddle/internal/db"
	"gorm.io/gorm"
)

func newConversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Conversation commands",
	}

	cmd.AddCommand(newConversationStartCmd())
	cmd.AddCommand(newConversationSendCmd())
	cmd.AddCommand(newConversationInboxCmd())
	cmd.AddCommand(newConversationThreadCmd())
	return cmd
}

// openStore connects and builds a conversation store for one command run.
func openStore(configPath string) (*gorm.DB, *conversation.Store, error) {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := conversation.NewStore(conversation.StoreOpts{DB: gormDB})
	if err != nil {
		db.Close(gormDB)
		return nil, nil, err
	}
	return gormDB, store, nil
}

func newConversationStartCmd() *cobra.Command {
	var (
		configPath string
		itemID     uint
		as         string
		message    string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Message the seller of an item",
		Long:  "Finds or creates the conversation between --as and the seller of --item and posts --message to it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, store, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			u, err := lookupUser(cmd.Context(), gormDB, as)
			if err != nil {
				return err
			}
			conv, _, err := store.StartConversation(cmd.Context(), itemID, u.ID, message)
			if err != nil {
				return describeValidation(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Conversation %s\n", conv.ID)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().UintVar(&itemID, "item", 0, "item ID (required)")
	cmd.Flags().StringVar(&as, "as", "", "username sending the message (required)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text (required)")
	cmd.MarkFlagRequired("item")
	cmd.MarkFlagRequired("as")
	cmd.MarkFlagRequired("message")
	return cmd
}

func newConversationSendCmd() *cobra.Command {
	var (
		configPath string
		threadID   string
		as         string
		message    string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post a message to an existing conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, store, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			u, err := lookupUser(cmd.Context(), gormDB, as)
			if err != nil {
				return err
			}
			msg, err := store.PostMessage(cmd.Context(), threadID, u.ID, message)
			if err != nil {
				return describeValidation(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Message %d posted to %s\n", msg.ID, threadID)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&threadID, "thread", "", "conversation ID (required)")
	cmd.Flags().StringVar(&as, "as", "", "username posting the message (required)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text (required)")
	cmd.MarkFlagRequired("thread")
	cmd.MarkFlagRequired("as")
	cmd.MarkFlagRequired("message")
	return cmd
}

func newConversationInboxCmd() *cobra.Command {
	var (
		configPath string
		as         string
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List a user's conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, store, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			u, err := lookupUser(cmd.Context(), gormDB, as)
			if err != nil {
				return err
			}
			entries, err := store.ListInbox(cmd.Context(), u.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No conversations.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tITEM\tWITH\tLAST ACTIVITY\tLAST MESSAGE")
			for _, e := range entries {
				last := ""
				if e.LastMessage != nil {
					last = truncate(e.LastMessage.Content, 50)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Conversation.ID, e.ItemName, e.Counterpart.Username, formatTime(e.LastActivity), last)
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "username whose inbox to show (required)")
	cmd.MarkFlagRequired("as")
	return cmd
}

func newConversationThreadCmd() *cobra.Command {
	var (
		configPath string
		threadID   string
		as         string
	)

	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Show a conversation's messages, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, store, err := openStore(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			u, err := lookupUser(cmd.Context(), gormDB, as)
			if err != nil {
				return err
			}
			thread, err := store.GetThread(cmd.Context(), threadID, u.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Conversation %s about %s\n\n", thread.Conversation.ID, thread.ItemName())
			for _, m := range thread.Messages {
				fmt.Fprintf(out, "[%s] %s: %s\n", formatTime(m.CreatedAt), m.Author.Username, m.Content)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&threadID, "thread", "", "conversation ID (required)")
	cmd.Flags().StringVar(&as, "as", "", "username reading the thread (required)")
	cmd.MarkFlagRequired("thread")
	cmd.MarkFlagRequired("as")
	return cmd
}
