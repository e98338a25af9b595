package main

import (
	"fmt"
	"os"
	"strings"

	"lawchat/internal/app"
	"lawchat/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "lawchat",
		Short: "Chat client for Ontario tenancy law questions",
		Long: `lawchat keeps your conversations on this machine and syncs them with
your account when you are signed in. Answers are general legal
information, not legal advice.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			program := tea.NewProgram(tui.New(application), tea.WithAltScreen())
			_, err = program.Run()
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	root.AddCommand(
		newAskCmd(&configPath),
		newLoginCmd(&configPath),
		newSignupCmd(&configPath),
		newLogoutCmd(&configPath),
		newSessionsCmd(&configPath),
		newFeedbackCmd(&configPath),
		newInitCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func buildApp(configPath string) (*app.Application, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func newAskCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question without the interactive UI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			application.History.Send(cmd.Context(), strings.Join(args, " "))
			sess, ok := application.History.Active()
			if !ok || len(sess.Messages) == 0 {
				return fmt.Errorf("no answer received")
			}
			last := sess.Messages[len(sess.Messages)-1]
			if last.Role == app.RoleError {
				return fmt.Errorf("%s", last.Content)
			}
			printAnswer(cmd, last)
			return nil
		},
	}
}

func printAnswer(cmd *cobra.Command, msg app.Message) {
	if msg.Answer == nil {
		cmd.Println(msg.Content)
		return
	}
	ans := msg.Answer
	for _, line := range ans.ShortAnswer {
		cmd.Printf("• %s\n", line)
	}
	if len(ans.WhatTheLawSays) > 0 {
		cmd.Println("\nWhat the law says:")
		for _, c := range ans.WhatTheLawSays {
			if c.Section != "" {
				cmd.Printf("  %s, s. %s\n", c.Act, c.Section)
			} else {
				cmd.Printf("  %s\n", c.Act)
			}
			if c.Quote != "" {
				cmd.Printf("    %q\n", c.Quote)
			}
		}
	}
	if len(ans.Caveats) > 0 {
		cmd.Println("\nCaveats:")
		for _, c := range ans.Caveats {
			cmd.Printf("  ! %s\n", c)
		}
	}
	if len(ans.Sources) > 0 {
		cmd.Println("\nSources:")
		for _, s := range ans.Sources {
			cmd.Printf("  %s\n", s)
		}
	}
}

func newLoginCmd(configPath *string) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and sync your chat history",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			cmd.Println("Signed in.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignupCmd(configPath *string) *cobra.Command {
	var firstName, lastName, email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Signup(cmd.Context(), firstName, lastName, email, password); err != nil {
				return err
			}
			cmd.Println("Account created; you are signed in.")
			return nil
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local chat data",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			application.Logout(cmd.Context())
			cmd.Println("Signed out.")
			return nil
		},
	}
}

func newSessionsCmd(configPath *string) *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List chat sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.History.Reconcile(cmd.Context()); err != nil {
				cmd.PrintErrln("warning: could not sync with server; showing local sessions")
			}
			active := application.History.ActiveID()
			for _, s := range application.History.Sessions() {
				marker := " "
				if s.LocalID == active {
					marker = "*"
				}
				cmd.Printf("%s %-38s %-40s %s\n", marker, s.LocalID, s.Title, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename [id] [title]",
		Short: "Rename a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			if !application.History.RenameSession(cmd.Context(), args[0], strings.Join(args[1:], " ")) {
				return fmt.Errorf("no session with id %s", args[0])
			}
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			if !application.History.DeleteSession(cmd.Context(), args[0]) {
				return fmt.Errorf("no session with id %s", args[0])
			}
			return nil
		},
	}

	sessions.AddCommand(list, rename, remove)
	return sessions
}

func newFeedbackCmd(configPath *string) *cobra.Command {
	var helpful bool
	var comment string
	cmd := &cobra.Command{
		Use:   "feedback [trace-id]",
		Short: "Rate an answer by its trace id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			fb := app.Feedback{
				TraceID:   args[0],
				Topic:     application.Config.Topic,
				Helpful:   helpful,
				Comment:   comment,
				UIVersion: "lawchat-cli-" + version,
			}
			// Fill question/answer context when the trace id is in the active
			// session.
			if sess, ok := application.History.Active(); ok {
				for _, msg := range sess.Messages {
					if msg.Answer != nil && msg.Answer.TraceID == args[0] {
						fb.Question = msg.Answer.Question
						if len(msg.Answer.ShortAnswer) > 0 {
							fb.AnswerSummary = msg.Answer.ShortAnswer[0]
						}
						fb.SessionID = sess.RemoteID
					}
				}
			}
			if err := application.API.SendFeedback(cmd.Context(), fb); err != nil {
				return err
			}
			cmd.Println("Thanks for the feedback.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&helpful, "helpful", true, "whether the answer was helpful")
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")
	return cmd
}

func newInitCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if path == "" {
				path = app.DefaultConfigPath()
			}
			if err := app.WriteDefaultConfig(path); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("lawchat %s\n", version)
		},
	}
}
