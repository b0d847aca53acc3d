package main

import (
	"github.com/spf13/cobra"

	auth "github.com/talentoenlinea/talent-auth"
)

// NewIssueCodeCmd creates the issue-code subcommand.
func NewIssueCodeCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "issue-code",
		Short: "Issue a password reset code",
		Long:  `Issue a password reset code for an email. The code is written to the log instead of being mailed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Log.Debug = true
			logger := auth.NewSlogLogger(setupLogger(cfg, cmd.ErrOrStderr()))

			db, repo, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			handler := auth.NewIssueResetCodeHandler(repo.Subjects(), repo.ResetCodes(), auth.NewLogMailer(logger)).
				WithTTL(cfg.Reset.CodeTTL).
				WithLogger(logger)

			if err := handler.Execute(cmd.Context(), auth.IssueResetCodeMessage{Email: email}); err != nil {
				return err
			}

			cmd.Println("success")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// NewVerifyCodeCmd creates the verify-code subcommand.
func NewVerifyCodeCmd() *cobra.Command {
	var msg auth.VerifyResetCodeMessage

	cmd := &cobra.Command{
		Use:   "verify-code",
		Short: "Redeem a password reset code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := auth.NewSlogLogger(setupLogger(cfg, cmd.ErrOrStderr()))

			db, repo, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			handler := auth.NewVerifyResetCodeHandler(repo.Subjects(), repo.ResetCodes()).
				WithMinPasswordLength(cfg.Reset.MinPassword).
				WithLogger(logger)

			if err := handler.Execute(cmd.Context(), msg); err != nil {
				_, message := auth.ErrorResponse(err)
				cmd.PrintErrln(message)
				return err
			}

			cmd.Println("success")
			return nil
		},
	}

	cmd.Flags().StringVar(&msg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&msg.Code, "code", "", "six digit reset code")
	cmd.Flags().StringVar(&msg.NewPassword, "password", "", "new password")

	return cmd
}
