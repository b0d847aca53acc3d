package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	auth "github.com/talentoenlinea/talent-auth"
	"github.com/talentoenlinea/talent-auth/sessionchan"
)

// NewSubjectCmd creates the subject command group.
func NewSubjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "Manage subjects and their roles",
	}

	cmd.AddCommand(newSubjectAddCmd())
	cmd.AddCommand(newSubjectTokenCmd())
	cmd.AddCommand(newSubjectGuardCmd())

	return cmd
}

func newSubjectAddCmd() *cobra.Command {
	var (
		email    string
		password string
		role     string
		hint     bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a subject with a developer or company record",
		Long: `Register a subject and insert its developer or company side table
row. With --hint the role is also written into the subject metadata.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := auth.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q, expected one of %v", role, auth.GetAllRoles())
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, repo, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var metadata map[string]any
			if hint {
				metadata = map[string]any{"role": r.String()}
			}

			subject, err := repo.Subjects().Register(cmd.Context(), email, password, metadata)
			if err != nil {
				return err
			}

			switch r {
			case auth.RoleDeveloper:
				err = repo.Profiles().AddDeveloper(cmd.Context(), &auth.DeveloperRecord{ID: subject.ID})
			case auth.RoleCompany:
				err = repo.Profiles().AddCompany(cmd.Context(), &auth.CompanyRecord{ID: subject.ID})
			}
			if err != nil {
				return err
			}

			cmd.Println(subject.ID.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleDeveloper), "developer or company")
	cmd.Flags().BoolVar(&hint, "hint", false, "embed the role in the subject metadata")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newSubjectTokenCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign in and print a session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			db, repo, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			subject, err := repo.Subjects().Authenticate(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			tokens := auth.NewTokenService(cfg.Token.SigningKey,
				auth.WithTokenIssuer(cfg.Token.Issuer),
				auth.WithTokenTTL(cfg.Token.TTL),
			)
			session, err := tokens.Sign(*subject)
			if err != nil {
				return err
			}

			cmd.Println(session.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// newSubjectGuardCmd runs the client state machine against a token and
// prints what the route guard decides for a path.
func newSubjectGuardCmd() *cobra.Command {
	var (
		token string
		path  string
		role  string
	)

	cmd := &cobra.Command{
		Use:   "guard",
		Short: "Resolve a session's role and evaluate the route guard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			logger := auth.NewSlogLogger(setupLogger(cfg, cmd.ErrOrStderr()))

			db, repo, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			tokens := auth.NewTokenService(cfg.Token.SigningKey, auth.WithTokenIssuer(cfg.Token.Issuer))
			hub := sessionchan.New(sessionchan.WithTokens(tokens))
			defer hub.Close()

			resolver := auth.NewRoleResolver(repo.Profiles(), auth.WithRoleResolverLogger(logger))
			store := auth.NewSessionStore(hub, resolver, auth.WithSessionStoreLogger(logger))

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if err := store.Start(ctx); err != nil {
				return err
			}
			if _, err := hub.SignInToken(token); err != nil {
				store.Close()
				return err
			}
			store.Close()

			state := store.State()
			routes := auth.DefaultRoutes()
			decision := routes.Guard(state, path, auth.Role(role))

			subjectID := uuid.Nil
			if state.User != nil {
				subjectID = state.User.ID
			}
			cmd.Printf("subject=%s role=%q action=%s redirect=%q\n",
				subjectID, state.Role(), decision.Action, routes.Path(decision))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "session token")
	cmd.Flags().StringVar(&path, "path", "/", "path being visited")
	cmd.Flags().StringVar(&role, "role", "", "role required by the path")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}
