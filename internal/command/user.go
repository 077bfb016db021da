package command

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stolasapp/gatekeep/internal/app"
)

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User commands",
	}
	cmd.AddCommand(
		userCreateCommand(),
		userListCommand(),
		userDeleteCommand(),
	)
	return cmd
}

func userCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create user",
		Long: "Creates user entry for the provided username and password. Passwords may be\n" +
			"provided via stdin or through the interactive prompt.",

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			b, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := b.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			}
			creds := app.Credentials{
				Username:    args[0],
				Password:    string(passwd),
				HasUsername: true,
				HasPassword: true,
			}
			for _, check := range []app.Check{app.UsernamePresent(), app.PasswordMeetsPolicy()} {
				if err = check.Run(cmd.Context(), creds); err != nil {
					return err
				}
			}

			identity, err := b.authority.Register(cmd.Context(), creds.Username, creds.Password)
			if err != nil {
				return err
			}
			b.logger.InfoContext(cmd.Context(), "created user",
				slog.String("name", identity.Username),
				slog.Uint64("id", identity.ID),
			)
			return nil
		},
	}
}

func userListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			b, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := b.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			users, err := b.store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
			if _, err = fmt.Fprintln(w, "ID\tNAME"); err != nil {
				return err
			}
			for _, user := range users {
				if _, err = fmt.Fprintf(w, "%d\t%s\n", user.ID, user.Name); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}
}

func userDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete user",
		Long: "Permanently deletes the user and all of their sessions. " +
			"This operation is permanent and irreversible.\n\n" +
			"With session.store set to memory, sessions live in the serve process " +
			"and are not deleted; they expire after session.max_age.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			b, err := loadBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := b.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			name := args[0]
			logger := b.logger.With(slog.String("name", name))
			user, err := b.store.GetUserByName(cmd.Context(), name)
			if err != nil {
				return err
			}
			resp, err := prompt("Are you sure you want to delete this user? [y|N] ", false)
			if !bytes.Equal(resp, []byte{'y'}) || err != nil {
				logger.InfoContext(cmd.Context(), "aborted user deletion")
				return err
			}
			if err = b.store.DeleteUser(cmd.Context(), user.ID); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "user deleted")
			return nil
		},
	}
}
