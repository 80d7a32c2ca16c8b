package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var signInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password and keep the session on this device",
	RunE: func(cmd *cobra.Command, _ []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close(cmd.Context())

		rt.controller.SignIn(email, password, nil)
		rt.controller.Wait()

		if msg := rt.controller.UIState().Error; msg != "" {
			return errors.New(msg)
		}
		printSession(cmd.OutOrStdout(), rt)
		return nil
	},
}

var signUpCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close(cmd.Context())

		rt.controller.SignUp(name, email, password, nil)
		rt.controller.Wait()

		if msg := rt.controller.UIState().Error; msg != "" {
			return errors.New(msg)
		}
		printSession(cmd.OutOrStdout(), rt)
		return nil
	},
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "End the session on this device",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close(cmd.Context())

		rt.controller.Wait()
		if rt.controller.Session() == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		rt.controller.SignOut()
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close(cmd.Context())

		rt.controller.Wait()
		printSession(cmd.OutOrStdout(), rt)
		return nil
	},
}

// passwordFlag returns --password, or reads one line from stdin when the
// flag is not set.
func passwordFlag(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printSession(w io.Writer, rt *runtime) {
	s := rt.controller.Session()
	if s == nil {
		fmt.Fprintln(w, "Not signed in.")
		return
	}

	name := s.DisplayName
	if name == "" {
		name = "(no name)"
	}
	fmt.Fprintf(w, "Signed in as %s <%s>\n", name, s.Email)
	fmt.Fprintf(w, "User ID:      %s\n", s.UserID)
	if s.CreatedAt != nil {
		fmt.Fprintf(w, "Member since: %s\n", s.CreatedAt.Local().Format(time.DateOnly))
	}
}

func init() {
	for _, c := range []*cobra.Command{signInCmd, signUpCmd} {
		c.Flags().String("email", "", "account email")
		c.Flags().String("password", "", "account password (prompted when empty)")
	}
	signUpCmd.Flags().String("name", "", "display name")
}
