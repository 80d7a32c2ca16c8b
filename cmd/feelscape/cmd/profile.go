package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the account profile",
}

var setNameCmd = &cobra.Command{
	Use:   "set-name NAME",
	Short: "Change the display name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close(cmd.Context())

		rt.controller.Wait()
		rt.controller.ResetSaveState()
		rt.controller.OnSaveProfile(strings.Join(args, " "))
		rt.controller.Wait()

		st := rt.controller.SaveState()
		if st.SaveError != "" {
			return errors.New(st.SaveError)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Profile saved.")
		printSession(cmd.OutOrStdout(), rt)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(setNameCmd)
}
