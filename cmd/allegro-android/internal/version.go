package internal

import (
	"fmt"

	"github.com/liballeg/allegro-android/internal/pipeline"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the Allegro version of the -a sources",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	v, err := pipeline.Version(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("failed to derive version: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}
