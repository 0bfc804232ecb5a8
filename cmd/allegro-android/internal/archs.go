package internal

import (
	"fmt"
	"text/tabwriter"

	"github.com/liballeg/allegro-android/internal/pipeline"
	"github.com/spf13/cobra"
)

var archsCmd = &cobra.Command{
	Use:   "archs",
	Short: "List the architectures that would be built",
	Args:  cobra.NoArgs,
	RunE:  runArchs,
}

func init() {
	rootCmd.AddCommand(archsCmd)
}

func runArchs(cmd *cobra.Command, args []string) error {
	o := opts
	if o.Path == "" {
		o.Path = "."
	}
	_, archs, err := pipeline.Resolve(&o)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ABI\tAPI\tHOST\tCLANG")
	for _, a := range archs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", a.Name, a.MinAPI, a.Host, a.Compiler(a.MinAPI))
	}
	return w.Flush()
}
