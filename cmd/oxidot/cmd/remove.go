package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name>...",
	Short: "Undeploy and delete one or more clusters",
	Long: `Remove undeploys every file a cluster has deployed, then
deletes its <name>.git directory and drops it from the store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	for _, name := range args {
		if err := st.RemoveCluster(cmd.Context(), name); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("removed cluster %q", name)))
	}

	return nil
}
