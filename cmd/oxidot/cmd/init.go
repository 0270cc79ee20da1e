package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awkless/oxidot/pkg/config"
)

var initFlags struct {
	description   string
	url           string
	branch        string
	workTreeAlias string
}

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new cluster in the store",
	Long: `Create a new bare-alias cluster, committing an initial
cluster.toml that records its remote and work-tree alias.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initFlags.description, "description", "", "free-form cluster description")
	initCmd.Flags().StringVar(&initFlags.url, "url", "", "canonical remote URL this cluster may be re-cloned from")
	initCmd.Flags().StringVar(&initFlags.branch, "branch", "", "remote branch (unset = server default)")
	initCmd.Flags().StringVar(&initFlags.workTreeAlias, "work-tree-alias", "", "directory this cluster deploys into")
}

func runInit(cmd *cobra.Command, args []string) error {
	name := args[0]

	def := &config.ClusterDefinition{
		Settings: config.Settings{
			Description:   initFlags.description,
			Remote:        config.Remote{URL: initFlags.url, Branch: initFlags.branch},
			WorkTreeAlias: initFlags.workTreeAlias,
		},
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	if _, err := st.InitCluster(cmd.Context(), name, def); err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("initialized cluster %q", name)))
	return nil
}
