package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusFlags struct {
	deployed      bool
	undeployed    bool
	sparsityRules string
	files         string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cluster deployment status",
	Long: `Status reports, for every cluster in the store, whether it is
deployed and how many files it tracks. --deployed and --undeployed
narrow the listing; --sparsity-rules and --files report on a single
named cluster instead.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusFlags.deployed, "deployed", false, "list only deployed clusters")
	statusCmd.Flags().BoolVar(&statusFlags.undeployed, "undeployed", false, "list only undeployed clusters")
	statusCmd.Flags().StringVar(&statusFlags.sparsityRules, "sparsity-rules", "", "show the named cluster's current sparse rules")
	statusCmd.Flags().StringVar(&statusFlags.files, "files", "", "show the named cluster's tracked files")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	switch {
	case statusFlags.sparsityRules != "":
		rules, err := st.DeployRulesStatus(statusFlags.sparsityRules)
		if err != nil {
			return err
		}
		for _, r := range rules {
			fmt.Println(r)
		}
	case statusFlags.files != "":
		files, err := st.TrackedFilesStatus(statusFlags.files)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
	case statusFlags.deployed:
		st.DeployedOnlyStatus()
	case statusFlags.undeployed:
		st.UndeployedOnlyStatus()
	default:
		st.DetailedStatus()
	}

	return nil
}
