package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"

	"github.com/awkless/oxidot/pkg/cluster"
	"github.com/awkless/oxidot/pkg/store"
)

var cloneFlags struct {
	branch string
}

var cloneCmd = &cobra.Command{
	Use:   "clone <name> <url>",
	Short: "Clone a cluster and resolve its dependencies",
	Long: `Clone the named cluster's remote as a bare-alias repository,
then resolve and clone every transitively missing cluster it declares
as a dependency, deploying each newly resolved cluster's default rules
in the order they were resolved.`,
	Args: cobra.ExactArgs(2),
	RunE: runClone,
}

func init() {
	rootCmd.AddCommand(cloneCmd)

	cloneCmd.Flags().StringVar(&cloneFlags.branch, "branch", "", "branch to check out (unset = server default)")
}

func runClone(cmd *cobra.Command, args []string) error {
	name, url := args[0], args[1]

	st, err := openStore()
	if err != nil {
		return err
	}

	progress := mpb.New(mpb.WithWidth(40))

	c, err := st.CloneCluster(cmd.Context(), name, store.CloneOptions{
		URL:    url,
		Branch: store.BranchTarget{Name: cloneFlags.branch},
		ProgressSinkFor: func(clusterName string) cluster.ProgressSink {
			return newMpbProgressSink(progress, clusterName)
		},
		CredentialProvider: huhCredentialProvider{},
	})
	progress.Wait()
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("cloned cluster %q into %s", name, c.Deployer.WorkTreeAlias())))
	return nil
}
