package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awkless/oxidot/pkg/cluster"
)

var undeployFlags struct {
	all        bool
	useDefault bool
}

var undeployCmd = &cobra.Command{
	Use:   "undeploy <name> [rules...]",
	Short: "Remove files from a cluster's work-tree alias",
	Long: `Undeploy removes sparse-checkout rules and checks the removal
out of the cluster's work-tree alias. With --all, every deployed file
is removed and the ruleset cleared. With --default, only the cluster's
own settings.include rules are removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUndeploy,
}

func init() {
	rootCmd.AddCommand(undeployCmd)

	undeployCmd.Flags().BoolVar(&undeployFlags.all, "all", false, "undeploy every deployed file")
	undeployCmd.Flags().BoolVar(&undeployFlags.useDefault, "default", false, "undeploy only the cluster's default rules")
}

func runUndeploy(cmd *cobra.Command, args []string) error {
	name := args[0]
	rules := args[1:]

	if undeployFlags.all && undeployFlags.useDefault {
		return fmt.Errorf("--all and --default are mutually exclusive")
	}
	if (undeployFlags.all || undeployFlags.useDefault) && len(rules) > 0 {
		return fmt.Errorf("--all/--default cannot be combined with explicit rules")
	}
	if !undeployFlags.all && !undeployFlags.useDefault && len(rules) == 0 {
		return fmt.Errorf("specify --all, --default, or one or more rules")
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	var removed []string
	err = st.UseCluster(name, func(c *cluster.Cluster) error {
		var e error
		switch {
		case undeployFlags.all:
			removed, e = c.UndeployAll(cmd.Context())
		case undeployFlags.useDefault:
			removed, e = c.UndeployDefaultRules(cmd.Context())
		default:
			removed, e = c.UndeployWithRules(cmd.Context(), rules)
		}
		return e
	})
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("undeployed %d file(s) for %q", len(removed), name)))
	for _, r := range removed {
		fmt.Println(dimStyle.Render("  " + r))
	}
	return nil
}
