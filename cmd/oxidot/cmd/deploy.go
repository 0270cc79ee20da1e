package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awkless/oxidot/pkg/cluster"
)

var deployFlags struct {
	all        bool
	useDefault bool
}

var deployCmd = &cobra.Command{
	Use:   "deploy <name> [rules...]",
	Short: "Materialize files in a cluster's work-tree alias",
	Long: `Deploy inserts sparse-checkout rules and checks them out into
the cluster's work-tree alias. With --all, every tracked file is
deployed. With --default, the cluster's own settings.include rules are
deployed (replacing whatever ruleset is currently active). Otherwise
the given rule arguments are inserted alongside the current ruleset.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().BoolVar(&deployFlags.all, "all", false, "deploy every tracked file")
	deployCmd.Flags().BoolVar(&deployFlags.useDefault, "default", false, "deploy the cluster's default (settings.include) rules")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	name := args[0]
	rules := args[1:]

	if deployFlags.all && deployFlags.useDefault {
		return fmt.Errorf("--all and --default are mutually exclusive")
	}
	if (deployFlags.all || deployFlags.useDefault) && len(rules) > 0 {
		return fmt.Errorf("--all/--default cannot be combined with explicit rules")
	}
	if !deployFlags.all && !deployFlags.useDefault && len(rules) == 0 {
		return fmt.Errorf("specify --all, --default, or one or more rules")
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	var deployed []string
	err = st.UseCluster(name, func(c *cluster.Cluster) error {
		var e error
		switch {
		case deployFlags.all:
			deployed, e = c.DeployAll(cmd.Context())
		case deployFlags.useDefault:
			deployed, e = c.DeployDefaultRules(cmd.Context())
		default:
			deployed, e = c.DeployWithRules(cmd.Context(), rules)
		}
		return e
	})
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("deployed %d file(s) for %q", len(deployed), name)))
	for _, r := range deployed {
		fmt.Println(dimStyle.Render("  " + r))
	}
	return nil
}
