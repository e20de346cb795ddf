package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/housetax/internal/cli/config"
)

const configHeader = `# housetax configuration.
#
# Every key can be overridden with a HOUSETAX_ environment variable,
# using a double underscore between nested keys:
#   HOUSETAX_COMBINE__FIRST_YEAR=2005
#
# The raw OECD exports are expected under data/raw:
#   house-prices.csv  (Analytical house price indicators)
#   property-tax.csv  (Tax on property, % of GDP and % of taxation)

`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter housetax.yaml",
		Long: `Write housetax.yaml with the built-in defaults, including the full
pipeline, and create the data directories the default stages use.`,
		Example: `  # Initialize in the current directory
  housetax init

  # Initialize in a new directory
  housetax init oecd-housing

  # Overwrite an existing config
  housetax init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := NewCommandContext(cmd).Renderer

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
	}

	created := []string{}
	for _, sub := range []string{"data/raw", "data/tidy", "figures"} {
		p := filepath.Join(dir, sub)
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.MkdirAll(p, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", p, err)
		}
		created = append(created, p+"/")
	}

	data, err := marshalConfig(config.Default())
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	created = append(created, configPath)

	for _, f := range created {
		r.Muted("  created " + f)
	}
	r.Println("")
	r.Success("housetax project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Put the OECD exports in data/raw/")
	r.Println("  2. Run 'housetax run --dry-run' to see the stage order")
	r.Println("  3. Run 'housetax run' to build the figures")
	return nil
}
