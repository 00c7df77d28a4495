package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/runtests/packages/core/config"
	"github.com/abdul-hamid-achik/runtests/packages/core/spec"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Create an example suite and config file",
	Long: `Initialize a runtests project in DIR (default: the current directory).

This creates:
  - .runtests.yaml            - Configuration file running cat on the example suite
  - example/runtests.csv      - Example specification
  - example/input.txt         - Input read by the first case
  - example/expected_output   - Expected stdout of the first case
  - example/empty             - Expected stdout of the second case

Examples:
  runtests init
  runtests init tests --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const (
	exampleSpec = `id,args,output,exitcode
1,input.txt,expected_output,0
2,missing.txt,empty,1
`
	exampleInput = "hello from runtests\n"
)

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	configFile := filepath.Join(dir, config.ConfigFilenames[0])
	suiteDir := filepath.Join(dir, "example")

	exampleFiles := []struct {
		path    string
		content string
	}{
		{filepath.Join(suiteDir, spec.DefaultFileName), exampleSpec},
		{filepath.Join(suiteDir, "input.txt"), exampleInput},
		{filepath.Join(suiteDir, "expected_output"), exampleInput},
		{filepath.Join(suiteDir, "empty"), ""},
	}

	if !forceInit {
		existing := []string{configFile}
		for _, f := range exampleFiles {
			existing = append(existing, f.path)
		}
		for _, f := range existing {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	if err := os.MkdirAll(suiteDir, 0755); err != nil {
		return fmt.Errorf("failed to create suite directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Program = "cat"
	cfg.Suites = []string{"example"}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	for _, f := range exampleFiles {
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", f.path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", f.path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nruntests project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'runtests' in %s to execute the example suite.\n", dir)

	return nil
}
