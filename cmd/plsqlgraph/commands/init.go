package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/KLIEBHAN/pg-plsql-graphs/internal/config"
	"github.com/KLIEBHAN/pg-plsql-graphs/pkg/query"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize plsqlgraph configuration interactively",
	Long: `Guides you through setting up plsqlgraph configuration step by step.
Creates a config file with the result table bounds, the reference
extractor and the server address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Analysis ===
	extractor := string(cfg.Extractor)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Reference extractor").
				Description("How variable references inside embedded queries are found").
				Options(
					huh.NewOption("Lexical (token scan)", string(query.NameLexical)),
					huh.NewOption("Tree-sitter (SQL grammar)", string(query.NameTreeSitter)),
				).
				Value(&extractor),
			huh.NewConfirm().
				Title("Conflict queries").
				Description("Check dependences in both directions by default?").
				Affirmative("Symmetric").
				Negative("One direction").
				Value(&cfg.Symmetric),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Extractor = query.Name(extractor)

	// === SECTION 2: Result table ===
	maxTracked := strconv.Itoa(cfg.MaxTracked)
	maxDOTBytes := strconv.Itoa(cfg.MaxDOTBytes)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Maximum tracked graphs").
				Placeholder(maxTracked).
				Validate(positiveInt(config.MinMaxTracked)).
				Value(&maxTracked),
			huh.NewInput().
				Title("Maximum DOT size in bytes").
				Placeholder(maxDOTBytes).
				Validate(positiveInt(1)).
				Value(&maxDOTBytes),
			huh.NewInput().
				Title("Result table file").
				Placeholder(cfg.StorePath).
				Value(&cfg.StorePath),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.MaxTracked, _ = strconv.Atoi(maxTracked)
	cfg.MaxDOTBytes, _ = strconv.Atoi(maxDOTBytes)

	// === SECTION 3: Server ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen address").
				Placeholder(cfg.ListenAddr).
				Value(&cfg.ListenAddr),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 4: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.plsqlgraph/config.yaml)", "global"),
					huh.NewOption("Project (./.plsqlgraph/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		configPath = filepath.Join(home, ".plsqlgraph", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Extractor: %s\n", cfg.Extractor)
	fmt.Printf("Symmetric conflicts: %v\n", cfg.Symmetric)
	fmt.Printf("Max tracked: %d\n", cfg.MaxTracked)
	fmt.Printf("Max DOT bytes: %d\n", cfg.MaxDOTBytes)
	fmt.Printf("Result table: %s\n", cfg.StorePath)
	fmt.Printf("Listen address: %s\n", cfg.ListenAddr)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)

	// Read the file back the way later runs will
	if _, err := config.LoadFromFile(configPath); err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}
	fmt.Println("\n=== Initialization Complete ===")
	return nil
}

// positiveInt validates an input holding an integer no smaller than least.
func positiveInt(least int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not a number: %s", s)
		}
		if v < least {
			return fmt.Errorf("must be at least %d", least)
		}
		return nil
	}
}

func init() {
	RootCmd.AddCommand(initCmd)
}
