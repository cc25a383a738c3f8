package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/puddle/internal/config"
	"github.com/zulandar/puddle/internal/db"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Puddle database",
		Long:  "Creates the database if needed, migrates all tables and seeds the configured categories.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config for site %q from %s\n", cfg.Site, configPath)

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close(adminDB)
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready at %s:%d\n", cfg.Database.Name, cfg.Database.Host, cfg.Database.Port)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nPuddle database initialized successfully.")
	return nil
}

func migrateAndSeed(cmd *cobra.Command, gormDB *gorm.DB, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedCategories(gormDB, cfg.Categories); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d categories:", len(cfg.Categories))
	for _, name := range cfg.Categories {
		fmt.Fprintf(out, " %s", name)
	}
	fmt.Fprintln(out)
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Puddle database",
		Long: `Drops every Puddle table (or the whole MySQL database) and re-creates
the schema and seed categories from config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	target := cfg.Database.Name
	if cfg.Database.Driver == "sqlite" {
		target = cfg.Database.Path
	}

	if !skipConfirm && !confirmReset(cmd, target) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close(adminDB)
		if err := db.DropDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped database %s\n", cfg.Database.Name)
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s re-created\n", cfg.Database.Name)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if cfg.Database.Driver == "sqlite" {
		if err := db.DropAll(gormDB); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped all tables in %s\n", cfg.Database.Path)
	}

	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nPuddle database reset successfully.")
	return nil
}

// confirmReset prompts the user to type "yes" before a destructive reset.
func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

