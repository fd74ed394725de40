package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/violation.report/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect and change the database schema version",
}

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, _ []string) error {
				if err := d.MigrateUp(db.MigrationsFS()); err != nil {
					return err
				}
				return printStatus(cmd, d)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, _ []string) error {
				if err := d.MigrateDown(db.MigrationsFS()); err != nil {
					return err
				}
				return printStatus(cmd, d)
			}),
		},
		&cobra.Command{
			Use:   "to VERSION",
			Short: "Migrate up or down to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				if err := d.MigrateTo(db.MigrationsFS(), uint(v)); err != nil {
					return err
				}
				return printStatus(cmd, d)
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the version without running migrations, clearing the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				if err := d.MigrateForce(db.MigrationsFS(), v); err != nil {
					return err
				}
				return printStatus(cmd, d)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show current and latest schema versions",
			Args:  cobra.NoArgs,
			RunE: withRawDB(func(cmd *cobra.Command, d *db.DB, _ []string) error {
				return printStatus(cmd, d)
			}),
		},
	)
}

// withRawDB opens --db without migrating it.
func withRawDB(fn func(*cobra.Command, *db.DB, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		d, err := db.OpenDB(globalFlags.dbPath)
		if err != nil {
			return err
		}
		defer d.Close()
		return fn(cmd, d, args)
	}
}

func printStatus(cmd *cobra.Command, d *db.DB) error {
	st, err := d.Status(db.MigrationsFS())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		db.MigrationStatus
		Pending bool `json:"pending"`
	}{st, st.Pending()})
}
