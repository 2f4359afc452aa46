package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-mill/internal/inventory"
	"github.com/odyssey-erp/odyssey-mill/internal/platform/db"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Product ledger tooling",
}

var ledgerExportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write an owner's product ledger to an XLSX file",
	Example: "  odysseyctl ledger export --owner budi --product Sirup --from 2024-03-01 --to 2024-03-31 --out sirup.xlsx",
	RunE:    runLedgerExport,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerExportCmd)
	ledgerExportCmd.Flags().String("owner", "", "owner username")
	ledgerExportCmd.Flags().String("product", "", "finished good name, empty for every product")
	ledgerExportCmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	ledgerExportCmd.Flags().String("to", "", "end date (YYYY-MM-DD)")
	ledgerExportCmd.Flags().String("out", "ledger.xlsx", "output file")
	_ = ledgerExportCmd.MarkFlagRequired("owner")
}

func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s, use YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

func runLedgerExport(cmd *cobra.Command, _ []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	product, _ := cmd.Flags().GetString("product")
	out, _ := cmd.Flags().GetString("out")
	from, err := parseDateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := parseDateFlag(cmd, "to")
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	svc := inventory.NewService(inventory.NewRepository(pool), nil, nil, inventory.ServiceConfig{})
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := svc.ExportLedger(ctx, owner, inventory.Filter{Name: product, From: from, To: to}, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	return nil
}
