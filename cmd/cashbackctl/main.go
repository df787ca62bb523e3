package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/msdeveloper2k/cashback-zone/internal/app"
	"github.com/msdeveloper2k/cashback-zone/internal/config"
	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/providers"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/services"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "cashbackctl",
		Short:   "Operational commands for Cashback Zone",
		Version: Version,
	}

	rootCmd.AddCommand(processPendingCmd())
	rootCmd.AddCommand(quotaStatusCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads config and connects without applying the schema.
func bootstrap() (*app.App, error) {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()
	cfg.AutoMigrate = false
	return app.NewApp(cfg)
}

func phoneService(a *app.App) (services.PhoneVerificationService, error) {
	validators, err := providers.Build(a.Config, providers.NewHTTPClient())
	if err != nil {
		return nil, err
	}
	return services.NewPhoneVerificationService(
		services.NewProviderSlots(a.Config, validators),
		repositories.NewMobileValidationRepository(a.DB),
		repositories.NewAPIUsageRepository(a.DB),
		repositories.NewPendingVerificationRepository(a.DB),
		repositories.NewAPILogRepository(a.DB),
		repositories.NewProfileRepository(a.DB),
		services.NewMailer(a.Config),
		nil,
	), nil
}

func processPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-pending-verifications",
		Short: "Retry every open mobile verification once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := phoneService(a)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), constants.PendingVerificationJobTimeout)
			defer cancel()

			report, err := svc.ProcessPendingVerifications(ctx)
			if err != nil {
				return err
			}
			if report.Skipped {
				fmt.Println("Skipped: every provider has reached its monthly quota")
				return nil
			}
			fmt.Printf("Checked %d: %d verified, %d rejected, %d still pending, %d superseded\n",
				report.Checked, report.Verified, report.Rejected, report.StillPending, report.Superseded)
			return nil
		},
	}
}

func quotaStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota-status",
		Short: "Show this month's usage for each phone validation provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := phoneService(a)
			if err != nil {
				return err
			}
			status, err := svc.ProviderStatus(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tUSED\tREQUEST LIMIT\tFREE LIMIT\tEXHAUSTED\tLAST RESET")
			for _, s := range status {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%t\t%s\n",
					s.Name, s.RequestCount, s.RequestLimit, s.FreeLimit, s.Exhausted, s.LastReset.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return app.Migrate(ctx, a.DB)
		},
	}
}
