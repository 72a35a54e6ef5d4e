package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/bootstrap"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// NewReferenceCmd groups reference data maintenance.
func NewReferenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage reference data in object storage",
	}
	cmd.AddCommand(newReferencePublishCmd())
	return cmd
}

func newReferencePublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Upload the compiled-in reference tables and registry snapshots to MinIO",
		Long: "publish seeds the configured bucket with the reference tables and\n" +
			"registry snapshots embedded in this binary, so that servers started\n" +
			"with reference.source=minio have data to load.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cliCtx, err := commandContext(cmd)
			if err != nil {
				return err
			}
			defer cancel()

			cliCtx.newApp = func(ctx context.Context) (*bootstrap.App, error) {
				return bootstrap.Build(ctx, cliCtx.Config, cliCtx.Logger, bootstrap.WithoutKafka(), bootstrap.WithMinIO())
			}
			app, err := cliCtx.App(ctx)
			if err != nil {
				return err
			}
			if app.MinIO == nil {
				return errors.New(errors.ErrCodeConfigInvalid, "minio is not configured")
			}
			uploaded, err := app.MinIO.PublishEmbedded(ctx)
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == "json" {
				return PrintResult(cmd, map[string]interface{}{"uploaded": uploaded})
			}
			PrintSuccess(cmd, fmt.Sprintf("uploaded %d objects: %s", len(uploaded), strings.Join(uploaded, ", ")))
			return nil
		},
	}
}
