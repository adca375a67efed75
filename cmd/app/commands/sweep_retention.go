package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	retentionUsecase "github.com/allisson/panvault/internal/retention/usecase"
)

// retentionSweeper abstracts the sweeper for testability.
type retentionSweeper interface {
	Sweep(ctx context.Context, dryRun bool) (*retentionUsecase.Result, error)
}

// RunSweepRetention runs one retention pass: expired encrypted PANs are
// deleted, then data keys no surviving PAN references. With dry-run the
// transaction rolls back and only the counts are reported.
func RunSweepRetention(
	ctx context.Context,
	sweeper retentionSweeper,
	logger *slog.Logger,
	writer io.Writer,
	dryRun bool,
	format string,
) error {
	logger.Info("running retention sweep", slog.Bool("dry_run", dryRun))

	result, err := sweeper.Sweep(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("retention sweep failed: %w", err)
	}

	if format == "json" {
		output := map[string]interface{}{
			"pans_deleted": result.PansDeleted,
			"deks_deleted": result.DeksDeleted,
			"dry_run":      result.DryRun,
		}
		jsonBytes, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(writer, string(jsonBytes))
	} else {
		action := "Deleted"
		if result.DryRun {
			action = "Would delete"
		}
		_, _ = fmt.Fprintf(writer, "Retention Sweep\n")
		_, _ = fmt.Fprintf(writer, "===============\n\n")
		_, _ = fmt.Fprintf(writer, "%s %d expired PAN record(s)\n", action, result.PansDeleted)
		_, _ = fmt.Fprintf(writer, "%s %d orphaned data key(s)\n", action, result.DeksDeleted)
	}

	return nil
}
