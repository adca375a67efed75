package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
	cryptoService "github.com/allisson/panvault/internal/crypto/service"
	cryptoUsecase "github.com/allisson/panvault/internal/crypto/usecase"
)

// RunCreateDek pre-generates unlocked data keys so a later rotation can claim
// one instead of calling the master key service. Useful before a planned KMS
// maintenance window.
//
// The plaintext half of each generated key is zeroed immediately; only the
// wrapped form is stored.
func RunCreateDek(
	ctx context.Context,
	dekRepo cryptoUsecase.DekRepository,
	masterKey cryptoService.MasterKeyClient,
	logger *slog.Logger,
	writer io.Writer,
	count int,
	format string,
) error {
	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}

	logger.Info("pre-generating data keys", slog.Int("count", count))

	created := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		plaintext, wrapped, err := masterKey.GenerateDataKey(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate data key: %w", err)
		}
		// Only the wrapped form is needed here
		cryptoDomain.Zero(plaintext)

		dek := &cryptoDomain.Dek{
			ID:           uuid.Must(uuid.NewV7()),
			WrappedKey:   wrapped,
			RotationLock: false,
		}

		if err := dekRepo.Create(ctx, dek); err != nil {
			return fmt.Errorf("failed to store data key: %w", err)
		}
		created = append(created, dek.ID)
	}

	if format == "json" {
		result := map[string]interface{}{
			"created_count": len(created),
			"dek_ids":       created,
		}
		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(writer, string(jsonBytes))
	} else {
		_, _ = fmt.Fprintf(writer, "Created %d unlocked data key(s):\n", len(created))
		for _, id := range created {
			_, _ = fmt.Fprintf(writer, "  - %s\n", id)
		}
	}

	logger.Info("data keys created", slog.Int("count", len(created)))
	return nil
}
