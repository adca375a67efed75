package commands

import (
	"fmt"
	"io"

	panService "github.com/allisson/panvault/internal/pan/service"
)

// RunHashPan computes the keyed hash of a card number and prints it.
// Intended for operational lookups: the HPAN is the primary key of the
// encrypted PAN store and is safe to share, the card number is not.
func RunHashPan(hasher panService.Hasher, writer io.Writer, pan string) error {
	hpan, err := hasher.Hash(pan)
	if err != nil {
		return fmt.Errorf("failed to hash pan: %w", err)
	}

	_, _ = fmt.Fprintln(writer, hpan)
	return nil
}
