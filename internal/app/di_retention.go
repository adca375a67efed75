package app

import (
	"fmt"

	retentionUsecase "github.com/allisson/panvault/internal/retention/usecase"
)

// Sweeper returns the retention sweeper use case.
func (c *Container) Sweeper() (*retentionUsecase.SweeperUseCase, error) {
	var err error
	c.sweeperInit.Do(func() {
		c.sweeper, err = c.initSweeper()
		if err != nil {
			c.initErrors["sweeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sweeper"]; exists {
		return nil, storedErr
	}
	return c.sweeper, nil
}

// initSweeper creates the retention sweeper with all its dependencies.
func (c *Container) initSweeper() (*retentionUsecase.SweeperUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for sweeper: %w", err)
	}

	panRepo, err := c.PanRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get pan repository for sweeper: %w", err)
	}

	dekRepo, err := c.DekRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get dek repository for sweeper: %w", err)
	}

	sweeperConfig := retentionUsecase.Config{
		Horizon:        c.config.RetentionHorizon,
		DekGracePeriod: c.config.RetentionDekGracePeriod,
		SweepInterval:  c.config.RetentionSweepInterval,
	}

	return retentionUsecase.NewSweeperUseCase(
		sweeperConfig,
		txManager,
		panRepo,
		dekRepo,
		c.Logger(),
	), nil
}
