package app

import (
	"fmt"

	auditRepository "github.com/allisson/panvault/internal/audit/repository"
	auditService "github.com/allisson/panvault/internal/audit/service"
	panHTTP "github.com/allisson/panvault/internal/pan/http"
	panRepository "github.com/allisson/panvault/internal/pan/repository"
	panService "github.com/allisson/panvault/internal/pan/service"
	panUsecase "github.com/allisson/panvault/internal/pan/usecase"
)

// PanHasher returns the keyed PAN hasher.
func (c *Container) PanHasher() (*panService.HmacHasher, error) {
	var err error
	c.panHasherInit.Do(func() {
		c.panHasher, err = c.initPanHasher()
		if err != nil {
			c.initErrors["panHasher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["panHasher"]; exists {
		return nil, storedErr
	}
	return c.panHasher, nil
}

// PanRepository returns the encrypted PAN repository based on the database driver.
func (c *Container) PanRepository() (panUsecase.PanRepository, error) {
	var err error
	c.panRepoInit.Do(func() {
		c.panRepo, err = c.initPanRepository()
		if err != nil {
			c.initErrors["panRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["panRepo"]; exists {
		return nil, storedErr
	}
	return c.panRepo, nil
}

// AuditRepository returns the decrypt audit log repository based on the database driver.
func (c *Container) AuditRepository() (panUsecase.AuditRepository, error) {
	var err error
	c.auditRepoInit.Do(func() {
		c.auditRepo, err = c.initAuditRepository()
		if err != nil {
			c.initErrors["auditRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["auditRepo"]; exists {
		return nil, storedErr
	}
	return c.auditRepo, nil
}

// PanUseCase returns the PAN protection use case.
func (c *Container) PanUseCase() (panUsecase.PanUseCase, error) {
	var err error
	c.panUseCaseInit.Do(func() {
		c.panUseCase, err = c.initPanUseCase()
		if err != nil {
			c.initErrors["panUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["panUseCase"]; exists {
		return nil, storedErr
	}
	return c.panUseCase, nil
}

// PanHandler returns the HTTP handler for PAN operations.
func (c *Container) PanHandler() (*panHTTP.PanHandler, error) {
	var err error
	c.panHandlerInit.Do(func() {
		c.panHandler, err = c.initPanHandler()
		if err != nil {
			c.initErrors["panHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["panHandler"]; exists {
		return nil, storedErr
	}
	return c.panHandler, nil
}

// initPanHasher creates the keyed hasher over the process-wide HMAC secret.
func (c *Container) initPanHasher() (*panService.HmacHasher, error) {
	key, err := c.HmacKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get hmac key for pan hasher: %w", err)
	}
	return panService.NewHmacHasher(key), nil
}

// initPanRepository creates the encrypted PAN repository for the configured driver.
func (c *Container) initPanRepository() (panUsecase.PanRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for pan repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return panRepository.NewMySQLPanRepository(db), nil
	case "postgres":
		return panRepository.NewPostgreSQLPanRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditRepository creates the decrypt audit log repository for the configured driver.
func (c *Container) initAuditRepository() (panUsecase.AuditRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return auditRepository.NewMySQLAuditRepository(db), nil
	case "postgres":
		return auditRepository.NewPostgreSQLAuditRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initPanUseCase creates the PAN protection use case with all its dependencies,
// wrapped with metrics instrumentation.
func (c *Container) initPanUseCase() (panUsecase.PanUseCase, error) {
	panRepo, err := c.PanRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get pan repository for pan use case: %w", err)
	}

	auditRepo, err := c.AuditRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit repository for pan use case: %w", err)
	}

	hasher, err := c.PanHasher()
	if err != nil {
		return nil, fmt.Errorf("failed to get hasher for pan use case: %w", err)
	}

	cipher, err := c.PanCipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get pan cipher for pan use case: %w", err)
	}

	keyring, err := c.Keyring()
	if err != nil {
		return nil, fmt.Errorf("failed to get keyring for pan use case: %w", err)
	}

	hmacKey, err := c.HmacKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get hmac key for pan use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for pan use case: %w", err)
	}

	useCase := panUsecase.NewPanProtectionUseCase(
		panRepo,
		auditRepo,
		hasher,
		cipher,
		keyring,
		auditService.NewAuditSigner(),
		hmacKey,
		c.Logger(),
	)

	return panUsecase.NewPanUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initPanHandler creates the HTTP handler for PAN operations.
func (c *Container) initPanHandler() (*panHTTP.PanHandler, error) {
	panUseCase, err := c.PanUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get pan use case for pan handler: %w", err)
	}
	return panHTTP.NewPanHandler(panUseCase, c.Logger()), nil
}
