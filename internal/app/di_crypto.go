package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/panvault/internal/reliability"

	cryptoDomain "github.com/allisson/panvault/internal/crypto/domain"
	cryptoRepository "github.com/allisson/panvault/internal/crypto/repository"
	cryptoService "github.com/allisson/panvault/internal/crypto/service"
	cryptoUsecase "github.com/allisson/panvault/internal/crypto/usecase"
)

// HmacKey returns the process-wide HMAC secret, loaded once from the
// configured source (Vault or environment). The same 32-byte secret is
// replicated to every region, keeping hashed PANs identical everywhere.
func (c *Container) HmacKey() ([]byte, error) {
	var err error
	c.hmacKeyInit.Do(func() {
		c.hmacKey, err = c.initHmacKey()
		if err != nil {
			c.initErrors["hmacKey"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["hmacKey"]; exists {
		return nil, storedErr
	}
	return c.hmacKey, nil
}

// MasterKey returns the master key client for the regional KMS.
func (c *Container) MasterKey() (cryptoService.MasterKeyClient, error) {
	var err error
	c.masterKeyInit.Do(func() {
		c.masterKey, err = c.initMasterKey()
		if err != nil {
			c.initErrors["masterKey"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["masterKey"]; exists {
		return nil, storedErr
	}
	return c.masterKey, nil
}

// PanCipher returns the PAN cipher for the configured AEAD algorithm.
func (c *Container) PanCipher() (cryptoService.PanCipher, error) {
	var err error
	c.panCipherInit.Do(func() {
		c.panCipher, err = c.initPanCipher()
		if err != nil {
			c.initErrors["panCipher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["panCipher"]; exists {
		return nil, storedErr
	}
	return c.panCipher, nil
}

// Breaker returns the circuit breaker guarding master key service calls.
func (c *Container) Breaker() (*reliability.CircuitBreaker, error) {
	var err error
	c.breakerInit.Do(func() {
		c.breaker, err = c.initBreaker()
		if err != nil {
			c.initErrors["breaker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["breaker"]; exists {
		return nil, storedErr
	}
	return c.breaker, nil
}

// StoreBreaker returns the circuit breaker guarding DEK store interactions
// on the rotation path.
func (c *Container) StoreBreaker() (*reliability.CircuitBreaker, error) {
	var err error
	c.storeBreakerInit.Do(func() {
		c.storeBreaker, err = c.initStoreBreaker()
		if err != nil {
			c.initErrors["storeBreaker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["storeBreaker"]; exists {
		return nil, storedErr
	}
	return c.storeBreaker, nil
}

// DekRepository returns the DEK repository based on the database driver.
func (c *Container) DekRepository() (cryptoUsecase.DekRepository, error) {
	var err error
	c.dekRepoInit.Do(func() {
		c.dekRepo, err = c.initDekRepository()
		if err != nil {
			c.initErrors["dekRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dekRepo"]; exists {
		return nil, storedErr
	}
	return c.dekRepo, nil
}

// Keyring returns the keyring use case holding the process current key.
func (c *Container) Keyring() (cryptoUsecase.Keyring, error) {
	var err error
	c.keyringInit.Do(func() {
		c.keyring, err = c.initKeyring()
		if err != nil {
			c.initErrors["keyring"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyring"]; exists {
		return nil, storedErr
	}
	return c.keyring, nil
}

// initHmacKey loads the HMAC secret from the configured source.
func (c *Container) initHmacKey() ([]byte, error) {
	var store cryptoService.SecretStore

	switch c.config.HmacKeySource {
	case "vault":
		vaultStore, err := cryptoService.NewVaultSecretStore(
			c.config.VaultAddress,
			c.config.VaultToken,
			c.config.VaultHmacKeyPath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create vault secret store: %w", err)
		}
		store = vaultStore
	case "env":
		store = cryptoService.NewEnvSecretStore(c.config.HmacKeyEnv)
	default:
		return nil, fmt.Errorf("unsupported hmac key source: %s", c.config.HmacKeySource)
	}

	key, err := store.LoadHmacKey(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load hmac key: %w", err)
	}
	return key, nil
}

// initMasterKey opens the KMS keeper for the regional master key URI.
func (c *Container) initMasterKey() (cryptoService.MasterKeyClient, error) {
	client, err := cryptoService.NewMasterKeyClient(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key client: %w", err)
	}
	return client, nil
}

// initPanCipher creates the PAN cipher for the configured algorithm.
func (c *Container) initPanCipher() (cryptoService.PanCipher, error) {
	algorithm, err := cryptoDomain.ParseAlgorithm(c.config.CipherAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid cipher algorithm: %w", err)
	}
	return cryptoService.NewPanCipher(cryptoService.NewAEADManager(), algorithm), nil
}

// initBreaker creates the master key circuit breaker.
func (c *Container) initBreaker() (*reliability.CircuitBreaker, error) {
	return c.newBreaker("master_key")
}

// initStoreBreaker creates the DEK store circuit breaker. A separate breaker
// keeps KMS and database failure domains apart.
func (c *Container) initStoreBreaker() (*reliability.CircuitBreaker, error) {
	return c.newBreaker("dek_store")
}

// newBreaker creates a circuit breaker with state transitions logged and
// recorded as metrics.
func (c *Container) newBreaker(name string) (*reliability.CircuitBreaker, error) {
	logger := c.Logger()

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for breaker: %w", err)
	}

	return reliability.New(name, reliability.Config{
		WindowSize:  c.config.BreakerWindowSize,
		FailureRate: c.config.BreakerFailureRate,
		Cooldown:    c.config.BreakerCooldown,
		HalfOpenMax: c.config.BreakerHalfOpenMax,
		OnStateChange: func(name string, from, to reliability.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			businessMetrics.RecordBreakerState(context.Background(), name, to.String())
		},
	}), nil
}

// initDekRepository creates the DEK repository for the configured driver.
func (c *Container) initDekRepository() (cryptoUsecase.DekRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for dek repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return cryptoRepository.NewMySQLDekRepository(db), nil
	case "postgres":
		return cryptoRepository.NewPostgreSQLDekRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initKeyring creates the keyring use case with all its dependencies.
func (c *Container) initKeyring() (cryptoUsecase.Keyring, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for keyring: %w", err)
	}

	dekRepo, err := c.DekRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get dek repository for keyring: %w", err)
	}

	masterKey, err := c.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key client for keyring: %w", err)
	}

	breaker, err := c.Breaker()
	if err != nil {
		return nil, fmt.Errorf("failed to get breaker for keyring: %w", err)
	}

	storeBreaker, err := c.StoreBreaker()
	if err != nil {
		return nil, fmt.Errorf("failed to get store breaker for keyring: %w", err)
	}

	keyringConfig := cryptoUsecase.Config{
		RotationInterval:  c.config.RotationInterval,
		RecentWindow:      c.config.RotationRecentWindow,
		InitRetryInterval: c.config.InitRetryInterval,
	}

	return cryptoUsecase.NewKeyringUseCase(
		keyringConfig,
		txManager,
		dekRepo,
		masterKey,
		breaker,
		storeBreaker,
		c.Logger(),
	), nil
}
