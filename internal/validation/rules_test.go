package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/panvault/internal/errors"
)

func TestNotBlank(t *testing.T) {
	assert.NoError(t, NotBlank.Validate("value"))
	assert.Error(t, NotBlank.Validate("   "))
	assert.Error(t, NotBlank.Validate(""))
}

func TestHpan(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	assert.NoError(t, Hpan.Validate(valid))
	assert.Error(t, Hpan.Validate(strings.Repeat("ab", 31)))
	assert.Error(t, Hpan.Validate(strings.ToUpper(valid)))
	assert.Error(t, Hpan.Validate("not-hex"))
}

func TestPan(t *testing.T) {
	assert.NoError(t, Pan.Validate("4111111111111111"))
	assert.NoError(t, Pan.Validate("4111111111111"))       // 13 digits
	assert.NoError(t, Pan.Validate("4111111111111111111")) // 19 digits
	assert.Error(t, Pan.Validate("411111111111"))          // 12 digits
	assert.Error(t, Pan.Validate("41111111111111111111"))  // 20 digits
	assert.Error(t, Pan.Validate("4111-1111-1111-1111"))
	assert.Error(t, Pan.Validate(""))
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(Pan.Validate("abc"))
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}
