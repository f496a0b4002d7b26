package auth

import (
	"net/http"
	"testing"

	"customerportal/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "Str0ng!Pass"))
	assert.False(t, CheckPassword(hash, "str0ng!pass"))
	assert.False(t, CheckPassword("", "Str0ng!Pass"))
}

func TestValidatePasswordPolicy(t *testing.T) {
	assert.NoError(t, ValidatePasswordPolicy("Str0ng!Pass"))

	for _, weak := range []string{"Sh0rt!", "alllower1!", "ALLUPPER1!", "NoDigits!!", "NoSymbol12"} {
		err := ValidatePasswordPolicy(weak)
		require.Error(t, err, weak)
		assert.Equal(t, http.StatusBadRequest, common.HTTPStatusFor(err), weak)
	}
}
