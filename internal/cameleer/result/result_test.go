package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOk_CarriesValueNotError(t *testing.T) {
	r := Ok(42)
	assert.Equal(t, 42, r.Value)
	assert.False(t, r.IsError)
	assert.Empty(t, r.ErrText)
}

func TestErr_CarriesCauseAndText(t *testing.T) {
	cause := errors.New("boom")
	r := Err(cause)
	assert.True(t, r.IsError)
	assert.Equal(t, "boom", r.ErrText)
	assert.Same(t, cause, r.Unwrap())
}
