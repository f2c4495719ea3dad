package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

func TestNewValidHandle(t *testing.T) {
	id, err := New(KindHandle, "render_step1")
	require.NoError(t, err)
	assert.Equal(t, "render_step1", id.String())
	assert.Equal(t, KindHandle, id.Kind())
}

func TestNewRejectsUppercase(t *testing.T) {
	_, err := New(KindHandle, "Render")
	require.Error(t, err)
	assert.Equal(t, slerr.CodeValidationFailed, slerr.CodeOf(err))
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(KindPublisher, "")
	require.Error(t, err)
}

func TestNewRejectsTooLong(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	_, err := New(KindRigName, string(long))
	require.Error(t, err)
}

func TestMustNewPanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustNew(KindHandle, "123bad") })
}

func TestIsZero(t *testing.T) {
	var id Identifier
	assert.True(t, id.IsZero())
	id2 := MustNew(KindHandle, "a")
	assert.False(t, id2.IsZero())
}
