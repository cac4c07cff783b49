package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanProcess(t *testing.T) {
	assert.True(t, CanProcess("application/pdf"))
	assert.False(t, CanProcess("image/png"))
}

func TestInspect_RejectsGarbage(t *testing.T) {
	data := []byte("this is not a pdf document at all")
	_, err := Inspect(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrUnreadable)
}
