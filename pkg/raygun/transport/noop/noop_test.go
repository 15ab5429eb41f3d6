package noop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSender_Discards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, New().Send(ctx, "https://example.invalid", []byte(`{}`)))
	assert.NoError(t, New().Send(context.Background(), "", nil))
}
