package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitLinkUp(t *testing.T) {
	link := &fakeLink{}
	require.NoError(t, awaitLink(context.Background(), link, time.Hour, discardLogger()))
	assert.Equal(t, 1, link.calls)
}

func TestAwaitLinkWaitsUntilUp(t *testing.T) {
	link := &fakeLink{states: []bool{false, false, false, true}}
	require.NoError(t, awaitLink(context.Background(), link, time.Millisecond, discardLogger()))
	assert.Equal(t, 4, link.calls)
}

func TestAwaitLinkCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	link := &fakeLink{states: make([]bool, 1000)}
	err := awaitLink(ctx, link, 5*time.Millisecond, discardLogger())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
