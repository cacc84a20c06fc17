package protocols_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingzone/wotlib-go/api"
	"github.com/thingzone/wotlib-go/pkg/protocols"
)

func TestAwaitInvocation(t *testing.T) {
	statuses := make(chan protocols.InvocationStatus, 3)
	statuses <- protocols.InvocationStatus{ID: "inv-1", Done: false}
	statuses <- protocols.InvocationStatus{ID: "inv-1", Done: false}
	statuses <- protocols.InvocationStatus{ID: "inv-1", Done: true, Result: "on"}

	result, err := protocols.AwaitInvocation(context.Background(), "toggle", statuses)
	require.NoError(t, err)
	assert.Equal(t, "on", result)
}

func TestAwaitInvocationRemoteError(t *testing.T) {
	statuses := make(chan protocols.InvocationStatus, 1)
	// an error wins even when a result is present alongside it
	statuses <- protocols.InvocationStatus{
		Done: true, Result: "partial", Error: "lamp is unplugged",
	}

	result, err := protocols.AwaitInvocation(context.Background(), "toggle", statuses)
	assert.Nil(t, result)
	var remoteErr *api.RemoteInvocationError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "toggle", remoteErr.ActionName)
	assert.Equal(t, "lamp is unplugged", remoteErr.Message)
}

func TestAwaitInvocationCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	statuses := make(chan protocols.InvocationStatus)
	_, err := protocols.AwaitInvocation(ctx, "toggle", statuses)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
