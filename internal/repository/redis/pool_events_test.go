package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayRefresh_CallsHandlerPerMessage(t *testing.T) {
	// Arrange
	messages := make(chan *redis.Message, 2)
	messages <- &redis.Message{Channel: poolRefreshChannel, Payload: "refresh"}
	messages <- &redis.Message{Channel: poolRefreshChannel, Payload: "refresh"}
	close(messages)
	var calls atomic.Int32

	// Act
	relayRefresh(context.Background(), messages, func() { calls.Add(1) })

	// Assert
	assert.Equal(t, int32(2), calls.Load())
}

func TestRelayRefresh_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relayRefresh(ctx, make(chan *redis.Message), func() {})
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relayRefresh не завершился после отмены контекста")
	}
}

func TestNewPoolEvents_ChannelUsesPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	events, err := NewPoolEvents(client, "frontquiz")
	require.NoError(t, err)
	assert.Equal(t, "frontquiz:quiz:pool:refresh", events.Channel())

	events, err = NewPoolEvents(client, "")
	require.NoError(t, err)
	assert.Equal(t, "quiz:pool:refresh", events.Channel())

	_, err = NewPoolEvents(nil, "x")
	assert.Error(t, err)
}
