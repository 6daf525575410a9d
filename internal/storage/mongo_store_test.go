package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestConnectMongoDB_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := ConnectMongoDB(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200", "testdb")
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "ping mongodb")
}

func TestConnectMongo_DisconnectsWhenPingFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var poolClosed atomic.Bool
	opts := options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(200 * time.Millisecond).
		SetPoolMonitor(&event.PoolMonitor{
			Event: func(e *event.PoolEvent) {
				if e.Type == event.PoolClosedEvent {
					poolClosed.Store(true)
				}
			},
		})

	_, err := connectMongo(ctx, opts, "testdb")
	require.Error(t, err)
	assert.True(t, poolClosed.Load(), "client left connected after failed ping")
}
