package pipe_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/danbao/testring-sub000/internal/domain/transport"
	"github.com/danbao/testring-sub000/internal/infrastructure/transport/pipe"
)

func TestLink_SendRecvRoundTrip(t *testing.T) {
	r, w := io.Pipe()
	sender := pipe.New(nil, w)
	receiver := pipe.New(r, nil)

	env := domain.Envelope{Type: "test.execute", SourceID: "controller", DestID: "worker-1", RequestID: "req-1", Payload: []byte("hello")}

	errCh := make(chan error, 1)
	go func() { errCh <- sender.Send(context.Background(), env) }()

	got, err := receiver.Recv(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.Equal(t, env.Type, got.Type)
	assert.Equal(t, env.SourceID, got.SourceID)
	assert.Equal(t, env.DestID, got.DestID)
	assert.Equal(t, env.RequestID, got.RequestID)
	assert.Equal(t, env.Payload, got.Payload)
}

func TestLink_RecvErrorMarksClosed(t *testing.T) {
	r, w := io.Pipe()
	receiver := pipe.New(r, nil)

	_ = w.Close()

	_, err := receiver.Recv(context.Background())
	assert.Error(t, err)

	select {
	case <-receiver.Closed():
	case <-time.After(time.Second):
		t.Fatal("Closed() did not fire after Recv error")
	}
}
