package notify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
)

func TestConnect_UnreachableServer(t *testing.T) {
	pub, err := Connect("nats://127.0.0.1:1", "rocket.builds", slog.Default())
	require.Error(t, err)
	assert.Nil(t, pub)
	assert.True(t, rerrors.IsCategory(err, rerrors.CategoryNetwork))
	assert.True(t, rerrors.IsRetryable(err))
}

func TestPublish_UnmarshalableReport(t *testing.T) {
	// Marshal failure is caught before the connection is touched, so a
	// zero Publisher is enough to exercise it.
	pub := &Publisher{subject: "rocket.builds", logger: slog.Default()}

	err := pub.Publish(context.Background(), map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.True(t, rerrors.IsCategory(err, rerrors.CategoryInternal))
}

func TestClose_NilSafe(t *testing.T) {
	var pub *Publisher
	pub.Close()

	(&Publisher{}).Close()
}
