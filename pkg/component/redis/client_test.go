package redis

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisopts "github.com/smaxiso/portfolio-rag/pkg/options/redis"
)

func optionsFor(t *testing.T, addr string) *redisopts.Options {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	opts := redisopts.NewOptions()
	opts.Enabled = true
	opts.Host = host
	opts.Port = p
	return opts
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(t.Context(), optionsFor(t, mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(t.Context(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	opts := optionsFor(t, addr)
	opts.DialTimeout = 200 * time.Millisecond
	opts.MaxRetries = -1

	_, err := New(t.Context(), opts)
	assert.ErrorContains(t, err, "failed to ping redis")
}

func TestNewRejectsNilOptions(t *testing.T) {
	_, err := New(t.Context(), nil)
	assert.Error(t, err)
}
