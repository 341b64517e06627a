package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/agrisense/internal/conf"
)

func TestServerShutdownStopsGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		// go-cache janitors are stopped by a finalizer only
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)

	settings := &conf.Settings{}
	settings.WebServer.Host = "127.0.0.1"
	settings.WebServer.Port = "0"
	s, _ := newTestServer(t, settings)

	s.Start()
	require.Eventually(t, func() bool { return s.Echo().ListenerAddr() != nil }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Echo().ListenerAddr().String() + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())
	http.DefaultClient.CloseIdleConnections()

	require.NoError(t, s.Shutdown())
}
