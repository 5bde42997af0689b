package metrics

import (
	"io/ioutil"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	t.Parallel()
	m := New("gateway")
	m.FrameIn("DataRequest")
	m.FrameIn("DataRequest")
	m.FrameOut("Announcement")
	m.Drop(DropRegistryFull)
	m.IdentityAssigned(3)
	m.RecordsOut(60)
	m.Sample()
	m.UplinkError()
	m.SetForwardPending(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesIn.WithLabelValues("DataRequest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesOut.WithLabelValues("Announcement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped.WithLabelValues(DropRegistryFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Identities))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RegistrySize))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.Records))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Samples))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UplinkErrors))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ForwardPending))
	m.SetRegistrySize(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RegistrySize))
}

func TestNilSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.FrameIn("x")
	m.FrameOut("x")
	m.Drop("x")
	m.IdentityAssigned(1)
	m.SetRegistrySize(1)
	m.RecordsOut(1)
	m.Sample()
	m.UplinkError()
	m.SetForwardPending(1)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := New("leaf")
	m.Sample()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `dustnet_samples_total{role="leaf"} 1`)
}
