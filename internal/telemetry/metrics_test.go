package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIdempotentAndRecords(t *testing.T) {
	Init()
	Init()

	ObserveOBSRequest("GetSceneList", 20*time.Millisecond, nil)
	ObserveOBSRequest("GetSceneList", 5*time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(OBSRequests.WithLabelValues("GetSceneList", "ok")); got != 1 {
		t.Fatalf("ok requests = %v; want 1", got)
	}
	if got := testutil.ToFloat64(OBSRequests.WithLabelValues("GetSceneList", "error")); got != 1 {
		t.Fatalf("error requests = %v; want 1", got)
	}

	RecordSwitch("confirmed")
	if got := testutil.ToFloat64(SceneSwitches.WithLabelValues("confirmed")); got != 1 {
		t.Fatalf("switches = %v; want 1", got)
	}

	SetOBSConnected(true)
	if got := testutil.ToFloat64(OBSConnected); got != 1 {
		t.Fatalf("obs connected = %v; want 1", got)
	}
	SetOBSConnected(false)
	if got := testutil.ToFloat64(OBSConnected); got != 0 {
		t.Fatalf("obs connected = %v; want 0", got)
	}
}
