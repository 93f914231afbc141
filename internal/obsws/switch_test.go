package obsws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchScene(t *testing.T) {
	scenes := []Scene{{Name: "Board 1", Index: 0}, {Name: "Board 2", Index: 1}, {Name: "board 1", Index: 2}, {Name: "Intro", Index: 3}}
	tests := []struct {
		requested string
		want      string
		kind      MatchKind
	}{
		{"board 1", "board 1", MatchExact},
		{"Board 1", "Board 1", MatchExact},
		{"  Intro ", "Intro", MatchExact},
		{"INTRO", "Intro", MatchCaseInsensitive},
		{"BOARD 2", "Board 2", MatchCaseInsensitive},
		{"1", "Board 1", MatchSubstring},
		{"2", "Board 2", MatchSubstring},
		{"oard", "Board 1", MatchSubstring},
		{"Studio", "", MatchNone},
		{"   ", "", MatchNone},
	}
	for _, tc := range tests {
		got, kind := MatchScene(scenes, tc.requested)
		if kind != tc.kind || got.Name != tc.want {
			t.Fatalf("MatchScene(%q) = %q/%s; want %q/%s", tc.requested, got.Name, kind, tc.want, tc.kind)
		}
	}
}

func TestMatchSceneCaseInsensitiveOverSubstring(t *testing.T) {
	scenes := []Scene{{Name: "Board 1", Index: 0}, {Name: "Board 2", Index: 1}}
	got, kind := MatchScene(scenes, "board 1")
	assert.Equal(t, "Board 1", got.Name)
	assert.Equal(t, MatchCaseInsensitive, kind)
}

func TestSwitchToSceneConfirms(t *testing.T) {
	f := newFakeOBS(t)
	c := connectClient(t, f, testOptions(), "")

	res, err := c.SwitchToScene(context.Background(), " board 1 ")
	require.NoError(t, err)
	assert.Equal(t, "Board 1", res.Scene)
	assert.Equal(t, MatchCaseInsensitive, res.Match)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.AlreadyActive)
	assert.Equal(t, "Board 1", f.currentScene())

	sets := f.requestsOf(RequestSetCurrentProgramScene)
	require.Len(t, sets, 1)
	assert.Equal(t, map[string]any{"sceneName": "Board 1"}, sets[0].RequestData)
	assert.False(t, c.SwitchInProgress())
}

func TestSwitchToSceneAlreadyActive(t *testing.T) {
	f := newFakeOBS(t)
	f.set(func(f *fakeOBS) { f.current = "Board 2" })
	c := connectClient(t, f, testOptions(), "")

	res, err := c.SwitchToScene(context.Background(), "2")
	require.NoError(t, err)
	assert.True(t, res.AlreadyActive)
	assert.Equal(t, 0, res.Attempts)
	assert.Empty(t, f.requestsOf(RequestSetCurrentProgramScene))
}

func TestSwitchToSceneRetriesOnce(t *testing.T) {
	f := newFakeOBS(t)
	c := connectClient(t, f, testOptions(), "")
	f.set(func(f *fakeOBS) { f.ignoreSets = 1 })

	res, err := c.SwitchToScene(context.Background(), "Board 2")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, f.requestsOf(RequestSetCurrentProgramScene), 2)
}

func TestSwitchToSceneVerificationFailed(t *testing.T) {
	f := newFakeOBS(t)
	c := connectClient(t, f, testOptions(), "")
	f.set(func(f *fakeOBS) { f.ignoreSets = 10 })

	res, err := c.SwitchToScene(context.Background(), "Board 2")
	require.Error(t, err)
	assert.Equal(t, CodeSwitchVerificationFailed, ErrorCode(err))
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, f.requestsOf(RequestSetCurrentProgramScene), 2)
	assert.False(t, c.SwitchInProgress())
}

func TestSwitchToSceneNotFound(t *testing.T) {
	f := newFakeOBS(t)
	c := connectClient(t, f, testOptions(), "")

	_, err := c.SwitchToScene(context.Background(), "Studio")
	assert.Equal(t, CodeSceneNotFound, ErrorCode(err))
	assert.Empty(t, f.requestsOf(RequestGetCurrentProgramScene))
	assert.False(t, c.SwitchInProgress())
}

func TestSwitchToSceneNotConnected(t *testing.T) {
	c := New(testOptions())
	_, err := c.SwitchToScene(context.Background(), "Board 1")
	assert.Equal(t, CodeNotConnected, ErrorCode(err))
}

func TestSwitchToSceneProceedsWhenCurrentUnknown(t *testing.T) {
	f := newFakeOBS(t)
	c := connectClient(t, f, testOptions(), "")
	var once sync.Once
	f.set(func(f *fakeOBS) {
		f.hook = func(req Request, rep *fakeReply) {
			if req.RequestType == RequestGetCurrentProgramScene {
				once.Do(func() {
					rep.status = "error"
					rep.errMsg = "not ready"
				})
			}
		}
	})

	res, err := c.SwitchToScene(context.Background(), "Board 1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
}

func TestSwitchToSceneSingleFlight(t *testing.T) {
	f := newFakeOBS(t)
	c := connectClient(t, f, testOptions(), "")

	entered := make(chan struct{})
	var once sync.Once
	f.set(func(f *fakeOBS) {
		f.hook = func(req Request, rep *fakeReply) {
			if req.RequestType == RequestGetCurrentProgramScene {
				once.Do(func() {
					rep.delay = 200 * time.Millisecond
					close(entered)
				})
			}
		}
	})

	errc := make(chan error, 1)
	go func() {
		_, err := c.SwitchToScene(context.Background(), "Board 1")
		errc <- err
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first switch never reached OBS")
	}
	assert.True(t, c.SwitchInProgress())

	_, err := c.SwitchToScene(context.Background(), "Board 2")
	assert.Equal(t, CodeSwitchAlreadyInProgress, ErrorCode(err))

	require.NoError(t, <-errc)
	assert.False(t, c.SwitchInProgress())

	res, err := c.SwitchToScene(context.Background(), "Board 2")
	require.NoError(t, err)
	assert.Equal(t, "Board 2", res.Scene)
}

func TestDisconnectClearsSwitchFlag(t *testing.T) {
	f := newFakeOBS(t)
	c := connectClient(t, f, testOptions(), "")
	f.set(func(f *fakeOBS) {
		f.hook = func(req Request, rep *fakeReply) {
			if req.RequestType == RequestGetCurrentProgramScene {
				rep.drop = true
			}
		}
	})

	errc := make(chan error, 1)
	go func() {
		_, err := c.SwitchToScene(context.Background(), "Board 1")
		errc <- err
	}()
	require.Eventually(t, c.SwitchInProgress, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return c.corr.len() == 1 }, time.Second, 5*time.Millisecond)

	c.Disconnect()
	assert.False(t, c.SwitchInProgress())

	err := <-errc
	assert.Equal(t, CodeNotConnected, ErrorCode(err))
}
