package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telehealth-gateway/internal/application"
)

type widgetStub struct {
	endpoint *fakeEndpoint
	err      error
}

func (w *widgetStub) Dispose() error {
	w.endpoint.record("dispose")
	return w.err
}

func opener(endpoint *fakeEndpoint, opened *[]application.LaunchData) WidgetOpener {
	return func(ctx context.Context, data application.LaunchData) (Widget, error) {
		*opened = append(*opened, data)
		return &widgetStub{endpoint: endpoint}, nil
	}
}

func TestConferenceSessionLifecycle(t *testing.T) {
	t.Parallel()

	endpoint := newFakeEndpoint()
	endpoint.on("launch_data", http.StatusOK, application.LaunchData{RoomName: "openemr_abc", AppointmentID: "42", IsModerator: true})
	endpoint.on("heartbeat", http.StatusOK, application.HeartbeatAck{Success: true})
	endpoint.on("set_status", http.StatusOK, application.StatusAck{Success: true, Status: ">"})
	c, server := newTestClient(t, endpoint, application.VariantProvider)
	c.httpClient = &http.Client{Transport: recordingTransport{endpoint: endpoint, next: server.Client().Transport}}

	var opened []application.LaunchData
	var prompted int
	session := NewConferenceSession(c, opener(endpoint, &opened),
		WithHeartbeatInterval(5*time.Millisecond),
		WithStatusPrompt(func(ctx context.Context, data application.LaunchData) (string, bool) {
			prompted++
			return ">", true
		}),
	)
	ctx := context.Background()

	data, err := session.Launch(ctx, "42")
	require.NoError(t, err)
	require.Len(t, opened, 1)
	assert.Equal(t, "openemr_abc", opened[0].RoomName)

	active, ok := session.Active()
	assert.True(t, ok)
	assert.Equal(t, data, active)

	_, err = session.Launch(ctx, "42")
	assert.ErrorIs(t, err, ErrSessionActive)

	assert.Eventually(t, func() bool { return endpoint.count("heartbeat") >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, session.End(ctx, true))
	assert.Equal(t, 1, prompted)

	time.Sleep(20 * time.Millisecond)
	_, events := endpoint.snapshot()
	disposedAt := -1
	for i, event := range events {
		if event == "dispose" {
			disposedAt = i
		}
	}
	require.GreaterOrEqual(t, disposedAt, 0, "widget was not disposed")
	for _, event := range events[disposedAt:] {
		assert.NotEqual(t, "heartbeat", event, "heartbeat fired after the widget was disposed")
	}
	assert.Equal(t, "set_status", events[len(events)-1])

	_, ok = session.Active()
	assert.False(t, ok)
	assert.NoError(t, session.End(ctx, true), "ending twice is a no-op")
}

func TestConferenceSessionEndWithoutPrompt(t *testing.T) {
	t.Parallel()

	endpoint := newFakeEndpoint()
	endpoint.on("launch_data", http.StatusOK, application.LaunchData{RoomName: "openemr_abc", AppointmentID: "42"})
	endpoint.on("heartbeat", http.StatusOK, application.HeartbeatAck{Success: true})
	c, _ := newTestClient(t, endpoint, application.VariantPortal)

	var opened []application.LaunchData
	prompted := false
	session := NewConferenceSession(c, opener(endpoint, &opened), WithStatusPrompt(func(context.Context, application.LaunchData) (string, bool) {
		prompted = true
		return ">", true
	}))

	_, err := session.Launch(context.Background(), "42")
	require.NoError(t, err)
	require.NoError(t, session.End(context.Background(), true))

	assert.False(t, prompted, "participants are never asked for a status")
	assert.Zero(t, endpoint.count("set_status"))
}

func TestConferenceSessionLaunchFailures(t *testing.T) {
	t.Parallel()

	t.Run("server refusal opens nothing", func(t *testing.T) {
		t.Parallel()

		endpoint := newFakeEndpoint()
		endpoint.on("launch_data", http.StatusBadRequest, application.ErrorBody{Error: "appointment is not joinable at this time"})
		c, _ := newTestClient(t, endpoint, application.VariantProvider)

		var opened []application.LaunchData
		session := NewConferenceSession(c, opener(endpoint, &opened))

		_, err := session.Launch(context.Background(), "42")
		assert.True(t, IsStatus(err, http.StatusBadRequest))
		assert.Empty(t, opened)
		_, ok := session.Active()
		assert.False(t, ok)
	})

	t.Run("widget failure starts no heartbeat", func(t *testing.T) {
		t.Parallel()

		endpoint := newFakeEndpoint()
		endpoint.on("launch_data", http.StatusOK, application.LaunchData{AppointmentID: "42"})
		c, _ := newTestClient(t, endpoint, application.VariantProvider)

		session := NewConferenceSession(c, func(context.Context, application.LaunchData) (Widget, error) {
			return nil, errors.New("no display")
		}, WithHeartbeatInterval(time.Millisecond))

		_, err := session.Launch(context.Background(), "42")
		assert.ErrorContains(t, err, "no display")
		time.Sleep(10 * time.Millisecond)
		assert.Zero(t, endpoint.count("heartbeat"))
	})
}

func TestLaunchAsPatient(t *testing.T) {
	t.Parallel()

	t.Run("waits for the provider", func(t *testing.T) {
		t.Parallel()

		endpoint := newFakeEndpoint()
		endpoint.on("patient_ready_check", http.StatusOK, application.Readiness{ProviderReady: false})
		c, _ := newTestClient(t, endpoint, application.VariantPortal)

		var opened []application.LaunchData
		session := NewConferenceSession(c, opener(endpoint, &opened))

		_, err := session.LaunchAsPatient(context.Background(), "42")
		assert.ErrorIs(t, err, ErrProviderNotReady)
		assert.Empty(t, opened)
		assert.Zero(t, endpoint.count("launch_data"))
	})

	t.Run("joins a ready provider", func(t *testing.T) {
		t.Parallel()

		endpoint := newFakeEndpoint()
		endpoint.on("patient_ready_check", http.StatusOK, application.Readiness{ProviderReady: true})
		endpoint.on("launch_data", http.StatusOK, application.LaunchData{AppointmentID: "42", Role: "patient"})
		endpoint.on("heartbeat", http.StatusOK, application.HeartbeatAck{Success: true})
		c, _ := newTestClient(t, endpoint, application.VariantPortal)

		var opened []application.LaunchData
		session := NewConferenceSession(c, opener(endpoint, &opened))

		data, err := session.LaunchAsPatient(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, "patient", data.Role)
		require.NoError(t, session.End(context.Background(), false))
	})

	t.Run("server failure is distinct from not ready", func(t *testing.T) {
		t.Parallel()

		endpoint := newFakeEndpoint()
		endpoint.on("patient_ready_check", http.StatusInternalServerError, application.ErrorBody{Error: "internal error"})
		c, _ := newTestClient(t, endpoint, application.VariantPortal)

		var opened []application.LaunchData
		session := NewConferenceSession(c, opener(endpoint, &opened))

		_, err := session.LaunchAsPatient(context.Background(), "42")
		assert.ErrorIs(t, err, ErrProviderStatusUnknown)
		assert.NotErrorIs(t, err, ErrProviderNotReady)
		assert.Empty(t, opened)
	})

	t.Run("transport failure does not launch anyway", func(t *testing.T) {
		t.Parallel()

		endpoint := newFakeEndpoint()
		c, server := newTestClient(t, endpoint, application.VariantPortal)
		server.Close()

		var opened []application.LaunchData
		session := NewConferenceSession(c, opener(endpoint, &opened))

		_, err := session.LaunchAsPatient(context.Background(), "42")
		assert.ErrorIs(t, err, ErrProviderStatusUnknown)
		assert.Empty(t, opened)
	})
}
