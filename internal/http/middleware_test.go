package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/telehealth-gateway/internal/application"
	"github.com/example/telehealth-gateway/internal/identity"
	"github.com/example/telehealth-gateway/internal/logging"
	"github.com/example/telehealth-gateway/internal/testfixtures"
)

const testIdentitySecret = "identity-secret-for-tests"

func newTestAuthority(t *testing.T, now func() time.Time) *identity.Authority {
	t.Helper()
	authority, err := identity.NewAuthority(testIdentitySecret, now)
	require.NoError(t, err)
	return authority
}

func newForeignAuthority(t *testing.T) *identity.Authority {
	t.Helper()
	authority, err := identity.NewAuthority("some-other-secret", testfixtures.ReferenceTime)
	require.NoError(t, err)
	return authority
}

func mint(t *testing.T, authority *identity.Authority, kind identity.Kind, id string) string {
	t.Helper()
	token, err := authority.Mint(identity.Subject{Kind: kind, ID: id}, time.Hour)
	require.NoError(t, err)
	return token
}

func TestResolveIdentity(t *testing.T) {
	t.Parallel()

	authority := newTestAuthority(t, testfixtures.ReferenceTime)
	staffToken := mint(t, authority, identity.KindStaff, "drsmith")
	portalToken := mint(t, authority, identity.KindPortal, "p-9")
	foreignToken := mint(t, newForeignAuthority(t), identity.KindStaff, "drsmith")

	tests := []struct {
		name     string
		prepare  func(*http.Request)
		expected application.CallerIdentity
		resolved bool
	}{
		{
			name:    "missing credentials stay anonymous",
			prepare: func(*http.Request) {},
		},
		{
			name: "bearer staff token yields a provider",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+staffToken)
			},
			expected: application.ProviderCaller("drsmith"),
			resolved: true,
		},
		{
			name: "portal cookie yields a patient",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: IdentityCookie, Value: portalToken})
			},
			expected: application.PatientCaller("p-9"),
			resolved: true,
		},
		{
			name: "malformed bearer stays anonymous",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer malformed")
			},
		},
		{
			name: "token from another secret stays anonymous",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+foreignToken)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var (
				got application.CallerIdentity
				ok  bool
			)
			handler := ResolveIdentity(authority, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, ok = CallerFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/provider", nil)
			tc.prepare(req)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tc.resolved, ok)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logging.New(slog.LevelDebug, &buf)

	var sawLogger bool
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logging.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.True(t, sawLogger)
	id := rec.Header().Get("X-Request-ID")
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var completed map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &completed))
	assert.Equal(t, "request completed", completed["msg"])
	assert.Equal(t, id, completed["request_id"])
	assert.Equal(t, "/healthz", completed["path"])
	assert.EqualValues(t, http.StatusTeapot, completed["status"])
}

func TestCSRFVerifier(t *testing.T) {
	t.Parallel()

	authority := newTestAuthority(t, testfixtures.ReferenceTime)
	verifier := NewCSRFVerifier(authority)
	token := authority.CSRFToken(identity.Subject{Kind: identity.KindStaff, ID: "drsmith"})

	assert.True(t, verifier.VerifyCSRF(application.ProviderCaller("drsmith"), token))
	assert.False(t, verifier.VerifyCSRF(application.ProviderCaller("drjones"), token))
	assert.False(t, verifier.VerifyCSRF(application.PatientCaller("drsmith"), token))
	assert.False(t, verifier.VerifyCSRF(application.CallerIdentity{}, token))
	assert.False(t, NewCSRFVerifier(nil).VerifyCSRF(application.ProviderCaller("drsmith"), token))
}

func TestEndToEndVisit(t *testing.T) {
	h := testfixtures.NewSQLiteHarness(t)
	visit := h.SeedVisit(t)
	authority := newTestAuthority(t, h.Clock.Now)
	coordinator := h.Coordinator(testfixtures.WithCSRF(NewCSRFVerifier(authority)))

	server := httptest.NewServer(NewRouter(RouterConfig{
		Provider: NewActionHandler(coordinator, application.VariantProvider, nil),
		Portal:   NewActionHandler(coordinator, application.VariantPortal, nil),
		Health:   NewHealthHandler(h.Store, nil),
		Middleware: []func(http.Handler) http.Handler{
			RequestLogger(nil),
			ResolveIdentity(authority, nil),
		},
	}))
	t.Cleanup(server.Close)

	staffToken := mint(t, authority, identity.KindStaff, visit.Provider.Username)
	portalToken := mint(t, authority, identity.KindPortal, visit.Patient.ID)
	apptID := visit.Appointment.ID

	call := func(t *testing.T, method, path, token string, headers map[string]string) (*http.Response, map[string]any) {
		t.Helper()
		req, err := http.NewRequest(method, server.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp, body
	}

	resp, body := call(t, http.MethodGet, "/api/portal?action=settings", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "meet.jit.si", body["jitsiDomain"])

	resp, _ = call(t, http.MethodGet, "/api/provider?action=launch_data&pc_eid="+apptID, "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "anonymous launch must be refused")

	resp, _ = call(t, http.MethodGet, "/api/portal?action=launch_data&pc_eid="+apptID, staffToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "staff identity must not use the portal endpoint")

	resp, body = call(t, http.MethodGet, "/api/portal?action=patient_ready_check&pc_eid="+apptID, portalToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["providerReady"])

	resp, launch := call(t, http.MethodPost, "/api/provider?action=launch_data&pc_eid="+apptID, staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, launch)
	assert.Equal(t, true, launch["isModerator"])
	assert.NotEmpty(t, launch["roomName"])

	resp, body = call(t, http.MethodPost, "/api/provider?action=conference_session_update&pc_eid="+apptID, staffToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["success"])

	resp, body = call(t, http.MethodGet, "/api/portal?action=patient_ready_check&pc_eid="+apptID, portalToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["providerReady"])

	resp, joined := call(t, http.MethodGet, "/api/portal?action=launch_data&pc_eid="+apptID, portalToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, joined)
	assert.Equal(t, launch["roomName"], joined["roomName"])
	assert.Equal(t, false, joined["isModerator"])

	resp, _ = call(t, http.MethodPost, "/api/provider?action=set_status&status=%3E&pc_eid="+apptID, staffToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "status change without a forgery token must be refused")

	csrf := authority.CSRFToken(identity.Subject{Kind: identity.KindStaff, ID: visit.Provider.Username})
	resp, body = call(t, http.MethodPost, "/api/provider?action=set_status&status=%3E&pc_eid="+apptID, staffToken, map[string]string{"APICSRFTOKEN": csrf})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, ">", body["status"])

	resp, body = call(t, http.MethodGet, "/api/portal?action=launch_data&pc_eid="+apptID, portalToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "not joinable")

	resp, body = call(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
