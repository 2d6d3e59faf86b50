package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/coursekit/admin-api/internal/domain/auth"
	mocksauth "github.com/coursekit/admin-api/internal/mocks/auth"
	"github.com/coursekit/admin-api/internal/service"
)

// newAuthServiceWithSession builds a real AuthService backed by an in-memory
// session store seeded with one session.
func newAuthServiceWithSession(t *testing.T, session domainauth.Session) *service.AuthService {
	t.Helper()
	sessions := mocksauth.NewMemorySessionStore()
	require.NoError(t, sessions.Save(context.Background(), session))
	return service.NewAuthService(service.AuthServiceOptions{
		Provider: mocksauth.NewMockAuthProvider(),
		Sessions: sessions,
		Roles:    mocksauth.StaticRoleMapper{AdminGroup: "admins"},
	})
}

func TestRequireAuth_ValidSession(t *testing.T) {
	session := testSession("sess-valid")
	auth := newAuthServiceWithSession(t, session)

	var gotSession *domainauth.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = GetSessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-valid"})
	w := httptest.NewRecorder()

	RequireAuth(auth)(next).ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.NotNil(t, gotSession)
	assert.Equal(t, session.UserID, gotSession.UserID)
	assert.Equal(t, session.Role, gotSession.Role)
}

func TestRequireAuth_NoCookie_Returns401(t *testing.T) {
	auth := newAuthServiceWithSession(t, testSession("sess-valid"))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})

	r := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	w := httptest.NewRecorder()

	RequireAuth(auth)(next).ServeHTTP(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env := decodeEnvelope(t, resp.Body)
	assert.Equal(t, http.StatusUnauthorized, env.Code)
	assert.Equal(t, "authentication required", env.Message)
}

func TestRequireAuth_UnknownSession_Returns401(t *testing.T) {
	auth := newAuthServiceWithSession(t, testSession("sess-valid"))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})

	r := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-unknown"})
	w := httptest.NewRecorder()

	RequireAuth(auth)(next).ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestRequireAuth_ExpiredSession_Returns401(t *testing.T) {
	expired := testSession("sess-expired")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	auth := newAuthServiceWithSession(t, expired)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})

	r := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-expired"})
	w := httptest.NewRecorder()

	RequireAuth(auth)(next).ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestCallerID_WithAndWithoutSession(t *testing.T) {
	session := testSession("sess-1")
	ctx := SetSessionInContext(context.Background(), &session)

	got := CallerID(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "admin-1", *got)

	assert.Nil(t, CallerID(context.Background()))
}
