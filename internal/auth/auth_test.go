package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

func testJWT() JWT {
	return JWT{Secret: []byte("test-secret"), TokenTTL: time.Hour}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	j := testJWT()
	tok, exp, err := j.Sign(model.Identity{Username: "olga", Role: model.RoleOrganizer})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, model.Identity{Username: "olga", Role: model.RoleOrganizer}, id)
}

func TestVerifyRejects(t *testing.T) {
	j := testJWT()

	other := JWT{Secret: []byte("other"), TokenTTL: time.Hour}
	tok, _, err := other.Sign(model.Identity{Username: "alice"})
	require.NoError(t, err)
	_, err = j.Verify(tok)
	assert.Error(t, err, "wrong secret")

	expired := JWT{Secret: j.Secret, TokenTTL: -time.Hour}
	tok, _, err = expired.Sign(model.Identity{Username: "alice"})
	require.NoError(t, err)
	_, err = j.Verify(tok)
	assert.Error(t, err, "expired")

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "mallory"},
	})
	tok, err = bad.SignedString(j.Secret)
	require.NoError(t, err)
	_, err = j.Verify(tok)
	assert.Error(t, err, "unknown role")
}

func TestMiddleware(t *testing.T) {
	j := testJWT()
	var failed error
	h := Middleware(j, func(w http.ResponseWriter, r *http.Request, err error) {
		failed = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(id.Username))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.ErrorIs(t, failed, ErrUnauthenticated)

	tok, _, err := j.Sign(model.Identity{Username: "alice", Role: model.RoleAttendee})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("  bearer   abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("abc"))
	assert.Equal(t, "", bearerToken(""))
}
