package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilzahs/gimme-idea/api/handlers"
	apitesting "github.com/lilzahs/gimme-idea/api/testing"
)

// Not parallel: swaps the global pool.
func TestHealthAndReadiness(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusOK, s.do(newRequest(t, http.MethodGet, "/healthz", nil)).Code)

	apitesting.SetupTestDB(t, testDB)
	rec := s.do(newRequest(t, http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGetVersion(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := s.do(newRequest(t, http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[handlers.VersionResponse](t, rec)
	assert.Equal(t, "v1.2.3", v.Version)
	assert.Equal(t, "abc123", v.Commit)
}
