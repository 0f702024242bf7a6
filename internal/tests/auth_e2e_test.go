package tests

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAuthE2E runs the complete token lifecycle: register, login, use the
// access token, rotate the refresh token, replay the dead token (reuse
// detection), observe the lineage die, and revoke.
func TestAuthE2E(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping E2E test")
	}

	ts := newTestServer(t, 30)
	baseURL := ts.BaseURL()
	client := ts.Server.Client()
	ts.Truncate(t)

	// Register alice.
	createResp := postJSON(t, client, baseURL+"/v1/users/", createUserRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Liddell",
		Password:  "correct horse battery staple",
	})
	createBody := readBody(createResp)
	createResp.Body.Close()
	require.Equal(t, http.StatusOK, createResp.StatusCode, "registration must succeed; body: %s", createBody)

	// Login: issue the first token pair.
	loginResp := postJSON(t, client, baseURL+"/v1/users/me/token", map[string]string{
		"username": "alice",
		"password": "correct horse battery staple",
	})
	loginBody := readBody(loginResp)
	loginResp.Body.Close()
	require.Equal(t, http.StatusOK, loginResp.StatusCode, "login must succeed; body: %s", loginBody)
	var first tokenResponse
	require.NoError(t, json.Unmarshal([]byte(loginBody), &first))
	require.NotEmpty(t, first.AccessToken)
	require.NotEmpty(t, first.RefreshToken)
	assert.Equal(t, "bearer", first.TokenType)

	// The access token works.
	req, _ := http.NewRequest(http.MethodGet, baseURL+"/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+first.AccessToken)
	meResp, err := client.Do(req)
	require.NoError(t, err)
	meBody := readBody(meResp)
	meResp.Body.Close()
	require.Equal(t, http.StatusOK, meResp.StatusCode, "GET /v1/users/me must return 200; body: %s", meBody)
	var me userResponse
	require.NoError(t, json.Unmarshal([]byte(meBody), &me))
	assert.Equal(t, "alice", me.Username)

	// Rotate once: a new pair comes back.
	refreshResp := postJSON(t, client, baseURL+"/v1/users/me/token/refresh", map[string]string{
		"refresh_token": first.RefreshToken,
	})
	refreshBody := readBody(refreshResp)
	refreshResp.Body.Close()
	require.Equal(t, http.StatusOK, refreshResp.StatusCode, "rotation must succeed; body: %s", refreshBody)
	var second tokenResponse
	require.NoError(t, json.Unmarshal([]byte(refreshBody), &second))
	require.NotEmpty(t, second.RefreshToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken, "rotation must mint a new refresh token")

	// Replaying the rotated token is reuse: 401, lineage revoked.
	replayResp := postJSON(t, client, baseURL+"/v1/users/me/token/refresh", map[string]string{
		"refresh_token": first.RefreshToken,
	})
	replayBody := readBody(replayResp)
	replayResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, replayResp.StatusCode, "replay must return 401; body: %s", replayBody)

	// The second pair died with the lineage.
	cascadeResp := postJSON(t, client, baseURL+"/v1/users/me/token/refresh", map[string]string{
		"refresh_token": second.RefreshToken,
	})
	cascadeBody := readBody(cascadeResp)
	cascadeResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, cascadeResp.StatusCode,
		"token from the revoked lineage must be rejected; body: %s", cascadeBody)

	// Fresh login, then explicit revocation.
	loginResp = postJSON(t, client, baseURL+"/v1/users/me/token", map[string]string{
		"username": "alice",
		"password": "correct horse battery staple",
	})
	loginBody = readBody(loginResp)
	loginResp.Body.Close()
	require.Equal(t, http.StatusOK, loginResp.StatusCode, "second login must succeed; body: %s", loginBody)
	var third tokenResponse
	require.NoError(t, json.Unmarshal([]byte(loginBody), &third))

	revokeReq, _ := http.NewRequest(http.MethodPost, baseURL+"/v1/users/me/token/revoke", jsonBody(t, map[string]string{
		"refresh_token": third.RefreshToken,
	}))
	revokeReq.Header.Set("Content-Type", "application/json")
	revokeReq.Header.Set("Authorization", "Bearer "+third.AccessToken)
	revokeResp, err := client.Do(revokeReq)
	require.NoError(t, err)
	revokeBody := readBody(revokeResp)
	revokeResp.Body.Close()
	assert.Equal(t, http.StatusOK, revokeResp.StatusCode, "revocation must succeed; body: %s", revokeBody)

	// The revoked token cannot be rotated anymore.
	revokedResp := postJSON(t, client, baseURL+"/v1/users/me/token/refresh", map[string]string{
		"refresh_token": third.RefreshToken,
	})
	revokedBody := readBody(revokedResp)
	revokedResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, revokedResp.StatusCode,
		"revoked token must be rejected; body: %s", revokedBody)

	// Revoking without authentication is rejected.
	unauthResp := postJSON(t, client, baseURL+"/v1/users/me/token/revoke", map[string]string{
		"refresh_token": third.RefreshToken,
	})
	unauthBody := readBody(unauthResp)
	unauthResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, unauthResp.StatusCode,
		"unauthenticated revocation must return 401; body: %s", unauthBody)
}
