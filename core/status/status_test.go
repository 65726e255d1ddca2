package status

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestServer_Healthz(t *testing.T) {
	srv := New(Config{Port: "0"}, zap.NewNop(), SourceFunc(func() any { return nil }))

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_ServesStateSnapshot(t *testing.T) {
	source := SourceFunc(func() any {
		return map[string]any{"tracked": 3, "held": 1}
	})
	srv := New(Config{Port: "0"}, zap.NewNop(), source)

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/state", nil))
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(3), body["tracked"])
	assert.Equal(t, float64(1), body["held"])
}
