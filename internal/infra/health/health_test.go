package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var res result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return rec.Code, res
}

func TestHealthz(t *testing.T) {
	h := New(Checker{Name: "broken", Check: func(context.Context) error { return errors.New("down") }})

	code, res := serve(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", res.Status)
}

func TestReadyz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("gateway not ready") }

	tests := []struct {
		name     string
		checkers []Checker
		wantCode int
		want     result
	}{
		{
			name:     "no checkers",
			wantCode: http.StatusOK,
			want:     result{Status: "ok", Checks: nil},
		},
		{
			name:     "all pass",
			checkers: []Checker{{Name: "discord", Check: ok}, {Name: "ffmpeg", Check: ok}},
			wantCode: http.StatusOK,
			want:     result{Status: "ok", Checks: map[string]string{"discord": "ok", "ffmpeg": "ok"}},
		},
		{
			name:     "one fails",
			checkers: []Checker{{Name: "discord", Check: fail}, {Name: "ffmpeg", Check: ok}},
			wantCode: http.StatusServiceUnavailable,
			want: result{Status: "fail", Checks: map[string]string{
				"discord": "fail: gateway not ready",
				"ffmpeg":  "ok",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := serve(t, New(tt.checkers...), "/readyz")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.want, res)
		})
	}
}
