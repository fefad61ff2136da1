package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rov.teleop/internal/allocation"
	"github.com/banshee-data/rov.teleop/internal/auxiliary"
	"github.com/banshee-data/rov.teleop/internal/db"
	"github.com/banshee-data/rov.teleop/internal/input"
	"github.com/banshee-data/rov.teleop/internal/monitoring"
	"github.com/banshee-data/rov.teleop/internal/serialmux"
	"github.com/banshee-data/rov.teleop/internal/teleop"
)

type testServer struct {
	server *Server
	mux    *http.ServeMux
	port   *serialmux.TestableSerialPort
	engine *teleop.Engine
	db     *db.DB
	sess   string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	sess, err := database.StartSession("")
	require.NoError(t, err)

	engine, err := teleop.NewEngine(teleop.Config{
		Mapping:        input.DefaultMapping(),
		Gains:          teleop.Gains{Surge: 4, Heave: 3, Yaw: 0.3},
		ThrusterOffset: 0.045,
		LightRate:      auxiliary.DefaultLightRate,
	}, teleop.NewRecordingPublisher(database.Session(sess)))
	require.NoError(t, err)

	port := serialmux.NewTestableSerialPort()
	s := NewServer(serialmux.NewSerialMux(port), engine, database)
	return &testServer{server: s, mux: s.ServeMux(), port: port, engine: engine, db: database, sess: sess}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

const fullSurge = `{"axes":[0,1,0,0,0,0,0,0],"buttons":[0,0,0,0,0,0,0,0,0,0,0]}`

func TestPostSample(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(http.MethodPost, "/api/samples", fullSurge)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var cmd allocation.Command
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cmd))
	assert.Equal(t, allocation.Command{Port: 1568, Vertical: 1500, Starboard: 1568}, cmd)
	assert.Equal(t, cmd, ts.engine.Command())
}

func TestPostSample_Malformed(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "axes please"},
		{"too few axes", `{"axes":[0,1],"buttons":[0,0,0,0,0]}`},
		{"out of range", `{"axes":[0,3,0,0,0,0,0,0],"buttons":[0,0,0,0,0]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/api/samples", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "malformed input sample")
		})
	}
	assert.Equal(t, allocation.NeutralCommand(), ts.engine.Command())

	w := ts.do(http.MethodGet, "/api/samples", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestShowState(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/samples", fullSurge).Code)
	ts.do(http.MethodPost, "/api/samples", `{}`)

	w := ts.do(http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap teleop.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, uint64(1), snap.Samples)
	assert.Equal(t, uint64(1), snap.Rejected)
	assert.Equal(t, 1568, snap.Command.Port)
	require.NotNil(t, snap.Last)
	assert.Equal(t, 1.0, snap.Last.Scale)
	assert.NotEmpty(t, snap.LastError)

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(http.MethodPost, "/api/state", "").Code)
}

func TestListEvents(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, ts.engine.Resend())
	require.NoError(t, ts.engine.HandleSample(input.RawSample{
		Axes:    []float64{0, 0, 0, 0, 0, 0, 0, 0},
		Buttons: []int{0, 0, 0, 0, 1},
	}))

	w := ts.do(http.MethodGet, "/api/events?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var events []db.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, db.KindLaser, events[0].Kind)
	assert.Equal(t, db.KindThrust, events[1].Kind)
	assert.Equal(t, &[3]int{1500, 1500, 1500}, events[1].Command)

	for _, bad := range []string{"0", "-1", "ten"} {
		w := ts.do(http.MethodGet, "/api/events?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", bad)
	}
}

type failingEvents struct{}

func (failingEvents) RecentEvents(int) ([]db.Event, error) { return nil, errors.New("disk gone") }

func TestListEvents_Unavailable(t *testing.T) {
	ts := setupTestServer(t)

	noLog := NewServer(nil, ts.engine, nil).ServeMux()
	w := httptest.NewRecorder()
	noLog.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	broken := NewServer(nil, ts.engine, failingEvents{}).ServeMux()
	w = httptest.NewRecorder()
	broken.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk gone")
}

func TestShowVersion(t *testing.T) {
	ts := setupTestServer(t)
	w := ts.do(http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, w.Code)

	var v map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "dev", v["version"])
	assert.NotEmpty(t, v["go_version"])
}

func TestSendCommandHandler(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader("command=ligt(0.50);"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Command sent successfully")
	assert.Equal(t, "ligt(0.50);\n", ts.port.Written())

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(http.MethodGet, "/api/command", "").Code)

	req = httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader("command="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.Logf = original })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state?x=1", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Len(t, lines, 1)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Contains(t, statusCodeColor(503), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}

// racedEngine reports a different stored command than the one its last
// Process computed, as when another input source lands in between.
type racedEngine struct{}

func (racedEngine) Process(input.RawSample) (teleop.Allocation, error) {
	return teleop.Allocation{Command: allocation.Command{Port: 1568, Vertical: 1500, Starboard: 1568}}, nil
}

func (racedEngine) Snapshot() teleop.Snapshot {
	return teleop.Snapshot{Command: allocation.NeutralCommand()}
}

func TestPostSample_AnswersWithItsOwnCommand(t *testing.T) {
	mux := NewServer(nil, racedEngine{}, nil).ServeMux()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/samples", strings.NewReader(fullSurge)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cmd allocation.Command
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cmd))
	assert.Equal(t, allocation.Command{Port: 1568, Vertical: 1500, Starboard: 1568}, cmd)
}
