package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fieldreport/internal/database"
	"fieldreport/internal/handlers"
	"fieldreport/internal/middleware"
	"fieldreport/internal/mirror"
	"fieldreport/internal/photos"
	"fieldreport/internal/repositories"
	"fieldreport/internal/services"
	"fieldreport/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	app    *fiber.App
	online atomic.Bool
	posts  atomic.Int32
	puts   atomic.Int32
}

// setupApp builds the screen API over a temporary SQLite file and a fake
// remote collection.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}
	env.online.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /posts/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1}`))
	})
	mux.HandleFunc("GET /posts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"userId":1,"title":"remote","body":"remote body"}]`))
	})
	mux.HandleFunc("POST /posts", func(w http.ResponseWriter, r *http.Request) {
		env.posts.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":101}`))
	})
	mux.HandleFunc("PUT /posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		env.puts.Add(1)
		_, _ = w.Write([]byte(`{}`))
	})
	remoteServer := httptest.NewServer(mux)
	t.Cleanup(remoteServer.Close)

	dir := t.TempDir()
	db, err := database.Open("sqlite", filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := zap.NewNop()
	userRepo := repositories.NewGORMUserRepository(db)
	incidentRepo := repositories.NewGORMIncidentRepository(db)
	require.NoError(t, database.Initialize(context.Background(), db, userRepo, database.Bootstrap{
		Username: "user",
		Password: "user",
		FullName: "Default user",
	}, log))

	photoStore, err := photos.NewStore(filepath.Join(dir, "photos"))
	require.NoError(t, err)

	remote := mirror.New(mirror.Config{BaseURL: remoteServer.URL, Resource: "posts", Timeout: 2 * time.Second},
		mirror.NetworkCheckerFunc(env.online.Load), log)

	sess := session.New()
	authService := services.NewAuthService(userRepo, sess, log)
	syncService := services.NewSyncService(incidentRepo, remote, nil, log)
	incidentService := services.NewIncidentService(incidentRepo, syncService, remote, photoStore, sess, nil, log)

	app := fiber.New()
	guard := middleware.SessionRequired(sess)
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService, log).RegisterRoutes(apiV1, guard)
	protectedRoutes := apiV1.Group("", guard)
	handlers.NewDashboardHandler(authService, incidentService, syncService, log).RegisterRoutes(protectedRoutes)
	handlers.NewIncidentHandler(incidentService, log).RegisterRoutes(protectedRoutes)

	env.app = app
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := e.app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	status, _ := e.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "user", "password": "user"})
	require.Equal(t, http.StatusOK, status)
}

func validIncident() map[string]interface{} {
	return map[string]interface{}{
		"title":       "Broken window",
		"description": "Window in room 12 is cracked",
		"category":    "Maintenance",
		"priority":    "High",
	}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	// Test Registration
	userToRegister := map[string]string{
		"username":  "testuser",
		"password":  "password123",
		"full_name": "Test User",
		"email":     "test@example.com",
	}
	status, body := env.do(t, http.MethodPost, "/api/v1/auth/register", userToRegister)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotContains(t, body["user"], "password")

	// Test Duplicate Registration (username)
	status, body = env.do(t, http.MethodPost, "/api/v1/auth/register", userToRegister)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "username already in use", body["message"])

	// Short password
	status, body = env.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{"username": "other", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "password must be at least 6 characters", body["message"])

	// Over the bcrypt limit: 40 runes, 80 bytes
	status, body = env.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{"username": "other", "password": strings.Repeat("é", 40)})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "password must be at most 72 bytes", body["message"])

	// Wrong password
	status, body = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "testuser", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid username or password", body["message"])

	// Missing field
	status, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "testuser"})
	assert.Equal(t, http.StatusBadRequest, status)

	// Test Login
	status, body = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "testuser", "password": "password123"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", body["message"])

	status, body = env.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Test User", body["display_name"])

	status, body = env.do(t, http.MethodPut, "/api/v1/auth/me", map[string]string{"full_name": "Renamed", "email": "new@example.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Renamed", body["user"].(map[string]interface{})["full_name"])

	status, _ = env.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestIncidentEndpointsWithoutLogin(t *testing.T) {
	env := setupApp(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/incidents", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Login required", body["message"])

	status, _ = env.do(t, http.MethodPost, "/api/v1/incidents", validIncident())
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestIncidentLifecycle(t *testing.T) {
	env := setupApp(t)
	env.login(t)

	// --- Create while online: mirrored right away ---
	status, body := env.do(t, http.MethodPost, "/api/v1/incidents", validIncident())
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Incident created successfully", body["message"])
	created := body["incident"].(map[string]interface{})
	assert.Equal(t, true, created["mirrored"])
	assert.EqualValues(t, 101, created["remote_id"])
	assert.Equal(t, "Pending", created["status"])
	id := jsonID(created)

	// --- Validation ---
	bad := validIncident()
	bad["title"] = "abc"
	status, body = env.do(t, http.MethodPost, "/api/v1/incidents", bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["message"])

	bad = validIncident()
	bad["latitude"] = 40.4
	status, body = env.do(t, http.MethodPost, "/api/v1/incidents", bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "latitude and longitude must be provided together", body["message"])

	// --- Detail ---
	status, body = env.do(t, http.MethodGet, "/api/v1/incidents/"+id, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "No location", body["location"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/incidents/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodGet, "/api/v1/incidents/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// --- Edit re-mirrors with PUT ---
	edit := validIncident()
	edit["status"] = "Resolved"
	status, body = env.do(t, http.MethodPut, "/api/v1/incidents/"+id, edit)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Resolved", body["incident"].(map[string]interface{})["status"])
	assert.EqualValues(t, 1, env.puts.Load())

	// --- Share ---
	status, body = env.do(t, http.MethodGet, "/api/v1/incidents/"+id+"/share", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["text"], "Incident: Broken window")

	// --- Delete ---
	status, body = env.do(t, http.MethodDelete, "/api/v1/incidents/"+id, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Incident deleted successfully", body["message"])
	status, _ = env.do(t, http.MethodDelete, "/api/v1/incidents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOfflineCreateThenSync(t *testing.T) {
	env := setupApp(t)
	env.login(t)
	env.online.Store(false)

	status, body := env.do(t, http.MethodPost, "/api/v1/incidents", validIncident())
	require.Equal(t, http.StatusCreated, status)
	created := body["incident"].(map[string]interface{})
	assert.Equal(t, false, created["mirrored"])
	assert.EqualValues(t, 0, env.posts.Load())

	status, body = env.do(t, http.MethodPost, "/api/v1/dashboard/sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "No internet connection", body["message"])

	status, _ = env.do(t, http.MethodPost, "/api/v1/incidents/"+jsonID(created)+"/sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, body = env.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Welcome, Default user", body["welcome"])
	assert.Equal(t, false, body["online"])
	assert.EqualValues(t, 1, body["stats"].(map[string]interface{})["total"])
	assert.EqualValues(t, 0, body["stats"].(map[string]interface{})["mirrored"])

	env.online.Store(true)
	status, body = env.do(t, http.MethodPost, "/api/v1/dashboard/sync", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1 incidents synced successfully", body["message"])

	status, body = env.do(t, http.MethodPost, "/api/v1/dashboard/sync", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "No incidents pending sync", body["message"])
	assert.EqualValues(t, 1, env.posts.Load())
}

func TestListFilters(t *testing.T) {
	env := setupApp(t)
	env.login(t)

	for _, in := range []map[string]interface{}{
		{"title": "Printer jam", "description": "Printer on floor 2 is jammed", "category": "IT Support"},
		{"title": "Fence damage", "description": "Fence near gate B is bent", "category": "Security"},
	} {
		status, _ := env.do(t, http.MethodPost, "/api/v1/incidents", in)
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := env.do(t, http.MethodGet, "/api/v1/incidents", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])

	status, body = env.do(t, http.MethodGet, "/api/v1/incidents?q=security&mine=true", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = env.do(t, http.MethodGet, "/api/v1/incidents?status=Resolved", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])
	assert.Equal(t, "No incidents with status 'Resolved'", body["message"])

	status, body = env.do(t, http.MethodGet, "/api/v1/incidents/options", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["categories"], 6)
	assert.Len(t, body["status_filters"], 4)

	status, body = env.do(t, http.MethodGet, "/api/v1/remote/incidents", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
}

func TestPhotoUploadAndDelete(t *testing.T) {
	env := setupApp(t)
	env.login(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "capture.PNG")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	status, body := env.send(t, req)
	require.Equal(t, http.StatusCreated, status)
	path := body["path"].(string)
	assert.Equal(t, ".png", filepath.Ext(path))
	assert.FileExists(t, path)

	in := validIncident()
	in["photo_path"] = path
	in["latitude"] = 40.416775
	in["longitude"] = -3.70379
	status, body = env.do(t, http.MethodPost, "/api/v1/incidents", in)
	require.Equal(t, http.StatusCreated, status)
	created := body["incident"].(map[string]interface{})
	assert.Equal(t, "Lat: 40.416775, Lon: -3.703790", created["location_name"])

	status, _ = env.do(t, http.MethodDelete, "/api/v1/incidents/"+jsonID(created), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NoFileExists(t, path)
}

func TestPhotoPathOutsidePhotoDir(t *testing.T) {
	env := setupApp(t)
	env.login(t)

	outside := filepath.Join(t.TempDir(), "important.conf")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	in := validIncident()
	in["photo_path"] = outside
	status, _ := env.do(t, http.MethodPost, "/api/v1/incidents", in)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.FileExists(t, outside)
}

func jsonID(incident map[string]interface{}) string {
	b, _ := json.Marshal(incident["id"])
	return string(b)
}
