package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/middleware"
	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/services/tasks"
)

var refNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
}

type testAPI struct {
	router http.Handler
	repo   *memRepo
	owner  *models.User
	other  *models.User
	admin  *models.User
}

// newTestAPI wires the task, stats and admin handlers the way the server does,
// with the user chosen per request through the X-Test-User header.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	api := &testAPI{
		repo:  newMemRepo(),
		owner: &models.User{ID: uuid.New(), Email: "owner@example.com", Role: models.RoleUser},
		other: &models.User{ID: uuid.New(), Email: "other@example.com", Role: models.RoleUser},
		admin: &models.User{ID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin},
	}
	users := map[string]*models.User{"owner": api.owner, "other": api.other, "admin": api.admin}

	svc := tasks.NewService(api.repo, zap.NewNop(), tasks.WithClock(func() time.Time { return refNow }))

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if u, ok := users[req.Header.Get("X-Test-User")]; ok {
				req = req.WithContext(middleware.SetUserInContext(req.Context(), u))
			}
			next.ServeHTTP(w, req)
		})
	})
	NewTaskHandler(svc).RegisterRoutes(v1.PathPrefix("/tasks").Subrouter())
	NewStatsHandler(svc).RegisterRoutes(v1.PathPrefix("/stats").Subrouter())
	NewAdminHandler(svc).RegisterRoutes(v1.PathPrefix("/admin").Subrouter())
	api.router = r
	return api
}

func (a *testAPI) do(t *testing.T, user, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: response is not JSON: %v (%s)", method, path, err, w.Body.String())
	}
	if _, err := time.Parse(time.RFC3339, env.Timestamp); err != nil {
		t.Errorf("%s %s: bad timestamp %q", method, path, env.Timestamp)
	}
	return w, env
}

func (a *testAPI) seed(owner *models.User, title string, important bool, deadline *time.Time) int64 {
	a.repo.mu.Lock()
	defer a.repo.mu.Unlock()
	id := a.repo.nextID
	a.repo.nextID++
	a.repo.tasks[id] = models.Task{
		ID:          id,
		UserID:      owner.ID,
		Title:       title,
		IsImportant: important,
		Quadrant:    models.QuadrantQ4,
		CreatedAt:   refNow.Add(-48 * time.Hour),
		DeadlineAt:  deadline,
	}
	return id
}

func decodeTask(t *testing.T, env envelope) models.Task {
	t.Helper()
	var task models.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("Failed to decode task: %v", err)
	}
	return task
}

func decodeTasks(t *testing.T, env envelope) []models.Task {
	t.Helper()
	var list []models.Task
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("Failed to decode task list: %v", err)
	}
	if list == nil {
		t.Fatal("Expected a JSON array, got null")
	}
	return list
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantQuadrant models.Quadrant
	}{
		{
			name:         "important and due tomorrow",
			body:         `{"title":"Ship release","is_important":true,"deadline_at":"2026-05-11T09:00:00Z"}`,
			wantStatus:   http.StatusCreated,
			wantQuadrant: models.QuadrantQ1,
		},
		{
			name:         "important without deadline",
			body:         `{"title":"Plan roadmap","is_important":true}`,
			wantStatus:   http.StatusCreated,
			wantQuadrant: models.QuadrantQ2,
		},
		{
			name:         "urgent only",
			body:         `{"title":"Reply to email","is_important":false,"deadline_at":"2026-05-12T12:00:00Z"}`,
			wantStatus:   http.StatusCreated,
			wantQuadrant: models.QuadrantQ3,
		},
		{"title too short", `{"title":"ab","is_important":true}`, http.StatusBadRequest, ""},
		{"importance missing", `{"title":"write report"}`, http.StatusBadRequest, ""},
		{"importance null", `{"title":"write report","is_important":null}`, http.StatusBadRequest, ""},
		{"malformed json", `{"title":`, http.StatusBadRequest, ""},
		{"bad deadline", `{"title":"Valid title","is_important":true,"deadline_at":"tomorrow"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := newTestAPI(t)
			w, env := api.do(t, "owner", http.MethodPost, "/api/v1/tasks", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusCreated {
				if env.Success || env.Error != "Bad Request" || env.Message == "" {
					t.Errorf("Unexpected error envelope %+v", env)
				}
				return
			}
			task := decodeTask(t, env)
			if task.Quadrant != tt.wantQuadrant {
				t.Errorf("Expected quadrant %s, got %s", tt.wantQuadrant, task.Quadrant)
			}
			if task.ID == 0 || task.Completed {
				t.Errorf("Unexpected created task %+v", task)
			}
		})
	}
}

func TestCreateTask_Unauthenticated(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	w, env := api.do(t, "", http.MethodPost, "/api/v1/tasks", `{"title":"Anything"}`)
	if w.Code != http.StatusUnauthorized || env.Success {
		t.Errorf("Expected 401 error envelope, got %d %+v", w.Code, env)
	}
}

func TestGetTask(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	id := api.seed(api.owner, "Owned task", true, nil)
	path := "/api/v1/tasks/" + itoa(id)

	tests := []struct {
		name       string
		user       string
		path       string
		wantStatus int
	}{
		{"owner", "owner", path, http.StatusOK},
		{"admin", "admin", path, http.StatusOK},
		{"other user", "other", path, http.StatusForbidden},
		{"missing", "owner", "/api/v1/tasks/999", http.StatusNotFound},
		{"non-numeric id", "owner", "/api/v1/tasks/abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, env := api.do(t, tt.user, http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK {
				if task := decodeTask(t, env); task.Quadrant != models.QuadrantQ2 {
					t.Errorf("Expected quadrant recomputed to Q2, got %s", task.Quadrant)
				}
			}
		})
	}
}

func TestListRoutes(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	soon := refNow.Add(3 * time.Hour)
	later := refNow.Add(30 * 24 * time.Hour)
	api.seed(api.owner, "Due today", true, &soon)
	api.seed(api.owner, "Someday", false, &later)
	api.seed(api.other, "Not mine", true, &soon)

	tests := []struct {
		name       string
		user       string
		path       string
		wantStatus int
		wantTitles []string
	}{
		{"all for owner", "owner", "/api/v1/tasks", http.StatusOK, []string{"Someday", "Due today"}},
		{"all for admin", "admin", "/api/v1/tasks", http.StatusOK, []string{"Not mine", "Someday", "Due today"}},
		{"quadrant Q1", "owner", "/api/v1/tasks/quadrant/Q1", http.StatusOK, []string{"Due today"}},
		{"quadrant Q3 empty", "owner", "/api/v1/tasks/quadrant/Q3", http.StatusOK, []string{}},
		{"quadrant invalid", "owner", "/api/v1/tasks/quadrant/Q5", http.StatusBadRequest, nil},
		{"status pending", "owner", "/api/v1/tasks/status/pending", http.StatusOK, []string{"Someday", "Due today"}},
		{"status invalid", "owner", "/api/v1/tasks/status/archived", http.StatusBadRequest, nil},
		{"search", "owner", "/api/v1/tasks/search?q=some", http.StatusOK, []string{"Someday"}},
		{"search no match", "owner", "/api/v1/tasks/search?q=zzz", http.StatusOK, []string{}},
		{"search too short", "owner", "/api/v1/tasks/search?q=a", http.StatusBadRequest, nil},
		{"today", "owner", "/api/v1/tasks/today", http.StatusOK, []string{"Due today"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, env := api.do(t, tt.user, http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantTitles == nil {
				return
			}
			list := decodeTasks(t, env)
			if len(list) != len(tt.wantTitles) {
				t.Fatalf("Expected %d tasks, got %d", len(tt.wantTitles), len(list))
			}
			for i, want := range tt.wantTitles {
				if list[i].Title != want {
					t.Errorf("Task %d: expected %q, got %q", i, want, list[i].Title)
				}
			}
		})
	}
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		user       string
		body       string
		wantStatus int
		check      func(t *testing.T, task models.Task)
	}{
		{
			name:       "make urgent by deadline",
			user:       "owner",
			body:       `{"deadline_at":"2026-05-10T18:00:00Z"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, task models.Task) {
				if task.Quadrant != models.QuadrantQ1 || !task.IsUrgent {
					t.Errorf("Expected urgent Q1, got %s urgent=%v", task.Quadrant, task.IsUrgent)
				}
			},
		},
		{
			name:       "clear description with null",
			user:       "owner",
			body:       `{"description":null,"title":"Renamed task"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, task models.Task) {
				if task.Description != nil || task.Title != "Renamed task" {
					t.Errorf("Unexpected task %+v", task)
				}
			},
		},
		{
			name:       "complete through update",
			user:       "owner",
			body:       `{"completed":true}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, task models.Task) {
				if !task.Completed || task.CompletedAt == nil {
					t.Errorf("Expected completed task with timestamp, got %+v", task)
				}
			},
		},
		{"invalid title", "owner", `{"title":"  "}`, http.StatusBadRequest, nil},
		{"other user", "other", `{"title":"Hijacked"}`, http.StatusForbidden, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			api := newTestAPI(t)
			id := api.seed(api.owner, "Write report", true, nil)

			w, env := api.do(t, tt.user, http.MethodPut, "/api/v1/tasks/"+itoa(id), tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.check != nil {
				tt.check(t, decodeTask(t, env))
			}
		})
	}
}

func TestCompleteAndDeleteTask(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	id := api.seed(api.owner, "Finish slides", false, nil)
	path := "/api/v1/tasks/" + itoa(id)

	w, env := api.do(t, "owner", http.MethodPatch, path+"/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Complete: expected 200, got %d", w.Code)
	}
	if task := decodeTask(t, env); !task.Completed {
		t.Error("Expected task completed")
	}

	w, env = api.do(t, "owner", http.MethodDelete, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Delete: expected 200, got %d", w.Code)
	}
	var deleted DeleteTaskResponse
	if err := json.Unmarshal(env.Data, &deleted); err != nil {
		t.Fatalf("Failed to decode delete response: %v", err)
	}
	if deleted.ID != id || deleted.Title != "Finish slides" || deleted.Message == "" {
		t.Errorf("Unexpected delete confirmation %+v", deleted)
	}

	if w, _ := api.do(t, "owner", http.MethodDelete, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("Second delete: expected 404, got %d", w.Code)
	}
}

func TestStatsRoutes(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	in3 := refNow.Add(3 * 24 * time.Hour)
	in1 := refNow.Add(24 * time.Hour)
	api.seed(api.owner, "Later", true, &in3)
	api.seed(api.owner, "Sooner", false, &in1)
	api.seed(api.owner, "No deadline", true, nil)

	w, env := api.do(t, "owner", http.MethodGet, "/api/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Stats: expected 200, got %d", w.Code)
	}
	var stats models.Stats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Total != 3 || stats.ByStatus.Pending != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	w, env = api.do(t, "owner", http.MethodGet, "/api/v1/stats/deadlines", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Deadlines: expected 200, got %d", w.Code)
	}
	var report models.DeadlineReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.Total != 2 || report.Tasks[0].Title != "Sooner" || report.Tasks[0].DaysUntilDeadline != 1 {
		t.Errorf("Unexpected deadline report %+v", report)
	}
}

func TestAdminUsers(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.repo.users = []models.UserTaskCount{{ID: api.owner.ID, Email: api.owner.Email, Role: models.RoleUser, TaskCount: 2}}

	w, env := api.do(t, "admin", http.MethodGet, "/api/v1/admin/users", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for admin, got %d", w.Code)
	}
	var users []models.UserTaskCount
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatalf("Failed to decode users: %v", err)
	}
	if len(users) != 1 || users[0].TaskCount != 2 {
		t.Errorf("Unexpected users %+v", users)
	}

	if w, env := api.do(t, "owner", http.MethodGet, "/api/v1/admin/users", ""); w.Code != http.StatusForbidden || env.Error != "Forbidden" {
		t.Errorf("Expected 403 for non-admin, got %d %+v", w.Code, env)
	}
}

func TestRepositoryFailureHidesDetails(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	api.repo.err = errors.New("pq: password authentication failed for user \"app\"")

	w, env := api.do(t, "owner", http.MethodGet, "/api/v1/tasks", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if strings.Contains(env.Message, "password") {
		t.Errorf("Internal error leaked: %q", env.Message)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
