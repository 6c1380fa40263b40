// Package gatewaytest provides an in-memory workspace proxy for tests and
// local development. It serves the same routes as the real proxy.
package gatewaytest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	gosync "sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/efficio/internal/model"
)

// Route keys accepted by Fail and Calls.
const (
	RouteHealth          = "GET /health"
	RouteListTasks       = "GET /api/notion/tasks"
	RouteCreateTask      = "POST /api/notion/tasks"
	RouteUpdateTask      = "PUT /api/notion/tasks/:id"
	RouteDeleteTask      = "DELETE /api/notion/tasks/:id"
	RouteListArchived    = "GET /api/notion/archive-tasks"
	RouteCreateArchived  = "POST /api/notion/archive-tasks"
	RouteListHabits      = "GET /api/notion/habits"
	RouteUpdateHabit     = "PATCH /api/notion/habits/:id"
	RouteCreateTimeBlock = "POST /api/notion/timeblocks"
)

// Task is a task as the proxy stores it. Status uses the remote vocabulary.
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	DueDate  string `json:"dueDate"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Archived bool   `json:"-"`
}

// Habit is a habit tracker row.
type Habit struct {
	ID          string `json:"id"`
	Name        string `json:"habit"`
	Description string `json:"description"`
	DoNow       bool   `json:"doNow"`
}

// TimeBlock is a created time block.
type TimeBlock struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	Duration string  `json:"duration"`
	Type     string  `json:"type"`
	Tasks    []int64 `json:"tasks"`
}

type failure struct {
	status  int
	message string
}

// Server is a fake workspace proxy. All methods are safe for concurrent use.
type Server struct {
	mu         gosync.Mutex
	token      string
	tasks      map[string]*Task
	archived   map[string]*Task
	habits     map[string]*Habit
	timeBlocks []TimeBlock
	failures   map[string]failure
	calls      map[string]int
	order      []string
	engine     *gin.Engine
}

// NewServer creates an empty fake proxy. A non-empty token makes every
// /api route require "Authorization: Bearer <token>".
func NewServer(token string) *Server {
	s := &Server{
		token:    token,
		tasks:    make(map[string]*Task),
		archived: make(map[string]*Task),
		habits:   make(map[string]*Habit),
		failures: make(map[string]failure),
		calls:    make(map[string]int),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving the proxy routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.track())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	api := r.Group("/api/notion")
	api.Use(s.auth())
	{
		api.GET("/tasks", s.listTasks)
		api.POST("/tasks", s.createTask)
		api.PUT("/tasks/:id", s.updateTask)
		api.DELETE("/tasks/:id", s.deleteTask)
		api.GET("/archive-tasks", s.listArchived)
		api.POST("/archive-tasks", s.createArchived)
		api.GET("/habits", s.listHabits)
		api.PATCH("/habits/:id", s.updateHabit)
		api.POST("/timeblocks", s.createTimeBlock)
	}
	return r
}

// track counts calls per route and applies injected failures.
func (s *Server) track() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.FullPath()

		s.mu.Lock()
		s.calls[key]++
		f, failing := s.failures[key]
		s.mu.Unlock()

		if failing {
			c.AbortWithStatusJSON(f.status, gin.H{
				"error":   f.message,
				"details": "injected failure",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// Fail makes every subsequent request to route answer with status and an
// error payload until Recover is called.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, message: fmt.Sprintf("injected %d", status)}
}

// Recover clears the injected failure for route.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Calls returns how many requests route has received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// SeedTask stores t in the active database and returns its id.
func (s *Server) SeedTask(t Task) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(s.tasks, t)
}

// SeedArchivedTask stores t in the archive database and returns its id.
func (s *Server) SeedArchivedTask(t Task) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(s.archived, t)
}

// SeedHabit stores h.
func (s *Server) SeedHabit(h Habit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	s.habits[h.ID] = &h
}

// Task returns a copy of the active task with id.
func (s *Server) Task(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Tasks returns the non-archived active tasks in creation order.
func (s *Server) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(s.tasks, false)
}

// ArchivedTasks returns the tasks in the archive database.
func (s *Server) ArchivedTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(s.archived, false)
}

// Habit returns a copy of the habit with id.
func (s *Server) Habit(id string) (Habit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	if !ok {
		return Habit{}, false
	}
	return *h, true
}

// TimeBlocks returns every created time block.
func (s *Server) TimeBlocks() []TimeBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TimeBlock(nil), s.timeBlocks...)
}

func (s *Server) putLocked(db map[string]*Task, t Task) string {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = "Pending"
	}
	if _, exists := db[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	db[t.ID] = &t
	return t.ID
}

func (s *Server) listLocked(db map[string]*Task, withArchived bool) []Task {
	out := make([]Task, 0, len(db))
	for _, id := range s.order {
		t, ok := db[id]
		if !ok || (t.Archived && !withArchived) {
			continue
		}
		out = append(out, *t)
	}
	return out
}

func (s *Server) listTasks(c *gin.Context) {
	s.mu.Lock()
	tasks := s.listLocked(s.tasks, false)
	s.mu.Unlock()
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) listArchived(c *gin.Context) {
	s.mu.Lock()
	tasks := s.listLocked(s.archived, false)
	s.mu.Unlock()
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) createTask(c *gin.Context) {
	s.create(c, false)
}

func (s *Server) createArchived(c *gin.Context) {
	s.create(c, true)
}

func (s *Server) create(c *gin.Context, archive bool) {
	var req Task
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "details": "invalid task payload"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	req.ID = ""
	req.Archived = false
	switch {
	case !archive:
		req.Status = model.Status(req.Status).Remote()
	case req.Status == "":
		req.Status = model.RemoteStatusCompleted
	}

	s.mu.Lock()
	db := s.tasks
	if archive {
		db = s.archived
	}
	id := s.putLocked(db, req)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "message": "Task created successfully"})
}

func (s *Server) updateTask(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		t.Status = model.Status(req.Status).Remote()
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found", "details": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "message": "Task updated successfully"})
}

func (s *Server) deleteTask(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		t.Archived = true
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found", "details": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "message": "Task deleted (archived)"})
}

func (s *Server) listHabits(c *gin.Context) {
	s.mu.Lock()
	habits := make([]Habit, 0, len(s.habits))
	for _, h := range s.habits {
		habits = append(habits, *h)
	}
	s.mu.Unlock()

	sort.Slice(habits, func(i, j int) bool { return habits[i].Name < habits[j].Name })
	c.JSON(http.StatusOK, habits)
}

func (s *Server) updateHabit(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		DoNow *bool `json:"doNow"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.DoNow == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "doNow is required"})
		return
	}

	s.mu.Lock()
	h, ok := s.habits[id]
	if ok {
		h.DoNow = *req.DoNow
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "habit not found", "details": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "doNow": *req.DoNow})
}

func (s *Server) createTimeBlock(c *gin.Context) {
	var req TimeBlock
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" || req.Date == "" || req.Time == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, date and time are required"})
		return
	}
	req.ID = uuid.New().String()

	s.mu.Lock()
	s.timeBlocks = append(s.timeBlocks, req)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "id": req.ID, "message": "Time block created successfully"})
}
