package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/devshad-01/social-task-notify/internal/config"
	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/service"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// Server wires HTTP handlers.
type Server struct {
	app       *fiber.App
	notifySvc *service.NotifyService
	queueSvc  *service.QueueService
	inboxSvc  *service.InboxService
	pushSvc   *service.PushService
	oplogSvc  *service.OpLogService
	authSvc   *service.AuthService
	cfg       *config.Config
	log       zerolog.Logger
}

// New builds a server instance.
func New(cfg *config.Config, notifySvc *service.NotifyService, queueSvc *service.QueueService, inboxSvc *service.InboxService, pushSvc *service.PushService, oplogSvc *service.OpLogService, authSvc *service.AuthService, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		IdleTimeout:  cfg.HTTP.ReadTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		AppName:      "social-task-notify",
	})
	s := &Server{
		app:       app,
		notifySvc: notifySvc,
		queueSvc:  queueSvc,
		inboxSvc:  inboxSvc,
		pushSvc:   pushSvc,
		oplogSvc:  oplogSvc,
		authSvc:   authSvc,
		cfg:       cfg,
		log:       log,
	}
	s.registerRoutes()
	return s
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)

	s.app.Post("/auth/login", s.handleLogin)
	s.app.Get("/auth/profile", s.handleProfile)

	api := s.app.Group("/api", s.requireAuth)

	api.Post("/notify/send", s.handleSend)

	api.Post("/queue/enqueue", s.handleEnqueue)
	api.Post("/queue/cancel/:id", s.handleCancel)
	api.Get("/queue/entry/:id", s.handleGetEntry)
	api.Get("/queue/stats", s.handleQueueStats)

	api.Post("/subscriptions", s.handleSaveSubscription)
	api.Delete("/subscriptions/:userId", s.handleRemoveSubscription)

	api.Get("/inbox/:userId", s.handleInboxList)
	api.Get("/inbox/:userId/stats", s.handleInboxStats)
	api.Post("/inbox/:userId/read-all", s.handleInboxReadAll)
	api.Post("/inbox/:userId/read/:id", s.handleInboxRead)
	api.Delete("/inbox/:userId/:id", s.handleInboxDelete)

	api.Get("/oplog/list", s.handleOpLogList)
	api.Get("/oplog/count/date", s.handleOpLogCountDate)
	api.Get("/oplog/count/operation", s.handleOpLogCountOperation)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status": "ok",
		"push":   s.pushSvc.Enabled(),
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(model.Error("malformed request"))
	}
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.JSON(model.Success("auth disabled", fiber.Map{
			"token":   "",
			"enabled": false,
		}))
	}
	token, err := s.authSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("login ok", fiber.Map{
		"token":    token,
		"enabled":  true,
		"username": s.authSvc.Username(),
	}))
}

func (s *Server) handleProfile(c *fiber.Ctx) error {
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.JSON(model.Success("ok", fiber.Map{
			"enabled":  false,
			"username": "guest",
		}))
	}
	token := extractBearerToken(c.Get("Authorization"))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("not logged in"))
	}
	claims, err := s.authSvc.Validate(token)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("session expired"))
	}
	return c.JSON(model.Success("ok", fiber.Map{
		"enabled":  true,
		"username": claims.Username,
	}))
}

func (s *Server) handleSend(c *fiber.Ctx) error {
	var req service.SendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error("malformed request"))
	}
	result, err := s.notifySvc.Send(c.UserContext(), req)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("dispatched", result))
}

func (s *Server) handleEnqueue(c *fiber.Ctx) error {
	var body struct {
		service.EnqueueOptions
		TTLMinutes int `json:"ttlMinutes"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error("malformed request"))
	}
	opts := body.EnqueueOptions
	if body.TTLMinutes > 0 {
		opts.TTL = time.Duration(body.TTLMinutes) * time.Minute
	}
	id, err := s.queueSvc.Enqueue(c.UserContext(), opts)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("enqueued", fiber.Map{"entryId": id}))
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	cancelled, err := s.queueSvc.Cancel(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", fiber.Map{"cancelled": cancelled}))
}

func (s *Server) handleGetEntry(c *fiber.Ctx) error {
	entry, err := s.queueSvc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(http.StatusNotFound).JSON(model.Error("entry not found"))
		}
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", entry))
}

func (s *Server) handleQueueStats(c *fiber.Ctx) error {
	stats, err := s.queueSvc.Stats(c.UserContext())
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", stats))
}

func (s *Server) handleSaveSubscription(c *fiber.Ctx) error {
	var sub model.PushSubscription
	if err := c.BodyParser(&sub); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error("malformed request"))
	}
	if err := s.pushSvc.SaveSubscription(c.UserContext(), &sub); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("subscription saved", nil))
}

func (s *Server) handleRemoveSubscription(c *fiber.Ctx) error {
	if err := s.pushSvc.RemoveSubscription(c.UserContext(), c.Params("userId")); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("subscription removed", nil))
}

func (s *Server) handleInboxList(c *fiber.Ctx) error {
	unreadOnly := c.QueryBool("unread", false)
	limit := c.QueryInt("limit", 50)
	records, err := s.inboxSvc.List(c.UserContext(), c.Params("userId"), unreadOnly, limit)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", records))
}

func (s *Server) handleInboxStats(c *fiber.Ctx) error {
	stats, err := s.inboxSvc.Stats(c.UserContext(), c.Params("userId"))
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", stats))
}

func (s *Server) handleInboxRead(c *fiber.Ctx) error {
	err := s.inboxSvc.MarkRead(c.UserContext(), c.Params("userId"), c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(http.StatusNotFound).JSON(model.Error("record not found"))
		}
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("marked read", nil))
}

func (s *Server) handleInboxReadAll(c *fiber.Ctx) error {
	marked, err := s.inboxSvc.MarkAllRead(c.UserContext(), c.Params("userId"))
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("marked read", fiber.Map{"marked": marked}))
}

func (s *Server) handleInboxDelete(c *fiber.Ctx) error {
	err := s.inboxSvc.Delete(c.UserContext(), c.Params("userId"), c.Params("id"))
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("deleted", nil))
}

func (s *Server) handleOpLogList(c *fiber.Ctx) error {
	filter := parseOpLogFilter(c)
	page, err := s.oplogSvc.Query(c.UserContext(), filter)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", page))
}

func (s *Server) handleOpLogCountDate(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	dateType := c.Query("dateType", "day")
	data, err := s.oplogSvc.CountByDate(c.UserContext(), dateType, begin, end)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleOpLogCountOperation(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.oplogSvc.CountByOperation(c.UserContext(), begin, end)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.Next()
	}
	token := extractBearerToken(c.Get("Authorization"))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("not logged in"))
	}
	claims, err := s.authSvc.Validate(token)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error("session expired"))
	}
	c.Locals("username", claims.Username)
	return c.Next()
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseOpLogFilter(c *fiber.Ctx) model.OpLogFilter {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", "10"))
	begin, end := parseTimeRange(c)
	return model.OpLogFilter{
		Operation: c.Query("operation"),
		EntryID:   c.Query("entryId"),
		BeginTime: begin,
		EndTime:   end,
		Page:      page,
		PageSize:  pageSize,
	}
}

func parseTimeRange(c *fiber.Ctx) (*time.Time, *time.Time) {
	return parseTime(c.Query("beginTime")), parseTime(c.Query("endTime"))
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
