package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	agendadomain "github.com/smallbiznis/taskboard/internal/agenda/domain"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/session"
	"github.com/smallbiznis/taskboard/internal/authorization"
	calendardomain "github.com/smallbiznis/taskboard/internal/calendar/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/observability"
	obsmiddleware "github.com/smallbiznis/taskboard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	obstracing "github.com/smallbiznis/taskboard/internal/observability/tracing"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	projectdomain "github.com/smallbiznis/taskboard/internal/project/domain"
	signupdomain "github.com/smallbiznis/taskboard/internal/signup/domain"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		QuietRoutes:     []string{"/health", "/metrics"},
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", obsmiddleware.HeaderRequestID, HeaderOrg},
		ExposeHeaders:    []string{obsmiddleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	clock       clock.Clock
	settings    *config.BoardSettings
	authsvc     authdomain.Service
	sessions    *session.Manager
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service
	orgSvc      organizationdomain.Service
	teamSvc     teamdomain.Service
	projectSvc  projectdomain.Service
	taskSvc     taskdomain.Service
	calendarSvc calendardomain.Service
	agendaSvc   agendadomain.Service
	signupsvc   signupdomain.Service
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	Settings    *config.BoardSettings
	Authsvc     authdomain.Service
	Sessions    *session.Manager
	AuthzSvc    authorization.Service
	AuditSvc    auditdomain.Service
	OrgSvc      organizationdomain.Service
	TeamSvc     teamdomain.Service
	ProjectSvc  projectdomain.Service
	TaskSvc     taskdomain.Service
	CalendarSvc calendardomain.Service
	AgendaSvc   agendadomain.Service
	SignupSvc   signupdomain.Service
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		clock:       p.Clock,
		settings:    p.Settings,
		authsvc:     p.Authsvc,
		sessions:    p.Sessions,
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		orgSvc:      p.OrgSvc,
		teamSvc:     p.TeamSvc,
		projectSvc:  p.ProjectSvc,
		taskSvc:     p.TaskSvc,
		calendarSvc: p.CalendarSvc,
		agendaSvc:   p.AgendaSvc,
		signupsvc:   p.SignupSvc,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerRPCRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.POST("/forgot", s.Forgot)
	auth.POST("/reset", s.ResetPassword)
	auth.GET("/me", s.RequireAuth(), s.Me)
	auth.POST("/change-password", s.RequireAuth(), s.ChangePassword)
	auth.POST("/invites/accept", s.RequireAuth(), s.AcceptInvite)

	user := auth.Group("/user", s.RequireAuth())
	{
		user.GET("/orgs", s.ListUserOrgs)
		user.POST("/orgs", s.CreateOrganization)
		user.POST("/using/:orgId", s.UseOrg)
	}
}

func (s *Server) registerRPCRoutes() {
	rpc := s.engine.Group("/rpc", s.RequireAuth(), s.OrgContext())
	rpc.POST("/:name", s.CallRPC)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.Use(s.RequireAuth())
	api.Use(s.OrgContext())

	// -------- Organization & profile --------
	api.GET("/org", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationView), s.GetCurrentOrg)
	api.GET("/profile", s.GetMyProfile)
	api.PATCH("/profile", s.UpdateMyProfile)
	api.GET("/home", s.GetHome)

	// -------- Users (useOrgUsers) --------
	api.GET("/users", s.authorizeOrgAction(authorization.ObjectUser, authorization.ActionUserView), s.ListOrgUsers)
	api.POST("/users/invites", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectUser, authorization.ActionUserInvite), s.InviteUsers)
	api.PATCH("/users/:id/admin", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectUser, authorization.ActionUserManage), s.SetUserAdmin)

	// -------- Teams --------
	api.GET("/teams", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamView), s.ListTeams)
	api.GET("/teams/mine", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamView), s.ListMyTeamIDs)
	api.GET("/teams/:id", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamView), s.GetTeam)
	api.GET("/teams/:id/members", s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamView), s.ListTeamMembers)
	api.POST("/teams", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamWrite), s.CreateTeam)
	api.PATCH("/teams/:id", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamWrite), s.UpdateTeam)
	api.DELETE("/teams/:id", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamDelete), s.DeleteTeam)
	api.POST("/teams/:id/members", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamManageMembers), s.AddTeamMember)
	api.DELETE("/teams/:id/members/:userId", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectTeam, authorization.ActionTeamManageMembers), s.RemoveTeamMember)

	// -------- Projects --------
	api.GET("/projects", s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectView), s.ListProjects)
	api.GET("/projects/:id", s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectView), s.GetProject)
	api.GET("/projects/:id/teams", s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectView), s.ListProjectTeams)
	api.GET("/projects/:id/report", s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectReport), s.ProjectReport)
	api.POST("/projects", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectWrite), s.CreateProject)
	api.PATCH("/projects/:id", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectWrite), s.PatchProject)
	api.DELETE("/projects/:id", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectDelete), s.DeleteProject)
	api.POST("/projects/:id/teams/:teamId", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectWrite), s.AttachProjectTeam)
	api.DELETE("/projects/:id/teams/:teamId", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectProject, authorization.ActionProjectWrite), s.DetachProjectTeam)

	// -------- Tasks --------
	api.GET("/tasks", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionTaskView), s.ListTasks)
	api.GET("/tasks/:id", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionTaskView), s.GetTask)
	api.DELETE("/tasks/:id", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionTaskDelete), s.DeleteTask)

	// -------- Calendar & agenda --------
	api.GET("/events", s.authorizeOrgAction(authorization.ObjectCalendarEvent, authorization.ActionCalendarEventView), s.ListEvents)
	api.GET("/events/:id", s.authorizeOrgAction(authorization.ObjectCalendarEvent, authorization.ActionCalendarEventView), s.GetEvent)
	api.POST("/events", s.authorizeOrgAction(authorization.ObjectCalendarEvent, authorization.ActionCalendarEventWrite), s.CreateEvent)
	api.PATCH("/events/:id", s.authorizeOrgAction(authorization.ObjectCalendarEvent, authorization.ActionCalendarEventWrite), s.UpdateEvent)
	api.DELETE("/events/:id", s.authorizeOrgAction(authorization.ObjectCalendarEvent, authorization.ActionCalendarEventDelete), s.DeleteEvent)
	api.GET("/agenda", s.authorizeOrgAction(authorization.ObjectTask, authorization.ActionTaskView), s.GetAgenda)

	// -------- Audit --------
	api.GET("/audit-logs", s.AdminOnly(), s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
