// Package mockadmin 提供内存版后台管理服务，供测试与 CLI 演示使用。
//
// 响应遵循 {code, message, data, traceId, timestamp} 信封，令牌为 HS256 JWT。
// 支持按路径注入故障、统计调用次数与控制时钟，便于验证客户端的刷新与健康逻辑。
package mockadmin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/omeyang/xadmin/pkg/business/xadmin"
	"github.com/omeyang/xadmin/pkg/context/xctx"
	"github.com/omeyang/xadmin/pkg/observability/xtrace"
	"github.com/omeyang/xadmin/pkg/session/xenvelope"
)

// 默认值。
const (
	DefaultAccessTTL   = 15 * time.Minute
	DefaultRefreshTTL  = 24 * time.Hour
	DefaultCaptchaCode = "1234"
)

// Config 服务配置。
type Config struct {
	// Secret JWT 签名密钥，为空时随机生成。
	Secret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// CaptchaCode 所有验证码的答案。
	CaptchaCode string

	// SnakeCaseTokens 登录/刷新响应使用 access_token/refresh_token 字段名。
	SnakeCaseTokens bool

	// NestedProfile /auth/info 把资料放在 profile 子对象中。
	NestedProfile bool

	// RotateRefresh 刷新时同时轮换 refresh token。
	RotateRefresh bool

	// UnauthorizedHTTPStatus 令牌无效时的 HTTP 状态码，默认 200（信封 code=401）。
	UnauthorizedHTTPStatus int
}

func (c *Config) applyDefaults() {
	if len(c.Secret) == 0 {
		c.Secret = []byte(uuid.NewString())
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.CaptchaCode == "" {
		c.CaptchaCode = DefaultCaptchaCode
	}
	if c.UnauthorizedHTTPStatus == 0 {
		c.UnauthorizedHTTPStatus = http.StatusOK
	}
}

// Fault 注入的故障。HTTPStatus 非 0 时返回非信封响应，否则返回信封 Code。
// Drop 为 true 时直接断开连接。Times 为 0 表示一直生效。
type Fault struct {
	Code       int
	HTTPStatus int
	Message    string
	TraceID    string
	Drop       bool
	Delay      time.Duration
	Times      int
}

// Option 配置 Server。
type Option func(*Server)

// WithLogger 设置日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNow 设置时钟，用于令牌签发与校验。
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server 内存版后台服务。并发安全。
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	data       *dataset
	captchas   map[string]string
	revoked    map[string]struct{}
	generation int
	faults     map[string]*Fault
	calls      map[string]int
}

// New 创建服务并载入种子数据。
func New(cfg Config, opts ...Option) *Server {
	cfg.applyDefaults()
	s := &Server{
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		data:     seed(),
		captchas: make(map[string]string),
		revoked:  make(map[string]struct{}),
		faults:   make(map[string]*Fault),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), tracing(), s.accessLog(), s.faultInjector())
	s.routes()
	return s
}

// Handler 返回 HTTP 处理器。
func (s *Server) Handler() http.Handler { return s.engine }

// Serve 在 ln 上提供服务，ctx 取消后优雅关闭。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Inject 为 path 注入故障，覆盖已有故障。
func (s *Server) Inject(path string, f Fault) {
	s.mu.Lock()
	s.faults[path] = &f
	s.mu.Unlock()
}

// ClearFaults 清除全部故障。
func (s *Server) ClearFaults() {
	s.mu.Lock()
	clear(s.faults)
	s.mu.Unlock()
}

// Calls 返回 path 的调用次数（含被故障拦截的调用）。
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// RevokeAll 吊销所有已签发的令牌，之后签发的令牌不受影响。
func (s *Server) RevokeAll() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// =============================================================================
// 中间件
// =============================================================================

// tracing 接收上游 traceparent，缺失时生成；trace id 写入响应头与失败信封。
func tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := xtrace.ContextWithInfo(c.Request.Context(), xtrace.Extract(c.Request.Header), true)
		c.Request = c.Request.WithContext(ctx)
		c.Header(xtrace.HeaderTraceID, xctx.TraceID(ctx))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.DebugContext(c.Request.Context(), "mockadmin: request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) faultInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		s.mu.Lock()
		s.calls[path]++
		var fault Fault
		f, ok := s.faults[path]
		if ok {
			fault = *f
			if f.Times > 0 {
				f.Times--
				if f.Times == 0 {
					delete(s.faults, path)
				}
			}
		}
		s.mu.Unlock()
		if !ok {
			c.Next()
			return
		}

		if fault.Delay > 0 {
			select {
			case <-time.After(fault.Delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		switch {
		case fault.Drop:
			if hj, ok := c.Writer.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close() //nolint:errcheck // 模拟断连
				}
			}
			c.Abort()
		case fault.HTTPStatus != 0:
			c.AbortWithStatus(fault.HTTPStatus)
		case fault.Code != 0:
			traceID := fault.TraceID
			if traceID == "" {
				traceID = traceIDOf(c)
			}
			c.AbortWithStatusJSON(http.StatusOK, xenvelope.Failure(fault.Code, fault.Message, traceID))
		default:
			c.Next()
		}
	}
}

// =============================================================================
// 响应辅助
// =============================================================================

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, xenvelope.Success(data))
}

func traceIDOf(c *gin.Context) string { return xctx.TraceID(c.Request.Context()) }

func failure(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(http.StatusOK, xenvelope.Failure(code, message, traceIDOf(c)))
}

// =============================================================================
// 路由
// =============================================================================

func (s *Server) routes() {
	r := s.engine

	r.GET("/auth/captcha", s.captcha)
	r.POST("/auth/login", s.login)
	r.POST("/auth/refresh", s.refresh)

	authed := r.Group("/", s.authenticate())
	authed.GET("/auth/info", s.info)
	authed.POST("/auth/logout", s.logout)
	authed.GET("/system/menu/getRouters", s.routers)

	user := authed.Group("/system/user")
	user.GET("/list", s.listUsers)
	user.GET("/:id", s.getUser)
	user.POST("", s.createUser)
	user.PUT("", s.updateUser)
	user.DELETE("/:id", s.deleteUsers)

	role := authed.Group("/system/role")
	role.GET("/list", s.listRoles)
	role.GET("/:id", s.getRole)
	role.GET("/:id/menus", s.roleMenus)
	role.PUT("", s.updateRole)

	dept := authed.Group("/system/dept")
	dept.GET("/list", s.deptTree)
	dept.GET("/treeselect", s.deptTreeSelect)
	dept.GET("/:id", s.getDept)
	dept.POST("", s.createDept)
	dept.PUT("", s.updateDept)
	dept.DELETE("/:id", s.deleteDept)

	menu := authed.Group("/system/menu")
	menu.GET("/list", s.menuTree)
	menu.GET("/treeselect", s.menuTreeSelect)
	menu.GET("/:id", s.getMenu)
	menu.POST("", s.createMenu)
	menu.PUT("", s.updateMenu)
	menu.DELETE("/:id", s.deleteMenu)

	dict := authed.Group("/system/dict")
	dict.GET("/type/list", s.listDictTypes)
	dict.GET("/type/:id", s.getDictType)
	dict.POST("/type", s.createDictType)
	dict.PUT("/type", s.updateDictType)
	dict.DELETE("/type/:id", s.deleteDictTypes)
	dict.GET("/data/type/:dictType", s.dictDataByType)
	dict.GET("/data/list", s.listDictData)
	dict.POST("/data", s.createDictData)
	dict.PUT("/data", s.updateDictData)
	dict.DELETE("/data/:id", s.deleteDictData)
}

// Users 返回当前全部用户，测试断言使用。
func (s *Server) Users() []xadmin.UserVO {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]xadmin.UserVO, 0, len(s.data.users))
	for _, id := range sortedKeys(s.data.users) {
		out = append(out, s.data.users[id].UserVO)
	}
	return out
}
