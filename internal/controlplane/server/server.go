package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dicebot/internal/account"
	"github.com/betbot/dicebot/internal/events"
	"github.com/betbot/dicebot/internal/strategies/bigsmall"
)

var log = logrus.WithField("component", "controlplane")

// Server 操作员控制面
// 指令最终都走策略的指令处理器，和事件流里的操作员指令同一条路径。
type Server struct {
	accounts *account.Manager
	strategy *bigsmall.Strategy
	httpSrv  *http.Server
}

// New 创建控制面服务
func New(accounts *account.Manager, strategy *bigsmall.Strategy) *Server {
	return &Server{accounts: accounts, strategy: strategy}
}

// Router 构建路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/accounts", s.handleAccountsList)

	acc := api.Group("/accounts/:name")
	acc.GET("/stats", s.command("stats"))
	acc.POST("/pause", s.command("pause"))
	acc.POST("/resume", s.command("resume"))
	acc.POST("/on", s.command("on"))
	acc.POST("/off", s.command("off"))
	acc.POST("/fund", s.commandWithBody("setfund"))
	acc.POST("/preset", s.commandWithBody("preset"))
	acc.POST("/warning", s.commandWithBody("warning"))
	acc.POST("/model", s.commandWithBody("model"))

	return r
}

// Run 启动 HTTP 监听，ctx 取消后优雅关停
func (s *Server) Run(ctx context.Context, listen string) error {
	s.httpSrv = &http.Server{Addr: listen, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("🕹️ 控制面已启动: %s", listen)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleAccountsList(c *gin.Context) {
	type row struct {
		Name    string `json:"name"`
		Mode    string `json:"mode"`
		Enabled bool   `json:"enabled"`
		Total   int    `json:"total"`
		Fund    int64  `json:"fund"`
	}
	var out []row
	for _, a := range s.accounts.All() {
		a.Lock()
		out = append(out, row{
			Name:    a.Name,
			Mode:    string(a.State.Pause.Mode),
			Enabled: a.State.Enabled,
			Total:   a.State.Counters.Total,
			Fund:    a.State.Counters.GamblingFund,
		})
		a.Unlock()
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// command 无参数指令
func (s *Server) command(cmd string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.dispatch(c, cmd, nil)
	}
}

// commandWithBody 带单参数指令，参数从 {"value": "..."} 里取
func (s *Server) commandWithBody(cmd string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Value string `json:"value"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Value == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 value 字段"})
			return
		}
		s.dispatch(c, cmd, []string{body.Value})
	}
}

func (s *Server) dispatch(c *gin.Context, cmd string, args []string) {
	ev := &events.OperatorCommandEvent{
		Account:   c.Param("name"),
		Command:   cmd,
		Args:      args,
		Timestamp: time.Now(),
	}
	reply, err := s.strategy.HandleCommand(c.Request.Context(), ev)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
