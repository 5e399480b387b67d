package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hangout/config"
	"hangout/room"
	"hangout/store"
)

// Deps 服务的显式依赖；不使用任何进程级单例
type Deps struct {
	Config   config.Config
	Registry *room.Registry
	Hub      *Hub
	Catalog  store.Catalog
	Saver    *store.Saver // 可为 nil
	Metrics  *Metrics
	Logger   *zap.SugaredLogger
}

// Server HTTP 入口：/ws、/healthz、/metrics、/admin/rooms 与静态资源
type Server struct {
	cfg      config.Config
	registry *room.Registry
	hub      *Hub
	catalog  store.Catalog
	saver    *store.Saver
	metrics  *Metrics
	log      *zap.SugaredLogger
	upgrade  websocket.Upgrader
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	if d.Hub == nil {
		d.Hub = NewHub(d.Logger, d.Metrics)
		d.Hub.Attach(d.Registry)
	}
	s := &Server{
		cfg:      d.Config,
		registry: d.Registry,
		hub:      d.Hub,
		catalog:  d.Catalog,
		saver:    d.Saver,
		metrics:  d.Metrics,
		log:      d.Logger,
	}
	s.upgrade = s.upgrader()
	return s
}

// Handler 路由表
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	// 管理与监控接口
	mux.HandleFunc("/admin/rooms", s.HandleRooms)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.Server.StaticDir != "" {
		// 前后端分离：将 / 映射到静态资源目录
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.Server.StaticDir)))
	}
	return mux
}
