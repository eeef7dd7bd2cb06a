package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/service"
)

// DefaultLimit 是未指定 limit 参数时返回的推荐条数。
const DefaultLimit = 10

// Server 是推荐服务的 HTTP 接入层，只做参数搬运与编解码，语义全在 service。
//
// 路由：
//   GET    /recommendations/{userID}?limit=N  读推荐（cache-aside）
//   POST   /recommendations/refresh           触发全量刷新（异步，202）
//   DELETE /recommendations/{userID}          失效单用户缓存
//   GET    /healthz                           存活探测
//   GET    /metrics                           Prometheus 指标
type Server struct {
	svc *service.Service
	log zerolog.Logger

	// refreshing 保证同一时刻最多一个在途全量刷新（每次刷新是 O(users²·items)）
	refreshing atomic.Bool
}

// New 创建 HTTP 接入层。
func New(svc *service.Service, log zerolog.Logger) *Server {
	return &Server{svc: svc, log: log}
}

// Router 构建路由。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/recommendations", func(r chi.Router) {
		r.Get("/{userID}", s.handleGet)
		r.Post("/refresh", s.handleRefresh)
		r.Delete("/{userID}", s.handleInvalidate)
	})
	return r
}

type recommendationResponse struct {
	UserID          string   `json:"user_id"`
	Recommendations []string `json:"recommendations"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	recs, err := s.svc.GetRecommendations(r.Context(), userID, limit)
	if err != nil {
		// 只有评分数据源故障会走到这里；缓存故障在下层已经降级
		s.log.Error().Err(err).Str("user_id", userID).Msg("get recommendations failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rating source unavailable"})
		return
	}
	if recs == nil {
		recs = []string{}
	}
	writeJSON(w, http.StatusOK, recommendationResponse{UserID: userID, Recommendations: recs})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// 已有在途刷新时拒绝，操作员连点不应把负载翻倍
	if !s.refreshing.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "already running"})
		return
	}

	// 刷新允许远慢于交互请求，脱离请求生命周期异步执行
	go func() {
		defer s.refreshing.Store(false)
		n, err := s.svc.RefreshAll(context.Background())
		if err != nil {
			s.log.Error().Err(err).Msg("refresh all failed")
			return
		}
		s.log.Info().Int("users", n).Msg("refresh all done")
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s.svc.Invalidate(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
