// Package server adapts the store to the DynamoDB HTTP wire protocol:
// a single RPC endpoint dispatched on the X-Amz-Target header, the DynamoDB
// JSON envelope in and out, plus health and metrics endpoints.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// targetPrefix is the service/version tag every DynamoDB client sends.
const targetPrefix = "DynamoDB_20120810."

// DB is the slice of the store the adapter needs. *ddbstore.Store satisfies
// it, and so does a real *dynamodb.Client, which keeps handler tests honest.
type DB interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type Server struct {
	db  DB
	log *zap.Logger

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New builds the adapter. Collectors register into the given registry, and
// /metrics scrapes the same one; tests pass a fresh registry to stay
// isolated.
func New(db DB, log *zap.Logger, reg *prometheus.Registry) *Server {
	return &Server{
		db:       db,
		log:      log,
		registry: reg,
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ddblocal_requests_total",
			Help: "API requests by action and result code.",
		}, []string{"action", "code"}),
		latency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ddblocal_request_duration_seconds",
			Help:    "API request latency by action.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// Router assembles the chi mux: the RPC root, health and metrics.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Post("/", s.dispatch)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// requestID stamps every response with an amzn request id, which SDK retry
// and logging layers expect to find.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-amzn-RequestId", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	if !strings.HasPrefix(target, targetPrefix) {
		s.writeError(w, "unknown", errUnknownOperation(target))
		return
	}
	action := strings.TrimPrefix(target, targetPrefix)

	handler, ok := s.actions()[action]
	if !ok {
		s.writeError(w, action, errUnknownOperation(target))
		return
	}

	started := time.Now()
	code := handler(w, r)
	s.requests.WithLabelValues(action, code).Inc()
	s.latency.WithLabelValues(action).Observe(time.Since(started).Seconds())
	s.log.Debug("handled request",
		zap.String("action", action),
		zap.String("code", code),
		zap.Duration("took", time.Since(started)),
	)
}

// actionFunc handles one action and reports the result code for metrics:
// "ok" or the wire error name.
type actionFunc func(w http.ResponseWriter, r *http.Request) string

func (s *Server) actions() map[string]actionFunc {
	return map[string]actionFunc{
		"CreateTable":    s.createTable,
		"DescribeTable":  s.describeTable,
		"DeleteTable":    s.deleteTable,
		"ListTables":     s.listTables,
		"PutItem":        s.putItem,
		"GetItem":        s.getItem,
		"DeleteItem":     s.deleteItem,
		"UpdateItem":     s.updateItem,
		"Query":          s.query,
		"Scan":           s.scan,
		"BatchGetItem":   s.batchGetItem,
		"BatchWriteItem": s.batchWriteItem,
	}
}
