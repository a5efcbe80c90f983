// Command quantengine-server is a thin REST façade over a Computer,
// using gin.Context handlers and gin.H error bodies over a single
// *gin.Engine. It exposes three operations: add a literal quantity under
// a key, evaluate a key, and describe a key's task tree.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"quantengine/pkg/cache"
	"quantengine/pkg/compute"
	"quantengine/pkg/graph"
	"quantengine/pkg/key"
	"quantengine/pkg/quantity"
	"quantengine/pkg/unit"
)

// Server wraps a Computer with the HTTP handlers, so a test can construct
// one directly against an httptest server without going through main.
type Server struct {
	c *compute.Computer
}

func NewServer(c *compute.Computer) *Server {
	return &Server{c: c}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.Default()
	r.POST("/keys", s.handleAddKey)
	r.GET("/keys/:key", s.handleGetKey)
	r.GET("/keys/:key/describe", s.handleDescribeKey)
	return r
}

// putKeyRequest is the body of POST /keys: a literal Quantity given as a
// flat row list, the same shape pkg/quantity.Row uses for CSV/Arrow I/O.
type putKeyRequest struct {
	Key   string          `json:"key"`
	Dims  []string        `json:"dims"`
	Units string          `json:"units"`
	Rows  []putKeyRowJSON `json:"rows"`
}

type putKeyRowJSON struct {
	Coords map[string]string `json:"coords"`
	Value  float64           `json:"value"`
}

func (s *Server) handleAddKey(c *gin.Context) {
	var req putKeyRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	target, err := key.Parse(req.Key)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := s.c.Units().Lookup(req.Units)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rows := make([]quantity.Row, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, quantity.Row{Coords: row.Coords, Value: row.Value})
	}
	q, err := quantity.FromRows(target.Name(), rows, req.Dims, u)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.c.AddLiteral(target, graph.QuantityValue(q), compute.AddOptions{Strict: true}); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": target.String()})
}

func (s *Server) handleGetKey(c *gin.Context) {
	target, err := key.Parse(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := s.c.Get(c.Request.Context(), target)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if q, ok := v.AsQuantity(); ok {
		c.JSON(http.StatusOK, gin.H{"key": target.String(), "units": q.Units().String(), "rows": q.ToSeries()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": target.String(), "value": v.String()})
}

func (s *Server) handleDescribeKey(c *gin.Context) {
	target, err := key.Parse(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, s.c.Describe(target))
}

func main() {
	redisAddr := flag.String("cache-redis-addr", "", "Redis address for the load_file cache (disabled if empty)")
	flag.Parse()

	reg := unit.NewRegistry()
	opts := []compute.Option{compute.WithUnitRegistry(reg)}
	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		opts = append(opts, compute.WithCache(cache.NewRedisLoader(client, reg, "")))
	}

	c := compute.NewComputer(opts...)
	srv := NewServer(c)
	log.Println("quantengine-server running on :8080")
	if err := srv.Routes().Run(":8080"); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
