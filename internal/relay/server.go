package relay

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"conclave/internal/domain"
)

// Server is an in-memory relay. All state is lost when the process exits.
type Server struct {
	log *zap.Logger

	mu     sync.Mutex
	queues map[domain.Address][]Envelope
}

// NewServer returns an empty relay.
func NewServer(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log.Named("relay"), queues: make(map[domain.Address][]Envelope)}
}

// Handler returns the relay's HTTP API wrapped in an access log.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /msg/{user}", s.enqueue)
	mux.HandleFunc("GET /msg/{user}", s.list)
	mux.HandleFunc("POST /msg/{user}/ack", s.ack)
	return s.accessLog(mux)
}

// Pending returns the number of envelopes queued for user.
func (s *Server) Pending(user domain.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[user])
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "bad envelope: "+err.Error(), http.StatusBadRequest)
		return
	}
	user := domain.Address(r.PathValue("user"))
	if env.To == "" {
		env.To = user
	}
	if env.To != user {
		http.Error(w, "recipient does not match path", http.StatusBadRequest)
		return
	}
	if env.ID == "" || env.From == "" {
		http.Error(w, "id and from are required", http.StatusBadRequest)
		return
	}
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().Unix()
	}

	s.mu.Lock()
	s.queues[user] = append(s.queues[user], env)
	s.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	user := domain.Address(r.PathValue("user"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	s.mu.Lock()
	q := s.queues[user]
	if limit > 0 && limit < len(q) {
		q = q[:limit]
	}
	out := append([]Envelope{}, q...)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) ack(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count < 0 {
		http.Error(w, "bad ack", http.StatusBadRequest)
		return
	}
	user := domain.Address(r.PathValue("user"))

	s.mu.Lock()
	q := s.queues[user]
	if body.Count >= len(q) {
		delete(s.queues, user)
	} else {
		s.queues[user] = q[body.Count:]
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)))
	})
}
