// Package statsrpc is a localhost-only JSON HTTP endpoint reporting a
// relay.Codec's cache occupancy and blocks-seen count, adapted from
// rpc/http.go and rpc/response.go's plain net/http plus
// {code,msg,data} envelope — the teacher's own idiom for ambient
// observability, not a gratuitous add-on.
package statsrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/blkrelay/relaynode/relay"
	"github.com/blkrelay/relaynode/utils"
)

var logger = utils.NewLogger("statsrpc")

const (
	// LocalHost is the only address this server binds to.
	LocalHost = "127.0.0.1"

	statsPath = "/v1/stats"
)

const (
	codeSuccess = 0
	codeFailed  = 1
)

// Config controls the Server's listen port and which Codec it reports
// on.
type Config struct {
	Port  int
	Codec *relay.Codec
}

// Server is the stats HTTP server. Like rpc.Server, it only listens on
// 127.0.0.1.
type Server struct {
	*http.Server
	codec *relay.Codec
}

// NewServer builds a Server from conf.
func NewServer(conf *Config) *Server {
	mux := http.NewServeMux()
	s := &Server{codec: conf.Codec}
	mux.HandleFunc(statsPath, s.handleStats)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	s.Server = &http.Server{
		Addr:    LocalHost + ":" + strconv.Itoa(conf.Port),
		Handler: mux,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("stats http server listen failed:%v\n", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	if err := s.Shutdown(context.Background()); err != nil {
		logger.Warn("stats http server shutdown err:%v\n", err)
	}
}

// statsResponse mirrors the teacher's {code,msg,data} HTTP envelope.
type statsResponse struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// Snapshot is the data payload of a /v1/stats response.
type Snapshot struct {
	SendCacheLen int `json:"send_cache_len"`
	RecvCacheLen int `json:"recv_cache_len"`
	BlocksSeen   int `json:"blocks_seen"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := Snapshot{
		SendCacheLen: s.codec.SendCacheLen(),
		RecvCacheLen: s.codec.RecvCacheLen(),
		BlocksSeen:   s.codec.BlocksSent(),
	}

	resp := statsResponse{Code: codeSuccess, Data: snap}
	respB, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("marshal stats response failed:%v\n", err)
		doFailed(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(respB)
}

func doFailed(w http.ResponseWriter) {
	respB, _ := json.Marshal(statsResponse{Code: codeFailed})
	w.WriteHeader(http.StatusOK)
	w.Write(respB)
}
