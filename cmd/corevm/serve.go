package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/urfave/cli/v3"

	"corevm/internal/bytecode"
	"corevm/internal/debugevent"
	"corevm/internal/vm"
)

var serveCommand = &cli.Command{
	Name:      "serve",
	Usage:     "run a .casm program while fanning its debug event stream out over HTTP/websocket",
	ArgsUsage: "FILE.casm",
	Flags: append(append([]cli.Flag{}, commonFlags...),
		&cli.StringFlag{Name: "addr", Value: ":8089", Usage: "listen address"},
	),
	Action: runServe,
}

// session is one served run's state: a google/uuid session id and every
// websocket client subscribed to its debug stream, keyed by a
// per-connection id (spec §6's "fans the same
// event stream out over a websocket connection" plus a tiny HTTP
// hot-path/usage snapshot endpoint). Transport concerns live entirely in
// this file; internal/vm never imports net/http or gorilla/websocket.
type session struct {
	id    string
	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func newSession() *session {
	return &session{id: uuid.NewString(), conns: map[string]*websocket.Conn{}}
}

func (s *session) Emit(e debugevent.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.Close()
			delete(s.conns, id)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: corevm serve FILE.casm")
	}

	img, err := loadImage(path)
	if err != nil {
		return err
	}

	opts, err := vmOptions(ctx, cmd)
	if err != nil {
		return err
	}

	sess := newSession()
	// serve's whole point is the debug stream, so force it on regardless
	// of what --config set.
	opts = append(opts, vm.WithDebugSink(sess), func(v *vm.VM) { v.Cfg.DebugEnabled = true })
	machine := vm.New(img, opts...)

	router := httprouter.New()
	router.GET("/events", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connID := uuid.NewString()
		sess.mu.Lock()
		sess.conns[connID] = conn
		sess.mu.Unlock()

		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					sess.mu.Lock()
					delete(sess.conns, connID)
					sess.mu.Unlock()
					conn.Close()
					return
				}
			}
		}()
	})
	router.GET("/usage", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(usageSnapshot(machine, img))
	})
	router.GET("/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		fmt.Fprintf(w, `{"session":"%s"}`, sess.id)
	})

	addr := cmd.String("addr")
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		result, runErr := machine.Run()
		if runErr != nil {
			fmt.Println("runtime error:", runErr)
			return
		}
		fmt.Println("=>", result.String())
	}()

	fmt.Printf("corevm serve: session %s listening on %s (ws /events, json /usage)\n", sess.id, addr)
	return srv.ListenAndServe()
}

type usageEntry struct {
	Chunk     string `json:"chunk"`
	ExecCount int64  `json:"exec_count"`
	ErrCount  int64  `json:"error_count"`
	AvgNanos  int64  `json:"avg_nanos"`
	Hot       bool   `json:"hot"`
}

func usageSnapshot(machine *vm.VM, img *bytecode.BytecodeImage) []usageEntry {
	out := make([]usageEntry, 0, len(img.Chunks))
	for id, chunk := range img.Chunks {
		stats := machine.Usage.Stats(id)
		exec, errs, avg, hot := stats.Snapshot()
		out = append(out, usageEntry{Chunk: chunk.Name, ExecCount: exec, ErrCount: errs, AvgNanos: avg, Hot: hot})
	}
	return out
}
