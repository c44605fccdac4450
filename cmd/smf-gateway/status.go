// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solostec/smf-gateway/pkg/log"
)

var (
	statusListener   net.Listener
	statusListenerMu sync.Mutex
	statusServer     http.Server
)

// statusStart opens the gateway's own HTTP status surface: "/healthz"
// for a liveness probe and "/metrics" for Prometheus scraping. This is
// not the admin UI; it carries no authentication and no routes beyond
// the two below.
func statusStart(addr string) {
	if addr == "" {
		return
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(rw http.ResponseWriter, req *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Use(handlers.CompressHandler)

	logged := handlers.CustomLoggingHandler(log.InfoWriter, r, func(w io.Writer, params handlers.LogFormatterParams) {
		log.Finfof(w, "[status] %s %s (%d, %dB)", params.Request.Method, params.URL.RequestURI(), params.StatusCode, params.Size)
	})

	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Errorf("[status] listen on %s failed: %s", addr, err.Error())
		return
	}
	statusListenerMu.Lock()
	statusListener = l
	statusServer = http.Server{Handler: logged}
	statusListenerMu.Unlock()

	log.Infof("[status] listening on %s", addr)
	if err := statusServer.Serve(l); err != nil && err != http.ErrServerClosed {
		log.Warnf("[status] serve stopped: %s", err.Error())
	}
}

func statusShutdown() {
	statusListenerMu.Lock()
	l := statusListener
	statusListenerMu.Unlock()
	if l != nil {
		_ = statusServer.Close()
	}
}
