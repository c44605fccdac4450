// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"net"
	"strconv"
	"sync"

	"github.com/solostec/smf-gateway/internal/clusterbus"
	"github.com/solostec/smf-gateway/internal/ipt"
	"github.com/solostec/smf-gateway/internal/metrics"
	"github.com/solostec/smf-gateway/pkg/log"
)

var (
	listener   net.Listener
	listenerMu sync.Mutex
	connsWG    sync.WaitGroup
)

// serverStart opens the IP-T TCP listener and accepts connections
// until serverShutdown closes it. Each accepted connection gets its
// own ipt.Session and Framer, confined to the connection's own
// goroutine: no session crosses a strand boundary.
func serverStart(addr string, sessions *clusterbus.SessionRegistry, channels *ipt.Manager, checker ipt.CredentialChecker) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("[IPT] listen on %s failed: %s", addr, err.Error())
	}
	listenerMu.Lock()
	listener = l
	listenerMu.Unlock()
	log.Infof("[IPT] listening on %s", addr)

	for {
		conn, err := l.Accept()
		if err != nil {
			log.Infof("[IPT] accept loop stopped: %s", err.Error())
			return
		}
		connsWG.Add(1)
		go func() {
			defer connsWG.Done()
			handleConn(conn, sessions, channels, checker)
		}()
	}
}

// serverShutdown closes the listener, which unblocks Accept and ends
// serverStart; it does not forcibly close already-accepted
// connections, which tear down on their own read error or watchdog
// expiry.
func serverShutdown() {
	listenerMu.Lock()
	l := listener
	listenerMu.Unlock()
	if l != nil {
		_ = l.Close()
	}
	connsWG.Wait()
}

func handleConn(conn net.Conn, sessions *clusterbus.SessionRegistry, channels *ipt.Manager, checker ipt.CredentialChecker) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()

	metrics.SessionsOpen.Inc()
	var sess *ipt.Session
	sess = ipt.NewSession(peer, func(b []byte) error {
		_, err := conn.Write(b)
		return err
	}, func(reason error) {
		metrics.SessionsOpen.Dec()
		log.Infof("[IPT] %s disconnected: %v", peer, reason)
		sessions.RemovePeer(peer)
	})

	framer := ipt.NewFramer(
		func(f ipt.Frame) {
			metrics.FramesParsed.WithLabelValues(strconv.Itoa(int(f.Command))).Inc()
			dispatchFrame(sess, f, sessions, channels, checker)
		},
		func(err error) {
			metrics.FrameErrors.WithLabelValues("ipt").Inc()
			log.Warnf("[IPT] %s frame error: %v", peer, err)
			sess.Shutdown(err)
		},
	)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			sess.AddRx(n)
			framer.Feed(buf[:n])
		}
		if err != nil {
			sess.Shutdown(err)
			return
		}
		if sess.State() == ipt.StateShutdown {
			return
		}
	}
}

// dispatchFrame routes one decoded frame to the session state machine
// or the push-channel manager, mirroring cmd/cc-backend's HTTP handler
// dispatch but over IP-T command tags rather than URL routes.
func dispatchFrame(sess *ipt.Session, f ipt.Frame, sessions *clusterbus.SessionRegistry, channels *ipt.Manager, checker ipt.CredentialChecker) {
	switch f.Command {
	case ipt.CmdLoginReq:
		req, err := ipt.DecodeLoginRequest(f.Body)
		if err != nil {
			sess.Shutdown(err)
			return
		}
		result := sess.Login(req, checker)
		code := ipt.ResponseAuthFailed
		var watchdog uint16
		if result.Success {
			code = ipt.ResponseSuccess
			watchdog = uint16(result.Watchdog.Seconds())
			if err := sessions.Login(sess.PeerAddr, req.Account, sess.PeerAddr, ""); err != nil {
				log.Warnf("[IPT] recording session for %q failed: %v", req.Account, err)
			}
		}
		body := ipt.EncodeLoginResponse(ipt.LoginResponse{Code: code, Watchdog: watchdog})
		_ = sess.EmitFrame(ipt.CmdLoginRes, f.Sequence, body)

	case ipt.CmdWatchdogReq:
		sess.ResetWatchdog()
		_ = sess.EmitFrame(ipt.CmdWatchdogRes, f.Sequence, []byte{byte(ipt.ResponseSuccess)})

	case ipt.CmdCloseConnectionReq:
		sess.CloseConnection()
		_ = sess.EmitFrame(ipt.CmdCloseConnectionRes, f.Sequence, []byte{byte(ipt.ResponseSuccess)})

	case ipt.CmdOpenPushChannelReq:
		target := string(f.Body)
		ch, err := channels.OpenPushChannel(sess, target)
		code := ipt.ResponseSuccess
		var body []byte
		if err != nil {
			code = ipt.ResponseUnreachable
			body = []byte{byte(code)}
		} else {
			body = append([]byte{byte(code)}, byte(ch.ID>>24), byte(ch.ID>>16), byte(ch.ID>>8), byte(ch.ID))
		}
		_ = sess.EmitFrame(ipt.CmdOpenPushChannelRes, f.Sequence, body)

	case ipt.CmdClosePushChannelReq:
		if len(f.Body) >= 4 {
			id := uint32(f.Body[0])<<24 | uint32(f.Body[1])<<16 | uint32(f.Body[2])<<8 | uint32(f.Body[3])
			_ = channels.ClosePushChannel(id)
		}
		_ = sess.EmitFrame(ipt.CmdClosePushChannelRes, f.Sequence, []byte{byte(ipt.ResponseSuccess)})

	case ipt.CmdTransferPushDataReq:
		if len(f.Body) >= 4 {
			id := uint32(f.Body[0])<<24 | uint32(f.Body[1])<<16 | uint32(f.Body[2])<<8 | uint32(f.Body[3])
			if err := channels.TransferPushData(id, f.Body[4:]); err != nil {
				log.Warnf("[IPT] transfer on channel %d failed: %v", id, err)
			}
		}

	case ipt.CmdRegisterTargetReq:
		name := string(f.Body)
		code := ipt.ResponseSuccess
		if err := channels.RegisterTarget(sess, name, ipt.DefaultPacketSize, 0); err != nil {
			code = ipt.ResponseGeneralError
		}
		_ = sess.EmitFrame(ipt.CmdRegisterTargetRes, f.Sequence, []byte{byte(code)})

	case ipt.CmdDeregisterTargetReq:
		name := string(f.Body)
		code := ipt.ResponseSuccess
		if err := channels.DeregisterTarget(sess, name); err != nil {
			code = ipt.ResponseGeneralError
		}
		_ = sess.EmitFrame(ipt.CmdDeregisterTargetRes, f.Sequence, []byte{byte(code)})

	default:
		if ipt.IsRequest(f.Command) {
			log.Warnf("[IPT] %s: unhandled command %#x", sess.PeerAddr, f.Command)
		}
	}
}
