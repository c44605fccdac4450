// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/solostec/smf-gateway/internal/backup"
	"github.com/solostec/smf-gateway/internal/cachestore"
	"github.com/solostec/smf-gateway/internal/cfgschema"
	"github.com/solostec/smf-gateway/internal/clusterbus"
	"github.com/solostec/smf-gateway/internal/intake"
	"github.com/solostec/smf-gateway/internal/ipt"
	"github.com/solostec/smf-gateway/internal/lmn"
	"github.com/solostec/smf-gateway/internal/mbus"
	"github.com/solostec/smf-gateway/internal/obis"
	"github.com/solostec/smf-gateway/internal/report"
	"github.com/solostec/smf-gateway/internal/repository"
	"github.com/solostec/smf-gateway/internal/runtimeEnv"
	"github.com/solostec/smf-gateway/pkg/log"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// LMNPortConfig describes one serial meter-reading line this gateway
// opens on startup.
type LMNPortConfig struct {
	Name   string `json:"name"`
	Device string `json:"device"`
	Baud   int    `json:"baud"`
}

// S3Config is the optional backup target; a nil value in Config
// disables cfg.req.backup.
type S3Config struct {
	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	AccessKey    string `json:"access-key"`
	SecretKey    string `json:"secret-key"`
	Region       string `json:"region"`
	UsePathStyle bool   `json:"use-path-style"`
}

// GapReportConfig schedules the daily gap report job.
type GapReportConfig struct {
	Hour      int    `json:"hour"`
	Minute    int    `json:"minute"`
	Profile   string `json:"profile"` // OBIS code, e.g. "1-0:99.98.0*255"
	Register  string `json:"register"`
	Backtrack string `json:"backtrack"` // time.ParseDuration format
}

// FeedReportConfig schedules the daily LPEx feed report job.
type FeedReportConfig struct {
	Hour      int      `json:"hour"`
	Minute    int      `json:"minute"`
	Prefix    string   `json:"prefix"`
	Profile   string   `json:"profile"`   // OBIS code, e.g. "1-0:99.98.0*255"
	Registers []string `json:"registers"` // OBIS codes covered by the report
	Backtrack string   `json:"backtrack"` // time.ParseDuration format
}

// Config is this gateway's JSON configuration (grounded on
// cmd/cc-backend/main.go's ProgramConfig shape).
type Config struct {
	Addr       string `json:"addr"`
	StatusAddr string `json:"status-addr"`

	User  string `json:"user"`
	Group string `json:"group"`

	DBDriver string `json:"db-driver"`
	DB       string `json:"db"`

	ClusterBusAddr string `json:"cluster-bus-addr"`
	NodeName       string `json:"node-name"`

	Accounts map[string]string `json:"accounts"` // account -> bcrypt hash

	LMNPorts []LMNPortConfig `json:"lmn-ports"`

	ReportRoot string            `json:"report-root"`
	GapReport  *GapReportConfig  `json:"gap-report"`
	FeedReport *FeedReportConfig `json:"feed-report"`

	S3Backup *S3Config `json:"s3-backup"`

	Operators    map[string]OperatorConfig `json:"operators"` // human pty-operator logins
	LdapURL      string                    `json:"ldap-url"`
	LdapUserBind string                    `json:"ldap-user-bind"` // e.g. "uid=%s,ou=people,dc=example,dc=org"
	JWTSecret    string                    `json:"jwt-secret"`
}

// OperatorConfig is one local human operator account, distinct from
// Accounts (which authenticates IP-T devices, not cluster-bus
// operators).
type OperatorConfig struct {
	PasswordHash string   `json:"password-hash"`
	Roles        []string `json:"roles"`
}

// parseOBIS parses the canonical "A-B:C.D.E*F" register notation used
// throughout config files, the inverse of obis.Code.String.
func parseOBIS(s string) (obis.Code, error) {
	var a, b, c, d, e, f byte
	if _, err := fmt.Sscanf(s, "%d-%d:%d.%d.%d*%d", &a, &b, &c, &d, &e, &f); err != nil {
		return obis.Code{}, fmt.Errorf("parse OBIS code %q: %w", s, err)
	}
	return obis.New(a, b, c, d, e, f), nil
}

var config = Config{
	Addr:           ":6000",
	StatusAddr:     ":6001",
	DBDriver:       "sqlite3",
	DB:             "./var/gateway.db",
	ClusterBusAddr: "nats://127.0.0.1:4222",
	NodeName:       "gateway-1",
	ReportRoot:     "./var/reports",
}

func main() {
	var flagConfigFile string
	var flagInitDB, flagGops, flagNoIPT bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to `config.json`")
	flag.BoolVar(&flagInitDB, "init-db", false, "Run database migrations and exit")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagNoIPT, "no-ipt", false, "Do not start the IP-T TCP listener, only background services")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := runtimeEnv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		log.Fatalf("parsing './.env' file failed: %s", err.Error())
	}

	if raw, err := os.ReadFile(flagConfigFile); err == nil {
		if err := cfgschema.Validate(bytes.NewReader(raw)); err != nil {
			log.Fatalf("config %q failed schema validation: %s", flagConfigFile, err.Error())
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&config); err != nil {
			log.Fatal(err)
		}
	} else if !os.IsNotExist(err) || flagConfigFile != "./config.json" {
		log.Fatal(err)
	}

	if strings.HasPrefix(config.DB, "env:") {
		config.DB = os.Getenv(strings.TrimPrefix(config.DB, "env:"))
	}

	if err := repository.MigrateDB(config.DBDriver, config.DB); err != nil {
		log.Fatalf("database migration failed: %s", err.Error())
	}
	if flagInitDB {
		return
	}
	repository.Connect(config.DBDriver, config.DB)
	readoutRepo := repository.GetReadoutRepository()

	store := cachestore.NewStore()
	meters, err := store.CreateTable(cachestore.Meta{
		Name: "meter",
		Columns: []cachestore.Column{
			{Name: "id", Type: "string"}, {Name: "medium", Type: "string"}, {Name: "gateway", Type: "string"},
		},
		PKCount: 1,
	})
	if err != nil {
		log.Fatal(err)
	}
	gateways, err := store.CreateTable(cachestore.Meta{
		Name:    "gateway-IEC",
		Columns: []cachestore.Column{{Name: "id", Type: "string"}},
		PKCount: 1,
	})
	if err != nil {
		log.Fatal(err)
	}
	clusterbus.NewGatewayConsistency(meters, gateways)
	liveReadouts, err := store.CreateTable(intake.LiveReadoutTable)
	if err != nil {
		log.Fatal(err)
	}

	sessions, err := clusterbus.NewSessionRegistry(store)
	if err != nil {
		log.Fatal(err)
	}
	channels := ipt.NewManager()

	clusterbus.Connect(config.ClusterBusAddr)
	bus := clusterbus.Get()

	dispatcher := clusterbus.NewDispatcher(bus, store, sessions, channels, config.NodeName)
	if len(config.Operators) > 0 || config.LdapURL != "" {
		accounts := make(map[string]clusterbus.OperatorAccount, len(config.Operators))
		for name, oc := range config.Operators {
			accounts[name] = clusterbus.OperatorAccount{Username: name, Password: []byte(oc.PasswordHash), Roles: oc.Roles}
		}
		var ldapCfg *clusterbus.LdapConfig
		if config.LdapURL != "" {
			ldapCfg = &clusterbus.LdapConfig{URL: config.LdapURL, UserBind: config.LdapUserBind}
		}
		dispatcher.Operators = clusterbus.NewOperatorAuth(accounts, ldapCfg, []byte(config.JWTSecret), time.Hour)
	}
	if config.S3Backup != nil {
		target, err := backup.NewTarget(backup.Config{
			Endpoint: config.S3Backup.Endpoint, Bucket: config.S3Backup.Bucket,
			AccessKey: config.S3Backup.AccessKey, SecretKey: config.S3Backup.SecretKey,
			Region: config.S3Backup.Region, UsePathStyle: config.S3Backup.UsePathStyle,
		})
		if err != nil {
			log.Fatal(err)
		}
		dispatcher.Backup = func() error { return target.UploadFile(config.DB) }
	}

	if bus != nil {
		if err := bus.Subscribe("gateway.master", dispatcher.Handle); err != nil {
			log.Fatal(err)
		}
	}

	pipeline := intake.NewPipeline(readoutRepo, liveReadouts, mbus.NewKeyStore(), mbus.ModeNone, config.NodeName)
	var ports []*lmn.Port
	for _, pc := range config.LMNPorts {
		port, err := lmn.Init(pc.Name, pc.Device, pc.Baud)
		if err != nil {
			log.Errorf("opening LMN port %q failed: %s", pc.Name, err.Error())
			continue
		}
		ch := make(chan []byte, 16)
		port.Consume(ch)
		go func(p *lmn.Port, frames chan []byte) {
			for frame := range frames {
				pipeline.Feed(frame)
			}
		}(port, ch)
		ports = append(ports, port)
		log.Infof("listening on LMN port %s (%s)", pc.Name, pc.Device)
	}

	scheduler, err := report.NewScheduler()
	if err != nil {
		log.Fatal(err)
	}
	if config.GapReport != nil {
		profile, perr := parseOBIS(config.GapReport.Profile)
		code, cerr := parseOBIS(config.GapReport.Register)
		backtrack, derr := time.ParseDuration(config.GapReport.Backtrack)
		if perr != nil || cerr != nil || derr != nil {
			log.Fatalf("invalid gap-report configuration: profile=%v register=%v backtrack=%v", perr, cerr, derr)
		}
		if err := scheduler.RegisterDailyGapReport(readoutRepo, config.ReportRoot, profile, code,
			config.GapReport.Hour, config.GapReport.Minute, backtrack); err != nil {
			log.Fatal(err)
		}
	}
	if config.FeedReport != nil {
		profile, perr := parseOBIS(config.FeedReport.Profile)
		registers := make([]obis.Code, len(config.FeedReport.Registers))
		var rerr error
		for i, r := range config.FeedReport.Registers {
			registers[i], rerr = parseOBIS(r)
			if rerr != nil {
				break
			}
		}
		backtrack, derr := time.ParseDuration(config.FeedReport.Backtrack)
		if perr != nil || rerr != nil || derr != nil {
			log.Fatalf("invalid feed-report configuration: profile=%v registers=%v backtrack=%v", perr, rerr, derr)
		}
		if err := scheduler.RegisterDailyFeedReport(readoutRepo, config.ReportRoot, config.FeedReport.Prefix, profile, registers,
			config.FeedReport.Hour, config.FeedReport.Minute, backtrack); err != nil {
			log.Fatal(err)
		}
	}
	scheduler.Start()

	if err := runtimeEnv.DropPrivileges(config.User, config.Group); err != nil {
		log.Fatalf("dropping privileges failed: %s", err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		statusStart(config.StatusAddr)
	}()

	if !flagNoIPT {
		checker := ipt.BcryptChecker(func(account string) ([]byte, bool) {
			hash, ok := config.Accounts[account]
			return []byte(hash), ok
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			serverStart(config.Addr, sessions, channels, checker)
		}()
	}

	runtimeEnv.SystemdNotifiy(true, "running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	runtimeEnv.SystemdNotifiy(false, "shutting down")

	serverShutdown()
	statusShutdown()
	for _, p := range ports {
		_ = p.Shutdown()
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Warnf("scheduler shutdown: %s", err.Error())
	}
	if bus != nil {
		bus.Close()
	}
	wg.Wait()
	log.Print("graceful shutdown completed")
}
