package audit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type EmbedConfig struct {
	Logger *slog.Logger
	Name   string
	// Port -1 picks a free port.
	Port       int
	StoreDir   string
	User       string
	Pass       string
	EnableLogs bool
}

// RunEmbeddedNATSServer starts an in-process JetStream server and returns a
// connection to it.
func RunEmbeddedNATSServer(cfg EmbedConfig) (*nats.Conn, *server.Server, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	opts := &server.Options{
		ServerName:             cfg.Name,
		Port:                   cfg.Port,
		StoreDir:               cfg.StoreDir,
		JetStream:              true,
		DisableJetStreamBanner: true,
	}
	if cfg.User != "" && cfg.Pass != "" {
		appAcct := server.NewAccount("app")
		appAcct.EnableJetStream(map[string]server.JetStreamAccountLimits{
			"": {
				MaxMemory:    -1,
				MaxStore:     -1,
				MaxStreams:   -1,
				MaxConsumers: -1,
			},
		}, nil)
		opts.Accounts = []*server.Account{appAcct}
		opts.Users = []*server.User{{
			Username: cfg.User,
			Password: cfg.Pass,
			Account:  appAcct,
		}}
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, nil, err
	}
	if cfg.EnableLogs {
		ns.ConfigureLogger()
	}
	log.Info("audit: starting NATS server", "port", opts.Port, "storeDir", opts.StoreDir)
	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, nil, fmt.Errorf("nats server not ready after 5s")
	}

	connOpts := []nats.Option{nats.InProcessServer(ns)}
	if cfg.User != "" && cfg.Pass != "" {
		connOpts = append(connOpts, nats.UserInfo(cfg.User, cfg.Pass))
	}
	nc, err := nats.Connect("", connOpts...)
	if err != nil {
		ns.Shutdown()
		return nil, nil, err
	}
	log.Info("audit: embedded NATS server is ready", "jetstream", ns.JetStreamEnabled())
	return nc, ns, nil
}
