// Copyright 2025 The amqpd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package controller wires configuration, logging, the broker core, the
// AMQP listener, and the admin HTTP server into one process lifecycle.
package controller

import (
	"net/http"
	"sort"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amqpd/amqpd/auth"
	"github.com/amqpd/amqpd/broker"
	"github.com/amqpd/amqpd/common"
	"github.com/amqpd/amqpd/confengine"
	"github.com/amqpd/amqpd/internal/fasttime"
	"github.com/amqpd/amqpd/internal/sigs"
	"github.com/amqpd/amqpd/logger"
	"github.com/amqpd/amqpd/metrics"
	"github.com/amqpd/amqpd/persistence"
	"github.com/amqpd/amqpd/server"
	"github.com/amqpd/amqpd/transport"
)

type Controller struct {
	buildInfo common.BuildInfo

	broker   *broker.Broker
	listener *transport.Listener
	users    *auth.StaticUsers
	svr      *server.Server
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if conf.Has("logger") {
		if err := conf.UnpackChild("logger", &opts); err != nil {
			return err
		}
	} else {
		opts.Stdout = true
	}

	if opts.Filename == "" {
		opts.Filename = "amqpd.log"
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}

	logger.SetOptions(opts)
	return nil
}

type authConfig struct {
	Users map[string]string `config:"users"`
}

func loadUsers(conf *confengine.Config) (map[string]string, error) {
	var cfg authConfig
	if err := conf.UnpackChild("auth", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Users) == 0 {
		return nil, errors.New("auth.users must list at least one account")
	}
	return cfg.Users, nil
}

func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if err := setupLogger(conf); err != nil {
		return nil, err
	}

	users, err := loadUsers(conf)
	if err != nil {
		return nil, err
	}
	authPort := auth.NewStaticUsers(users)

	br := broker.New(persistence.Noop{})

	var lcfg transport.Config
	if conf.Has("listener") {
		if err := conf.UnpackChild("listener", &lcfg); err != nil {
			return nil, err
		}
	}
	if lcfg.Address == "" {
		lcfg.Address = ":5672"
	}
	listener, err := transport.NewListener(lcfg, br, authPort)
	if err != nil {
		return nil, err
	}

	svr, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	return &Controller{
		buildInfo: buildInfo,
		broker:    br,
		listener:  listener,
		users:     authPort,
		svr:       svr,
	}, nil
}

func (c *Controller) Start() error {
	c.setupServer()

	go func() {
		if err := c.listener.Serve(); err != nil {
			logger.Infof("amqp listener stopped: %v", err)
		}
	}()
	logger.Infof("amqp listening on %s", c.listener.Addr())

	if c.svr != nil {
		go func() {
			if err := c.svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("failed to start admin server: %v", err)
			}
		}()
	}
	return nil
}

func (c *Controller) recordMetrics() {
	metrics.Uptime.Set(float64(fasttime.UnixTimestamp() - common.Started()))
	metrics.BuildInfo.WithLabelValues(c.buildInfo.Version, c.buildInfo.GitHash, c.buildInfo.Time).Inc()

	var consumers uint32
	queues := c.broker.Snapshot()
	for _, q := range queues {
		_, cons := q.Counts()
		consumers += cons
	}
	metrics.QueuesTotal.Set(float64(len(queues)))
	metrics.ConsumersTotal.Set(float64(consumers))
}

// queueInfo is the admin server's JSON projection of one queue.
type queueInfo struct {
	Name          string `json:"name"`
	Durable       bool   `json:"durable"`
	Exclusive     bool   `json:"exclusive"`
	AutoDelete    bool   `json:"autoDelete"`
	MessageCount  uint32 `json:"messageCount"`
	ConsumerCount uint32 `json:"consumerCount"`
}

func (c *Controller) setupServer() {
	if c.svr == nil {
		return
	}

	c.svr.RegisterGetRoute("/metrics", func(w http.ResponseWriter, r *http.Request) {
		c.recordMetrics()
		promhttp.Handler().ServeHTTP(w, r)
	})
	c.svr.RegisterGetRoute("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok"}`))
	})
	c.svr.RegisterGetRoute("/-/queues", c.listQueues)

	// Admin Routes
	c.svr.RegisterPostRoute("/-/logger", func(w http.ResponseWriter, r *http.Request) {
		level := r.FormValue("level")
		logger.SetLoggerLevel(level)
		w.Write([]byte(`{"status": "success"}`))
	})
	c.svr.RegisterPostRoute("/-/reload", func(w http.ResponseWriter, r *http.Request) {
		if err := sigs.SelfReload(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
	})
}

func (c *Controller) listQueues(w http.ResponseWriter, r *http.Request) {
	opts := common.NewOptions()
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			opts.Merge(k, v[0])
		}
	}

	queues := c.broker.Snapshot()
	sort.Slice(queues, func(i, j int) bool { return queues[i].Name < queues[j].Name })
	if limit, err := opts.GetInt("limit"); err == nil && limit >= 0 && limit < len(queues) {
		queues = queues[:limit]
	}

	infos := make([]queueInfo, 0, len(queues))
	for _, q := range queues {
		msgs, cons := q.Counts()
		infos = append(infos, queueInfo{
			Name:          q.Name,
			Durable:       q.Durable,
			Exclusive:     q.Exclusive,
			AutoDelete:    q.AutoDelete,
			MessageCount:  msgs,
			ConsumerCount: cons,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		logger.Errorf("failed to encode queue list: %v", err)
	}
}

// Reload re-reads the reloadable configuration sections: logger options
// and the SASL credential table. Listener tuning parameters are fixed for
// the process lifetime since already-negotiated connections hold them.
func (c *Controller) Reload(conf *confengine.Config) error {
	if err := setupLogger(conf); err != nil {
		return err
	}
	users, err := loadUsers(conf)
	if err != nil {
		return err
	}
	c.users.SetUsers(users)
	return nil
}

// Stop closes the AMQP listener (sending connection.close to every open
// peer) and the admin server, aggregating whatever fails on the way down.
func (c *Controller) Stop() error {
	var errs *multierror.Error
	if err := c.listener.Close(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "close amqp listener"))
	}
	if c.svr != nil {
		if err := c.svr.Close(); err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, "close admin server"))
		}
	}
	return errs.ErrorOrNil()
}
