// Package web serves sensor readings, commands and metrics over HTTP.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.viam.com/utils"
	"goji.io"
	"goji.io/pat"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/edss/rocket-sensors/capture"
	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/config"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/robot"
	rutils "github.com/edss/rocket-sensors/utils"
)

const maxBodyBytes = 1 << 20

// Options configure the HTTP API.
type Options struct {
	// BindAddress is the host:port to listen on.
	BindAddress string
	// CORSOrigins are the allowed origins. Empty allows any origin.
	CORSOrigins []string
	// Poller, if set, serves the last polled reading of each sensor.
	Poller *capture.Poller
	// Gatherer is scraped by /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

type server struct {
	robot   robot.Robot
	options Options
	logger  logging.Logger
	// attributes updates read, modify and reapply the whole config
	attrMu sync.Mutex
}

// NewHandler returns the API handler for r.
func NewHandler(r robot.Robot, options Options, logger logging.Logger) http.Handler {
	svc := &server{robot: r, options: options, logger: logger}
	gatherer := options.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	api := goji.SubMux()
	api.HandleFunc(pat.Get("/sensors"), svc.listSensors)
	api.HandleFunc(pat.Get("/sensors/:name/readings"), svc.readings)
	api.HandleFunc(pat.Get("/sensors/:name/latest"), svc.latest)
	api.HandleFunc(pat.Post("/sensors/:name/command"), svc.command)
	api.HandleFunc(pat.Put("/sensors/:name/attributes"), svc.attributes)

	corsOptions := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	}
	if len(options.CORSOrigins) == 0 {
		corsOptions.AllowedOrigins = []string{"*"}
	} else {
		corsOptions.AllowedOrigins = options.CORSOrigins
	}

	mux := goji.NewMux()
	mux.Handle(pat.New("/api/v1/*"), cors.New(corsOptions).Handler(api))
	mux.Handle(pat.Get("/metrics"), promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// RunWeb serves the API on options.BindAddress until ctx is done.
func RunWeb(ctx context.Context, r robot.Robot, options Options, logger logging.Logger) error {
	listener, err := net.Listen("tcp", options.BindAddress)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", options.BindAddress)
	}
	httpServer := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           NewHandler(r, options, logger),
	}

	utils.PanicCapturingGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("error shutting down", "error", err)
		}
	})

	logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()))
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeJSON encodes v before writing the status, so a value JSON cannot represent (NaN, ±Inf) is
// answered with a 500 instead of an empty success.
func (svc *server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		svc.logger.Errorw("error encoding response", "error", err)
		buf.Reset()
		status = http.StatusInternalServerError
		utils.UncheckedError(json.NewEncoder(&buf).Encode(map[string]string{
			"error": "encoding response: " + err.Error(),
		}))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		svc.logger.Warnw("error writing response", "error", err)
	}
}

func statusFor(err error) int {
	var notFound *notFoundError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case resource.IsConfigValidationError(err):
		return http.StatusBadRequest
	case sensor.IsHardwareError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (svc *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		svc.logger.Warnw("request failed", "status", status, "error", err)
	}
	svc.writeJSON(w, status, map[string]string{"error": err.Error()})
}

type notFoundError struct {
	name string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("sensor %q not found", e.name)
}

func (svc *server) sensor(req *http.Request) (sensor.Sensor, string, error) {
	name := pat.Param(req, "name")
	s, err := robot.SensorByName(svc.robot, name)
	if err != nil {
		return nil, name, &notFoundError{name: name}
	}
	return s, name, nil
}

// requestContext enables debug logging for the request when it carries ?debug=true.
func requestContext(req *http.Request) context.Context {
	if req.URL.Query().Get("debug") == "true" {
		return logging.EnableDebugMode(req.Context(), "")
	}
	return req.Context()
}

func (svc *server) listSensors(w http.ResponseWriter, req *http.Request) {
	svc.writeJSON(w, http.StatusOK, map[string][]string{"sensors": robot.SensorNames(svc.robot)})
}

func (svc *server) readings(w http.ResponseWriter, req *http.Request) {
	s, _, err := svc.sensor(req)
	if err != nil {
		svc.writeError(w, err)
		return
	}
	readings, err := s.Readings(requestContext(req), nil)
	if err != nil {
		svc.writeError(w, err)
		return
	}
	svc.writeJSON(w, http.StatusOK, readings)
}

func (svc *server) latest(w http.ResponseWriter, req *http.Request) {
	name := pat.Param(req, "name")
	if svc.options.Poller == nil {
		svc.writeError(w, &notFoundError{name: name})
		return
	}
	r, ok := svc.options.Poller.Latest(name)
	if !ok {
		svc.writeError(w, &notFoundError{name: name})
		return
	}
	svc.writeJSON(w, http.StatusOK, r)
}

func (svc *server) command(w http.ResponseWriter, req *http.Request) {
	s, _, err := svc.sensor(req)
	if err != nil {
		svc.writeError(w, err)
		return
	}
	var cmd map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&cmd); err != nil {
		svc.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid command body: " + err.Error()})
		return
	}
	out, err := s.DoCommand(requestContext(req), cmd)
	if err != nil {
		svc.writeError(w, err)
		return
	}
	svc.writeJSON(w, http.StatusOK, out)
}

// attributes replaces the attributes of one sensor and reapplies the config.
func (svc *server) attributes(w http.ResponseWriter, req *http.Request) {
	_, name, err := svc.sensor(req)
	if err != nil {
		svc.writeError(w, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		svc.writeError(w, err)
		return
	}
	var attrs structpb.Struct
	if err := protojson.Unmarshal(body, &attrs); err != nil {
		svc.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid attributes body: " + err.Error()})
		return
	}

	svc.attrMu.Lock()
	defer svc.attrMu.Unlock()

	newCfg, err := withAttributes(svc.robot.Config(), name, rutils.AttributeMapFromStruct(&attrs))
	if err != nil {
		svc.writeError(w, err)
		return
	}
	if err := svc.robot.Reconfigure(req.Context(), newCfg); err != nil {
		svc.writeError(w, err)
		return
	}
	svc.logger.Infow("sensor attributes updated", "sensor", name)
	svc.writeJSON(w, http.StatusOK, newCfg.FindComponent(name).Attributes)
}

// withAttributes returns a validated copy of cfg in which the named sensor has attrs.
func withAttributes(cfg *config.Config, name string, attrs rutils.AttributeMap) (*config.Config, error) {
	newCfg := *cfg
	newCfg.Components = make([]resource.Config, 0, len(cfg.Components))
	found := false
	for _, c := range cfg.Components {
		if c.API == sensor.API && c.Name == name {
			c.Attributes = attrs
			c.ConvertedAttributes = nil
			c.ImplicitDependsOn = nil
			found = true
		}
		newCfg.Components = append(newCfg.Components, c)
	}
	if !found {
		return nil, &notFoundError{name: name}
	}
	if err := newCfg.Ensure(); err != nil {
		return nil, err
	}
	return &newCfg, nil
}
