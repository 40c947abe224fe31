// Package decoy holds the built-in decoy responders. A decoy runs as the
// child of a supervisor and reports on stdout, one JSON object per line.
package decoy

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/env"
	"hivekeeper/internal/manifest"

	"github.com/rs/zerolog"
)

/**
 * Decoy runtime options
 * @property {string} Service - Service name, used as event_type
 * @property {int} Port - Port to bind
 * @property {[]string} Alerts - Alert tags, the first one is reported as act
 * @property {manifest.ParameterSet} Params - Validated parameters
 * @property {io.Writer} Out - Event stream, stdout in production
 */
type Options struct {
	Service string
	Port    int
	Alerts  []string
	Params  manifest.ParameterSet
	Out     io.Writer
}

// Decoy serves until its context is cancelled.
type Decoy interface {
	Run(ctx context.Context) error
}

type factory func(Options) (Decoy, error)

var registry = map[string]factory{
	"simple_http": NewSimpleHTTP,
}

// Kinds lists the built-in decoys.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func New(kind string, opts Options) (Decoy, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, apperr.NewNotFound("decoy", kind)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return f(opts)
}

/**
 * Build options from the environment set by the supervisor
 * @param {string} kind - Decoy kind, used when HIVEKEEPER_SERVICE is unset
 * @returns {(Options, error)} Options
 * @description
 * - The port parameter wins over HIVEKEEPER_PORT
 * - Alerts come from the manifest in the working directory when there is one
 */
func FromEnv(kind string) (Options, error) {
	opts := Options{Service: os.Getenv(env.ServiceEnv), Out: os.Stdout}
	if opts.Service == "" {
		opts.Service = kind
	}
	params, err := manifest.DecodeParams(os.Getenv(env.ParamsEnv))
	if err != nil {
		return opts, err
	}
	opts.Params = params
	if p, ok := params.Int("port"); ok {
		opts.Port = p
	} else if v := os.Getenv(env.PortEnv); v != "" {
		if opts.Port, err = strconv.Atoi(v); err != nil {
			return opts, apperr.NewValidation("port", "Bad value for port=%s (must be integer)", v)
		}
	}
	if opts.Port <= 0 {
		return opts, apperr.NewValidation("port", "'port' is missing")
	}
	if m, _, err := manifest.Load(os.DirFS(".")); err == nil {
		opts.Alerts = m.Alerts
	}
	return opts, nil
}

// reporter writes the event lines a supervisor relays.
type reporter struct {
	log     zerolog.Logger
	service string
	act     string
}

func newReporter(opts Options) *reporter {
	act := opts.Service
	if len(opts.Alerts) > 0 {
		act = opts.Alerts[0]
	}
	return &reporter{
		log:     zerolog.New(zerolog.SyncWriter(opts.Out)).With().Timestamp().Str("event_type", opts.Service).Logger(),
		service: opts.Service,
		act:     act,
	}
}

func (r *reporter) ready(port int) {
	r.log.Info().
		Str("kind", "ready").
		Int("port", port).
		Msg(fmt.Sprintf("Starting %s service on port: %d", r.service, port))
}

// Attacker controlled text is cut to this many bytes before it is reported.
const maxFieldLen = 4096

func truncate(s string) string {
	if len(s) <= maxFieldLen {
		return s
	}
	return strings.ToValidUTF8(s[:maxFieldLen], "") + "...(truncated)"
}

// interaction reports one request. The relay uses request as the message.
func (r *reporter) interaction(src, request string, fields map[string]interface{}) {
	ev := r.log.Info().
		Str("kind", "interaction").
		Str("act", r.act).
		Str("src", src).
		Str("request", truncate(request))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = truncate(s)
		}
		ev = ev.Interface(k, v)
	}
	ev.Send()
}

func (r *reporter) errorf(format string, v ...interface{}) {
	r.log.Error().Str("kind", "output").Msgf(format, v...)
}
