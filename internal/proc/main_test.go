package proc

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"testing"
	"testing/fstest"
	"time"

	"hivekeeper/internal/config"
	"hivekeeper/internal/decoy"
	"hivekeeper/internal/env"
	"hivekeeper/internal/events"
	"hivekeeper/internal/logger"
	"hivekeeper/internal/manifest"
	"hivekeeper/internal/models"
	"hivekeeper/internal/store"

	"github.com/stretchr/testify/require"
)

// The test binary doubles as decoy child and as daemon host.
const (
	decoyEnv = "HIVEKEEPER_TEST_DECOY"
	hostEnv  = "HIVEKEEPER_TEST_HOST"
)

var testTimings = config.SupervisorConfig{
	ReadyTimeout:       10 * time.Second,
	StopTimeout:        3 * time.Second,
	KillTimeout:        3 * time.Second,
	PortReleaseTimeout: 5 * time.Second,
}

func TestMain(m *testing.M) {
	// 子进程会继承 hostEnv，先判断 decoyEnv
	if behaviour := os.Getenv(decoyEnv); behaviour != "" {
		os.Exit(runDecoy(behaviour))
	}
	if name := os.Getenv(hostEnv); name != "" {
		os.Exit(runHost(name))
	}
	logger.InitNop()
	os.Exit(m.Run())
}

func runDecoy(behaviour string) int {
	opts, err := decoy.FromEnv("simple_http")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	switch behaviour {
	case "crash":
		fmt.Println("boom")
		return 3
	case "silent":
		time.Sleep(time.Hour)
		return 0
	}
	d, err := decoy.New("simple_http", opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	ctx := context.Background()
	if behaviour == "stubborn" {
		signal.Ignore(syscall.SIGTERM)
	} else {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer stop()
	}
	if err := d.Run(ctx); err != nil {
		return 1
	}
	return 0
}

func runHost(name string) int {
	home := os.Getenv(env.HomeEnv)
	sink, err := events.NewDebugFileSink(env.DebugLogPath(home))
	if err != nil {
		return 1
	}
	out := events.NewDispatcher(sink)
	defer out.Close()

	inst, err := store.New(home).Get(name)
	if err != nil {
		return 1
	}
	params, err := manifest.Validate(inst.Manifest.Parameters, nil)
	if err != nil {
		return 1
	}
	sup := New(Options{Home: home, Config: testTimings, Events: out})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	err = sup.Run(ctx, StartRequest{
		Installation: inst,
		Params:       params,
		Mode:         models.ModeDaemon,
		RunID:        os.Getenv(env.RunIDEnv),
	})
	if err != nil {
		return 1
	}
	return 0
}

const fixtureManifest = `name: %s
port: %d
protocol: TCP
alerts: [%s]
parameters:
  - name: port
    type: int
    default: %d
entrypoint:
  command: "{{.Self}}"
  args: [decoy, simple_http]
  env:
    HIVEKEEPER_TEST_DECOY: %s
`

// installFixture installs a service whose decoy is this test binary.
func installFixture(t *testing.T, home, name string, port int, behaviour string) *store.Installation {
	t.Helper()
	data := fmt.Sprintf(fixtureManifest, name, port, name, port, behaviour)
	m, err := manifest.Parse([]byte(data), "service.yaml")
	require.NoError(t, err)
	inst, err := store.New(home).Install(m, fstest.MapFS{
		"service.yaml": &fstest.MapFile{Data: []byte(data), Mode: 0644},
	})
	require.NoError(t, err)
	return inst
}

func defaults(t *testing.T, inst *store.Installation) manifest.ParameterSet {
	t.Helper()
	params, err := manifest.Validate(inst.Manifest.Parameters, nil)
	require.NoError(t, err)
	return params
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) find(kind events.Kind, state string) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Kind == kind && (state == "" || e.State() == state) {
			return e, true
		}
	}
	return events.Event{}, false
}
