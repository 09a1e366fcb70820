// Package util starts disposable infrastructure for integration tests.
// Every Start function returns a connection string and a cleanup func;
// callers skip the test when the container cannot be started.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// WaitForMetric polls metricsURL until substr shows up in the exposition
// or ctx is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		found, err := scrapeContains(ctx, metricsURL, substr)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func scrapeContains(ctx context.Context, url, substr string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		// not listening yet
		return false, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read metrics body: %w", err)
	}
	return strings.Contains(string(body), substr), nil
}

type endpoint struct {
	host string
	port string
}

// start runs req and resolves the host and mapped port of exposed.
func start(ctx context.Context, req tc.ContainerRequest, exposed string) (endpoint, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return endpoint{}, nil, err
	}
	cleanup := func() { _ = cont.Terminate(context.Background()) }
	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		return endpoint{}, nil, err
	}
	port, err := cont.MappedPort(ctx, nat.Port(exposed))
	if err != nil {
		cleanup()
		return endpoint{}, nil, err
	}
	return endpoint{host: host, port: port.Port()}, cleanup, nil
}

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
connection_messages true
`

// StartMosquitto launches an anonymous Mosquitto 2 broker and waits until
// it accepts MQTT connections. It returns the broker URL.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	dir, err := os.MkdirTemp("", "mosq")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	ep, stop, err := start(ctx, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}, "1883")
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	cleanup := func() {
		stop()
		_ = os.RemoveAll(dir)
	}

	broker := fmt.Sprintf("tcp://%s:%s", ep.host, ep.port)
	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// StartPostgres launches Postgres 16 with a "dispatch" database and
// returns its DSN.
func StartPostgres(ctx context.Context) (string, func(), error) {
	ep, cleanup, err := start(ctx, tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "dispatch",
			"POSTGRES_PASSWORD": "dispatch",
			"POSTGRES_DB":       "dispatch",
		},
		// The server restarts once after initdb.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}, "5432")
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("postgres://dispatch:dispatch@%s:%s/dispatch?sslmode=disable", ep.host, ep.port), cleanup, nil
}
