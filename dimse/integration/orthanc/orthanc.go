// Package orthanc spins up an Orthanc PACS in a container for interop
// testing of the SCU stack against a real DICOM server.
package orthanc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container wraps a running Orthanc instance.
type Container struct {
	Container testcontainers.Container
	Host      string
	DICOMPort int
	HTTPPort  int
}

// Start launches an Orthanc container configured to accept any C-ECHO and
// C-STORE without authentication.
func Start(ctx context.Context) (*Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        "orthancteam/orthanc:latest",
		ExposedPorts: []string{"4242/tcp", "8042/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("8042/tcp"),
			wait.ForHTTP("/system").WithPort("8042/tcp").WithStartupTimeout(60*time.Second),
		),
		Env: map[string]string{
			"ORTHANC__DICOM_AET":                  "ORTHANC",
			"ORTHANC__DICOM_CHECK_CALLED_AET":     "false",
			"ORTHANC__AUTHENTICATION_ENABLED":     "false",
			"ORTHANC__DICOM_ALWAYS_ALLOW_ECHO":    "true",
			"ORTHANC__DICOM_ALWAYS_ALLOW_STORE":   "true",
			"ORTHANC__REMOTE_ACCESS_ALLOWED":      "true",
			"ORTHANC__UNKNOWN_SOP_CLASS_ACCEPTED": "true",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start Orthanc container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve container host: %w", err)
	}
	dicomPort, err := container.MappedPort(ctx, "4242")
	if err != nil {
		return nil, fmt.Errorf("resolve DICOM port: %w", err)
	}
	httpPort, err := container.MappedPort(ctx, "8042")
	if err != nil {
		return nil, fmt.Errorf("resolve HTTP port: %w", err)
	}

	dicom, _ := strconv.Atoi(dicomPort.Port())
	web, _ := strconv.Atoi(httpPort.Port())
	return &Container{
		Container: container,
		Host:      host,
		DICOMPort: dicom,
		HTTPPort:  web,
	}, nil
}

// Stop terminates the container.
func (c *Container) Stop(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}

// InstanceCount queries the Orthanc REST API for the number of stored
// instances, to verify C-STORE deliveries landed.
func (c *Container) InstanceCount(ctx context.Context) (int, error) {
	url := fmt.Sprintf("http://%s:%d/instances", c.Host, c.HTTPPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	rsp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("query instances: %w", err)
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return 0, err
	}
	var instances []string
	if err := json.Unmarshal(body, &instances); err != nil {
		return 0, fmt.Errorf("decode instance list: %w", err)
	}
	return len(instances), nil
}
