package gateway

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Probe performs the CLI self-check: it connects to the loopback variant of
// the listen address, fetches the health endpoint and reports 0 when the
// body contains "running", 1 otherwise.
func Probe(listenAddr string) int {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return 1
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	response, err := client.Get(fmt.Sprintf("http://%s/_localstack/health", net.JoinHostPort(host, port)))
	if err != nil {
		return 1
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return 1
	}
	if response.StatusCode == http.StatusOK && strings.Contains(string(body), `"running"`) {
		return 0
	}
	return 1
}
