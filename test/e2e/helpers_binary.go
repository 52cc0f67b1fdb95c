//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// rigbuildServer manages a running rigbuild server process.
type rigbuildServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	logFile string
}

// startRigbuild launches the binary on a data directory and waits for it to
// become healthy. The server is configured entirely via environment variables.
func startRigbuild(t *testing.T, dataDir string) *rigbuildServer {
	t.Helper()

	if rigbuildBin == "" {
		t.Skip("rigbuild binary not available")
	}
	if dataDir == "" {
		dataDir = t.TempDir()
	}

	port := freePort(t)
	address := fmt.Sprintf("127.0.0.1:%d", port)
	logFile := filepath.Join(dataDir, fmt.Sprintf("rigbuild-%d.log", port))

	cmd := exec.Command(rigbuildBin)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("RIGBUILD_PORT=%d", port),
		"RIGBUILD_DB_PATH="+filepath.Join(dataDir, "rigbuild.db"),
		"RIGBUILD_API_KEY="+testAPIKey,
		"RIGBUILD_CONFIG_PATH="+filepath.Join(dataDir, "nonexistent.yaml"),
		"RIGBUILD_DELETES_PER_SECOND=0.01",
		"RIGBUILD_DELETE_BURST=2",
		"RIGBUILD_LOG_FORMAT=text",
	)

	lf, err := os.Create(logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start rigbuild: %v", err)
	}

	s := &rigbuildServer{
		cmd:     cmd,
		dataDir: dataDir,
		address: address,
		logFile: logFile,
	}

	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		logs, _ := os.ReadFile(logFile)
		t.Fatalf("rigbuild not healthy: %v\n%s", err, logs)
	}

	return s
}

func (s *rigbuildServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
		s.cmd = nil
	}
}

// restartOnSameData stops the server and starts a new one over the same
// data directory.
func (s *rigbuildServer) restartOnSameData(t *testing.T) *rigbuildServer {
	t.Helper()
	s.stop()
	return startRigbuild(t, s.dataDir)
}

func (s *rigbuildServer) baseURL() string {
	return fmt.Sprintf("http://%s", s.address)
}

func (s *rigbuildServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := s.baseURL() + "/api/v1/health"

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("rigbuild not healthy after %s", timeout)
}

// do sends body as JSON and returns the status and raw response body.
func (s *rigbuildServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, _ := http.NewRequest(method, s.baseURL()+path, r)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

// mustDo is do with a status check and JSON decode into out.
func (s *rigbuildServer) mustDo(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()
	status, data := s.do(t, method, path, body)
	if status != wantStatus {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, status, wantStatus, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
