package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battsense/pkg/events"
)

// Client is a struct for communicating with battsense daemon
type Client struct {
	socketPath string
	httpClient *http.Client
}

// NewClient is a constructor for creating a new Client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					conn, err := d.DialContext(ctx, "unix", socketPath)
					if err != nil {
						if errors.Is(err, fs.ErrNotExist) {
							return nil, ErrDaemonNotRunning
						}
						if errors.Is(err, fs.ErrPermission) {
							return nil, ErrPermissionDenied
						}
						logrus.Errorf("failed to connect to unix socket: %v", err)
						return nil, err
					}
					return conn, err
				},
			},
		},
	}
}

// Send is a method for sending a request to the battsense daemon
func (c *Client) Send(method string, path string, contentType string, body io.Reader) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"contentType": contentType,
		"unix":        c.socketPath,
	}).Debug("sending request")

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return "", fmt.Errorf("unknown method: %s", method)
	}

	req, err := http.NewRequest(method, "http://unix"+path, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	respBody := string(b)

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, errorMessage(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("got %d: %s", resp.StatusCode, errorMessage(respBody))
	}

	return respBody, nil
}

// Get is a method for sending a GET request to the battsense daemon
func (c *Client) Get(path string) (string, error) {
	return c.Send(http.MethodGet, path, "", nil)
}

// Put is a method for sending a PUT request with a JSON body to the battsense daemon
func (c *Client) Put(path string, data string) (string, error) {
	return c.Send(http.MethodPut, path, "application/json", strings.NewReader(data))
}

// Post is a method for sending a POST request to the battsense daemon
func (c *Client) Post(path string, contentType string, body io.Reader) (string, error) {
	return c.Send(http.MethodPost, path, contentType, body)
}

// Events subscribes to the daemon event stream. The returned channel is
// closed when ctx is done or the daemon closes the stream.
func (c *Client) Events(ctx context.Context) (<-chan events.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("got %d when subscribing to events", resp.StatusCode)
	}

	ch := make(chan events.Event)
	go func() {
		defer close(ch)
		defer resp.Body.Close() //nolint:errcheck

		readEvents(ctx, resp.Body, ch)
	}()
	return ch, nil
}

// readEvents parses a server-sent event stream. Only the event and data fields
// are used.
func readEvents(ctx context.Context, r io.Reader, ch chan<- events.Event) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ev events.Event
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if ev.Name == "" && len(data) == 0 {
				continue
			}
			ev.Data = json.RawMessage(strings.Join(data, "\n"))
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
			ev, data = events.Event{}, nil
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		}
	}
}

// errorMessage unwraps the JSON string the daemon sends with errors.
func errorMessage(body string) string {
	var msg string
	if err := json.Unmarshal([]byte(body), &msg); err == nil {
		return msg
	}
	return strings.TrimSpace(body)
}
