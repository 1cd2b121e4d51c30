package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sessionCookie must match the server's session.cookie_name
const sessionCookie = "mediagrab_session"

// apiClient talks to the server on behalf of one persisted browser-style session
type apiClient struct {
	baseURL     string
	http        *http.Client
	sessionFile string
}

func newAPIClient(baseURL, sessionFile string) *apiClient {
	return &apiClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 5 * time.Minute},
		sessionFile: sessionFile,
	}
}

// defaultSessionFile is where the CLI keeps its session id between invocations
func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mediagrab_session"
	}
	return filepath.Join(home, ".mediagrab", "cli_session")
}

func (c *apiClient) sessionID() string {
	data, err := os.ReadFile(c.sessionFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (c *apiClient) saveSessionID(id string) error {
	if err := os.MkdirAll(filepath.Dir(c.sessionFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(c.sessionFile, []byte(id+"\n"), 0600)
}

// cookieHeader returns the request headers carrying the session cookie
func (c *apiClient) cookieHeader() http.Header {
	header := http.Header{}
	if id := c.sessionID(); id != "" {
		header.Set("Cookie", (&http.Cookie{Name: sessionCookie, Value: id}).String())
	}
	return header
}

// do sends a request and decodes a JSON response into out. Non-2xx responses
// become errors carrying the server's message.
func (c *apiClient) do(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header = c.cookieHeader()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie {
			if err := c.saveSessionID(cookie.Value); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// websocketURL converts the base URL to the ws scheme
func (c *apiClient) websocketURL(path string) string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + path
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + path
	default:
		return c.baseURL + path
	}
}
