package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linkgrab/linkgrab/internal/app"
	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/linkgrab/linkgrab/pkg/logger"
)

var (
	configPath  string
	serverURL   string
	noAutoStart bool
	logLevel    string
	rootCmd     = &cobra.Command{
		Use:   "linkgrab",
		Short: "linkgrab - discover and download the files a web page links to",
		Long: `A command-line interface for discovering the files referenced by a web page,
filtering them by category, and downloading them locally or through a linkgrab server.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8088", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for local commands (debug, info, warn, error)")

	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(downloadCmd)

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadServices builds the local discovery and download stack
func loadServices() (*domain.Config, *app.Services, *zap.Logger, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      logLevel,
		Format:     "console",
		OutputPath: "stderr",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	services, err := app.NewServices(config, nil, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return config, services, log, nil
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var apiClient = &http.Client{Timeout: 30 * time.Second}

// apiRequest calls the server and decodes a JSON response into out (which may be nil).
// Non-2xx responses are returned as errors carrying the server's error message.
func apiRequest(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// splitExtensions parses a comma separated extension list
func splitExtensions(raw string) []string {
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		if ext := domain.NormalizeExtension(part); ext != "" {
			exts = append(exts, ext)
		}
	}
	return exts
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
