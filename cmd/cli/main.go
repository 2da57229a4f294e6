// Command codeask is a small client for the codeask server.
//
//	codeask exec 'print(1/0)'
//	echo 'print(42)' | codeask exec
//	codeask exec-file script.py
//	codeask ask https://youtu.be/dQw4w9WgXcQ "the chorus"
//	codeask health
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/codeask/internal/model"
)

// errCodeFailed makes the process exit non-zero when submitted code raised.
var errCodeFailed = errors.New("code raised an error")

type options struct {
	serverURL string
	timeout   time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "codeask",
		Short:        "CLI client for the codeask server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("CODEASK_SERVER", "http://localhost:8080"), "Server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 6*time.Minute, "Request timeout")

	root.AddCommand(&cobra.Command{
		Use:   "exec [code]",
		Short: "Run Python code (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) > 0 {
				code = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				code = string(data)
			}
			return opts.runCode(cmd.OutOrStdout(), code)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "exec-file <file>",
		Short: "Run a Python file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			return opts.runCode(cmd.OutOrStdout(), string(data))
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "ask <video-url> <topic>",
		Short: "Find when a topic is first discussed in a video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res model.TimestampResult
			err := opts.do(http.MethodPost, "/ask", model.AskRequest{VideoURL: args[0], Topic: args[1]}, &res)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Failed() {
				return errors.New(res.Error)
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var res map[string]any
			if err := opts.do(http.MethodGet, "/healthz", nil, &res); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	})

	return root
}

func (o *options) runCode(out io.Writer, code string) error {
	var res model.CodeResponse
	if err := o.do(http.MethodPost, "/code-interpreter", model.CodeRequest{Code: code}, &res); err != nil {
		return err
	}
	if err := printJSON(out, res); err != nil {
		return err
	}
	if len(res.Error) > 0 {
		return errCodeFailed
	}
	return nil
}

// do sends payload (if any) as JSON and decodes a 200 response into dst.
// Any other status is returned as an error carrying the server's message.
func (o *options) do(method, path string, payload, dst any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimRight(o.serverURL, "/")+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("server returned %s", resp.Status)
		}
		return fmt.Errorf("server returned %s: %s", resp.Status, apiErr.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(formatted))
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
