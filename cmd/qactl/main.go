// Package main implements qactl, a CLI for the FAQ bot API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/engine/qa"
	"github.com/WessleyAI/faqbot/pkg/natsutil"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	server  string
	natsURL string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "qactl",
		Short:        "CLI for the FAQ bot API",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("QACTL_SERVER", "http://localhost:8000"), "API server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	tail := tailCmd(opts)
	tail.Flags().StringVar(&opts.natsURL, "nats", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")

	root.AddCommand(askCmd(opts), searchCmd(opts), healthCmd(opts), tail)
	return root
}

func askCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the bot a question",
		Long: `Ask the bot a question and print the matched answer.

Examples:
  qactl ask "Perso.ai는 어떤 서비스인가요?"
  qactl ask --server http://faq.internal:8000 "지원 언어는?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]string{"question": strings.Join(args, " ")})
			if err != nil {
				return err
			}
			var resp qa.Response
			if err := opts.call(cmd.Context(), http.MethodPost, "/query", bytes.NewReader(body), &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Found {
				fmt.Fprintf(out, "Q: %s\nA: %s\n(score %.3f)\n", resp.Question, resp.Answer, resp.Score)
			} else {
				fmt.Fprintf(out, "%s\n(no match, best score %.3f)\n", resp.Answer, resp.Score)
			}
			return nil
		},
	}
}

func searchCmd(opts *options) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the nearest stored questions without thresholding",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"q": {strings.Join(args, " ")}}
			if k > 0 {
				q.Set("k", strconv.Itoa(k))
			}
			var resp struct {
				Query   string       `json:"query"`
				Results []domain.Hit `json:"results"`
			}
			if err := opts.call(cmd.Context(), http.MethodGet, "/test-search?"+q.Encode(), nil, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for i, h := range resp.Results {
				fmt.Fprintf(out, "%d. [%.3f] %s\n", i+1, h.Score, h.Question)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of results (server default when 0)")
	return cmd
}

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check API server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			if err := opts.call(cmd.Context(), http.MethodGet, "/health", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s (%s)\n", resp.Status, resp.Message)
			return nil
		},
	}
}

func tailCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Stream answered queries from NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			nc, err := natsutil.Connect(opts.natsURL, "qactl", nil)
			if err != nil {
				return err
			}
			defer nc.Close()

			events := make(chan domain.AnswerEvent, 64)
			sub, err := natsutil.Subscribe(nc, domain.SubjectAnswered, func(_ context.Context, ev domain.AnswerEvent) {
				select {
				case events <- ev:
				default:
				}
			})
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", domain.SubjectAnswered, err)
			}
			defer sub.Unsubscribe()

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-events:
					fmt.Fprintln(out, formatEvent(ev))
				}
			}
		},
	}
}

func formatEvent(ev domain.AnswerEvent) string {
	mark := "miss"
	if ev.Found {
		mark = "hit "
	}
	line := fmt.Sprintf("%s %s %.3f %q", ev.At.Format(time.RFC3339), mark, ev.Score, ev.Query)
	if ev.Matched != "" {
		line += " -> " + strconv.Quote(ev.Matched)
	}
	return line
}

// call sends a request to the API and decodes a 200 response into out.
func (o *options) call(ctx context.Context, method, path string, body io.Reader, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := strings.TrimRight(o.server, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
