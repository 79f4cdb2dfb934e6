package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"dealscout/services"
)

const (
	bannerWidth = 50
	farewell    = "👋 Thanks for using AI Shopping Assistant!"
)

// QueryProcessor turns one query into a printable report
type QueryProcessor func(ctx context.Context, query string) string

func printBanner(out io.Writer) {
	fmt.Fprintln(out, "🤖 AI Shopping Assistant")
	fmt.Fprintln(out, services.Divider("=", bannerWidth))
	fmt.Fprintln(out, "Enter your product query (e.g., 'I want to buy a smartphone under 30k with good camera')")
	fmt.Fprintln(out, "Type 'quit' to exit")
	fmt.Fprintln(out, services.Divider("=", bannerWidth))
}

func isExitToken(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// runInteractive reads one query per line until an exit token, EOF or ctx
// cancellation. Each query is answered before the next prompt.
func runInteractive(ctx context.Context, in io.Reader, out io.Writer, process QueryProcessor) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, "\n💬 Your query: ")

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\n"+farewell)
			return
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out, "\n"+farewell)
			return
		}

		query := strings.TrimSpace(line)
		if isExitToken(query) {
			fmt.Fprintln(out, farewell)
			return
		}
		if query == "" {
			continue
		}

		fmt.Fprintln(out, "\n"+services.Divider("=", bannerWidth))
		fmt.Fprintln(out, process(ctx, query))
	}
}
