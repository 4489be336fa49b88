// tradeflow-cli is a thin command-line client for the tradeflow server API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tradeflow/pkg/tradeflow"
)

const version = "0.1.0"

func main() {
	server := flag.String("server", envOr("TRADEFLOW_SERVER", "http://localhost:8080"), "server base URL")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tradeflow-cli [-server URL] <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                    Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  health                     Check server health\n")
		fmt.Fprintf(os.Stderr, "  account create             Provision a trading account\n")
		fmt.Fprintf(os.Stderr, "  strategy list              List strategy toggles\n")
		fmt.Fprintf(os.Stderr, "  strategy enable <name>     Enable a strategy\n")
		fmt.Fprintf(os.Stderr, "  strategy disable <name>    Disable a strategy\n")
		fmt.Fprintf(os.Stderr, "  orders [status]            List orders, optionally by status\n")
		fmt.Fprintf(os.Stderr, "\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	client := tradeflow.NewClient(*server)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "version":
		fmt.Printf("tradeflow-cli %s\n", version)

	case "health":
		h, err := client.Health(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("status: %s (broker: %s)\n", h.Status, h.Broker)

	case "account":
		if len(args) < 2 || args[1] != "create" {
			flag.Usage()
			os.Exit(1)
		}
		acct, err := client.CreateAccount(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("account_id:   %s\naccess_token: %s\n", acct.AccountID, acct.AccessToken)

	case "strategy":
		if len(args) < 2 {
			flag.Usage()
			os.Exit(1)
		}
		switch args[1] {
		case "list":
			toggles, err := client.ListStrategies(ctx)
			if err != nil {
				fatal(err)
			}
			for _, t := range toggles {
				state := "disabled"
				if t.Enabled {
					state = "enabled"
				}
				fmt.Printf("%-20s %s\n", t.Name, state)
			}
		case "enable", "disable":
			if len(args) < 3 {
				flag.Usage()
				os.Exit(1)
			}
			if err := client.SetStrategy(ctx, args[2], args[1] == "enable"); err != nil {
				fatal(err)
			}
			fmt.Printf("%s %sd\n", args[2], args[1])
		default:
			flag.Usage()
			os.Exit(1)
		}

	case "orders":
		status := ""
		if len(args) > 1 {
			status = args[1]
		}
		orders, err := client.ListOrders(ctx, status)
		if err != nil {
			fatal(err)
		}
		for _, o := range orders {
			fmt.Printf("%s  %-6s %-4s %5d @ %.4f  %-9s %s\n",
				o.ID, o.Symbol, o.Side, o.Size, o.Price, o.Status,
				o.CreatedAt.Format(time.RFC3339))
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
