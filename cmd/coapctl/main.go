// Command coapctl is a command-line CoAP client for inspecting and
// controlling sensor nodes.
//
// Usage:
//
//	coapctl [flags] <command> [args]
//
// Flags:
//
//	-server string    Node address (host:port, default "localhost:5683")
//	-timeout duration Overall request timeout (default 10s)
//	-interactive      Enter the interactive shell
//
// Commands:
//
//	discover                  Fetch and print /.well-known/core
//	get <path>                GET a resource and print its payload
//	put <path> <key=value>... PUT a CBOR map built from key=value pairs
//	observe <path>            Stream notifications until interrupted
//	browse                    Browse for CoAP nodes via DNS-SD
//
// Examples:
//
//	coapctl -server 192.168.1.40:5683 get /sensors
//	coapctl put /leds redLed=true greenLed=false
//	coapctl put /config sampling_interval=30
//	coapctl observe /sensors
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/binsense/coapnode-go/pkg/client"
	"github.com/binsense/coapnode-go/pkg/discovery"
	"github.com/binsense/coapnode-go/pkg/payload"
	"github.com/binsense/coapnode-go/pkg/wire"
)

var (
	server      = flag.String("server", "localhost:5683", "Node address (host:port)")
	timeout     = flag.Duration("timeout", 10*time.Second, "Overall request timeout")
	interactive = flag.Bool("interactive", false, "Enter the interactive shell")
)

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *interactive {
		runShell(ctx)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := runCommand(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "coapctl: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "discover":
		return cmdDiscover(ctx)
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <path>")
		}
		return cmdGet(ctx, args[0])
	case "put":
		if len(args) < 2 {
			return fmt.Errorf("usage: put <path> <key=value>...")
		}
		return cmdPut(ctx, args[0], args[1:])
	case "observe":
		if len(args) != 1 {
			return fmt.Errorf("usage: observe <path>")
		}
		return cmdObserve(ctx, args[0])
	case "browse":
		return cmdBrowse(ctx)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func dial() (*client.Client, error) {
	return client.Dial(*server)
}

func cmdDiscover(ctx context.Context) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	links, err := c.Discover(ctx)
	if err != nil {
		return err
	}
	for _, link := range links {
		fmt.Printf("%-18s rt=%-22s if=%-16s ct=%d\n",
			link.Path, link.ResourceType, link.Interface, link.ContentFormat)
	}
	return nil
}

func cmdGet(ctx context.Context, path string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	resp, err := c.Get(ctx, path)
	if err != nil {
		return responseError(resp, err)
	}
	fmt.Printf("%s\n%s\n", resp.Code, formatPayload(resp))
	return nil
}

func cmdPut(ctx context.Context, path string, pairs []string) error {
	body, err := buildBody(pairs)
	if err != nil {
		return err
	}

	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	resp, err := c.Put(ctx, path, wire.ContentFormatCBOR, body)
	if err != nil {
		return responseError(resp, err)
	}
	fmt.Println(resp.Code)
	return nil
}

func cmdObserve(ctx context.Context, path string) error {
	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("Observing %s (Ctrl-C to stop)\n", path)
	return c.Observe(ctx, path, func(msg *wire.Message) {
		seq, _ := msg.Observe()
		fmt.Printf("[%s seq=%d] %s\n",
			time.Now().Format("15:04:05"), seq, formatPayload(msg))
	})
}

func cmdBrowse(ctx context.Context) error {
	browser := discovery.NewBrowser(discovery.BrowserConfig{})

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	services, err := browser.Browse(ctx)
	if err != nil {
		return err
	}

	found := 0
	for svc := range services {
		found++
		fmt.Printf("%s  host=%s port=%d addrs=%s\n",
			svc.InstanceName, svc.Host, svc.Port, strings.Join(svc.Addresses, ","))
		for _, txt := range svc.Text {
			fmt.Printf("    %s\n", txt)
		}
	}
	if found == 0 {
		fmt.Println("No CoAP nodes found")
	}
	return nil
}

// runShell runs the interactive command loop.
func runShell(ctx context.Context) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("Connected commands against %s. Type 'help' for a list.\n", *server)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("\ncoapctl> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			printShellHelp()

		case "server":
			if len(args) != 1 {
				fmt.Println("Usage: server <host:port>")
				continue
			}
			*server = args[0]
			fmt.Printf("Server set to %s\n", *server)

		case "quit", "exit", "q":
			return

		default:
			if err := runCommand(ctx, cmd, args); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

func printShellHelp() {
	fmt.Println(`
Commands:
  discover                  Fetch and print /.well-known/core
  get <path>                GET a resource
  put <path> <key=value>... PUT a CBOR map
  observe <path>            Stream notifications (Ctrl-C to stop)
  browse                    Browse for CoAP nodes via DNS-SD
  server <host:port>        Switch target node
  quit                      Exit`)
}

// buildBody assembles a CBOR map from key=value arguments. Values are
// typed by shape: true/false become booleans, digits become integers,
// everything else stays a string.
func buildBody(pairs []string) ([]byte, error) {
	body := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		switch {
		case value == "true":
			body[key] = true
		case value == "false":
			body[key] = false
		default:
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				body[key] = n
			} else if f, err := strconv.ParseFloat(value, 64); err == nil {
				body[key] = f
			} else {
				body[key] = value
			}
		}
	}
	return payload.Marshal(body)
}

// formatPayload renders a response payload: CBOR is decoded and printed
// as a Go value, anything else prints as text.
func formatPayload(msg *wire.Message) string {
	if len(msg.Payload) == 0 {
		return "(empty)"
	}
	if cf, ok := msg.ContentFormat(); ok && cf == wire.ContentFormatCBOR {
		var v any
		if err := payload.Unmarshal(msg.Payload, &v); err == nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return string(msg.Payload)
}

// responseError folds an error response's diagnostic payload into the
// error text.
func responseError(resp *wire.Message, err error) error {
	if resp != nil && len(resp.Payload) > 0 {
		return fmt.Errorf("%s: %s", resp.Code, resp.Payload)
	}
	return err
}
