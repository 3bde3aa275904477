// Package interactive provides the interactive command-line interface
// for the CoAP node: manual control of the simulated button and LEDs,
// plus visibility into resources and observers.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/binsense/coapnode-go/pkg/driver"
	"github.com/binsense/coapnode-go/pkg/service"
)

// Node handles interactive mode for coapnode.
type Node struct {
	svc    *service.NodeService
	leds   *driver.LEDBank
	button *driver.Button
	rl     *readline.Instance
}

// New creates a new interactive node handler.
func New(svc *service.NodeService, leds *driver.LEDBank, button *driver.Button) (*Node, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "node> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Node{svc: svc, leds: leds, button: button, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the prompt.
func (n *Node) Stdout() io.Writer {
	return n.rl.Stdout()
}

// Run starts the interactive command loop.
func (n *Node) Run(ctx context.Context, cancel context.CancelFunc) {
	defer n.rl.Close()

	n.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := n.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(n.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			n.printHelp()

		case "status", "s":
			n.cmdStatus()

		case "press", "p":
			n.cmdPress()

		case "led":
			n.cmdLED(args)

		case "resources", "ls":
			n.cmdResources()

		case "observers", "o":
			n.cmdObservers()

		case "quit", "exit", "q":
			fmt.Fprintln(n.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(n.rl.Stdout(), "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func (n *Node) printHelp() {
	fmt.Fprintln(n.rl.Stdout(), `
Commands:
  status, s         Show node state and LED states
  press, p          Press the hardware button (toggles green LED)
  led <color> <on|off>
                    Drive one LED directly (red, yellow, green)
  resources, ls     List registered resources
  observers, o      Show observer counts per resource
  help, ?           Show this help
  quit, q           Stop the node and exit`)
}

func (n *Node) cmdStatus() {
	state := n.leds.State()
	fmt.Fprintf(n.rl.Stdout(), "State: %s  Addr: %v\n", n.svc.State(), n.svc.Addr())
	fmt.Fprintf(n.rl.Stdout(), "LEDs:  red=%s yellow=%s green=%s\n",
		onOff(state.Red), onOff(state.Yellow), onOff(state.Green))
}

func (n *Node) cmdPress() {
	state := n.button.Press()
	fmt.Fprintf(n.rl.Stdout(), "Button pressed, green LED now %s\n", onOff(state.Green))
}

func (n *Node) cmdLED(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(n.rl.Stdout(), "Usage: led <red|yellow|green> <on|off>")
		return
	}
	on := args[1] == "on"
	state := n.leds.State()
	switch args[0] {
	case "red":
		state.Red = on
	case "yellow":
		state.Yellow = on
	case "green":
		state.Green = on
	default:
		fmt.Fprintf(n.rl.Stdout(), "Unknown LED: %s\n", args[0])
		return
	}
	n.leds.Apply(state)
	fmt.Fprintf(n.rl.Stdout(), "LED %s %s\n", args[0], onOff(on))
}

func (n *Node) cmdResources() {
	for _, r := range n.svc.Registry().List() {
		flags := ""
		if r.Observable() {
			flags += " obs"
		}
		if r.Writable() {
			flags += " rw"
		}
		fmt.Fprintf(n.rl.Stdout(), "  %-15s rt=%s if=%s ct=%d%s\n",
			r.Path(), r.ResourceType(), r.Interface(), r.ContentFormat(), flags)
	}
}

func (n *Node) cmdObservers() {
	total := 0
	for _, r := range n.svc.Registry().List() {
		count := n.svc.Observers().Count(r.Path())
		total += count
		if count > 0 {
			fmt.Fprintf(n.rl.Stdout(), "  %-15s %d\n", r.Path(), count)
		}
	}
	if total == 0 {
		fmt.Fprintln(n.rl.Stdout(), "  no observers")
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
