package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/distributed/periph/ll/udp"
	"github.com/distributed/periph/pad"
	"github.com/distributed/periph/pcm"
	"github.com/distributed/periph/prd"
	"github.com/distributed/periph/sim"
	"github.com/fatih/color"
)

var (
	configPath = flag.String("config", "", "machine description file (yaml)")
	mode       = flag.String("mode", "run", "run, serve or client")
	groupStr   = flag.String("group", "239.0.12.34", "multicast group for serve/client modes")
	ifaceName  = flag.String("iface", "", "network interface for serve/client modes")
	cycletime  = flag.Duration("cycletime", 10*time.Millisecond, "transport cycle time")
	timeout    = flag.Duration("timeout", prd.DefaultReadyTimeout, "sensor ready timeout")
)

func main() {
	flag.Parse()

	var (
		cfg sim.Config
		err error
	)
	if *configPath != "" {
		cfg, err = sim.LoadConfig(*configPath)
		if err != nil {
			fail("config: %v", err)
		}
	}

	switch *mode {
	case "run":
		err = run(cfg)
	case "serve":
		err = serve(cfg)
	case "client":
		err = client()
	default:
		fail("unknown mode %q", *mode)
	}

	if err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// run drives the trigger/wait/read protocol against an in-process
// machine over the loopback framer.
func run(cfg sim.Config) error {
	m, err := sim.NewMachine(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer m.Close()

	commander := pcm.NewTransactionFramer(sim.NewLoopFramer(m))
	defer commander.Close()

	base := cfg.Sensor.Base
	if base == 0 {
		base = pad.SensorBase
	}

	reader := prd.New(commander, base)
	defer reader.Close()

	printRegs(m, "before trigger")

	v, err := reader.ReadValue(*timeout)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("sensor value: %#04x\n", v)
	printRegs(m, "after read")

	return nil
}

func printRegs(m *sim.Machine, tag string) {
	control, status, data := m.Sensor().Snapshot()
	fmt.Printf("%s: control=%#08x status=%#08x data=%#08x\n", tag, control, status, data)
}

func serve(cfg sim.Config) error {
	iface, group, err := transportArgs()
	if err != nil {
		return err
	}

	m, err := sim.NewMachine(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer m.Close()

	r, err := udp.NewUDPResponder(iface, group, m)
	if err != nil {
		return err
	}
	defer r.Close()

	color.New(color.FgCyan).Printf("serving machine on %v %v\n", iface.Name, group)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	<-sigc

	return nil
}

func client() error {
	iface, group, err := transportArgs()
	if err != nil {
		return err
	}

	framer, err := udp.NewUDPFramer(iface, group, *cycletime)
	if err != nil {
		return err
	}

	commander := pcm.NewTransactionFramer(framer)
	defer commander.Close()
	defer framer.Close()

	reader := prd.New(commander, pad.SensorBase)
	defer reader.Close()

	v, err := reader.ReadValue(*timeout)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("sensor value: %#04x\n", v)
	return nil
}

func transportArgs() (*net.Interface, net.IP, error) {
	if *ifaceName == "" {
		return nil, nil, fmt.Errorf("-iface is required in %s mode", *mode)
	}

	iface, err := net.InterfaceByName(*ifaceName)
	if err != nil {
		return nil, nil, err
	}

	group := net.ParseIP(*groupStr)
	if group == nil {
		return nil, nil, fmt.Errorf("cannot parse group address %q", *groupStr)
	}

	return iface, group, nil
}
