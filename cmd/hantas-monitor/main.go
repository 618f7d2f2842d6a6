// Command hantas-monitor connects to a Hantas torque device over TCP or
// serial RTU, prints every decoded record it receives as a JSON line on
// stdout, and optionally re-issues a register read on a fixed interval.
//
// usage: hantas-monitor -transport=tcp -address=192.168.0.50:502
//
//	hantas-monitor -transport=rtu -address=/dev/ttyUSB0 -baud=19200 -option=legacy
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/hantas-hq/gohantas"
	"github.com/hantas-hq/gohantas/frame"
	"github.com/hantas-hq/gohantas/transport"
)

func main() {
	var (
		transportName string
		address string
		baud int
		deviceID uint
		optionName string
		readHoldingAddr uint
		readHoldingCount uint
		pollInterval time.Duration
	)
	flag.StringVar(&transportName, "transport", "tcp", "transport to use: tcp or rtu")
	flag.StringVar(&address, "address", "", "tcp host:port, or rtu serial device path")
	flag.IntVar(&baud, "baud", 0, "rtu baud rate (zero uses the library default)")
	flag.UintVar(&deviceID, "device-id", 1, "device/unit id")
	flag.StringVar(&optionName, "option", "gen2", "pipeline option: gen2 or legacy")
	flag.UintVar(&readHoldingAddr, "read-holding-addr", 0, "holding register address to read, if -read-holding-count is set")
	flag.UintVar(&readHoldingCount, "read-holding-count", 0, "holding register count to read; zero disables the read")
	flag.DurationVar(&pollInterval, "poll-interval", 0, "re-issue the holding read on this interval; zero reads only once")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if address == "" {
		logger.Error("missing required -address")
		os.Exit(1)
	}

	adapter, variant, err := buildAdapter(transportName, address, baud, uint8(deviceID))
	if err != nil {
		logger.Error("building transport adapter failed", "err", err)
		os.Exit(1)
	}

	option := hantas.OptionGen2
	if optionName == "legacy" {
		option = hantas.OptionLegacy
	}

	p := hantas.Open(adapter, hantas.Config{
		Variant: variant,
		Option: option,
		DeviceID: uint8(deviceID),
		KeepAliveEnabled: true,
	})

	p.OnConnectionChanged(func(connected bool) {
		logger.Info("connection state changed", "connected", connected)
	})
	p.OnError(func(kind hantas.ErrorKind, err error) {
		logger.Error("pipeline error", "kind", kind.String(), "err", err)
	})
	p.OnReceived(func(record any, addr uint16) {
		printRecord(record, addr)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := p.Connect(ctx); err != nil {
		logger.Error("connect failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = p.Close() }()

	if readHoldingCount > 0 {
		issue := func() {
			if err := p.ReadHolding(uint16(readHoldingAddr), uint16(readHoldingCount)); err != nil {
				logger.Error("read_holding failed", "err", err)
			}
		}
		issue()
		if pollInterval > 0 {
			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						issue()
					}
				}
			}()
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
}

func buildAdapter(transportName, address string, baud int, deviceID uint8) (transport.Adapter, frame.Variant, error) {
	switch transportName {
	case "tcp":
		return transport.NewTCP(transport.TCPConfig{Address: address, DeviceID: deviceID}), frame.VariantTCP, nil
	case "rtu":
		a, err := transport.NewRTU(transport.RTUConfig{Port: address, Baud: baud, DeviceID: deviceID})
		if err != nil {
			return nil, 0, err
		}
		return a, frame.VariantRTU, nil
	default:
		return nil, 0, fmt.Errorf("unknown transport %q, want tcp or rtu", transportName)
	}
}

// printRecord prints one received record as a JSON line. Decoded codec
// structs (DeviceInfo, Status, Event, Graph, CalData, SimpleInfo) marshal
// directly through their exported fields; a raw register read ([]byte) is
// additionally decoded into big-endian uint16 words since that is almost
// always what the caller actually wants to see.
func printRecord(record any, addr uint16) {
	out := struct {
		Time time.Time `json:"time"`
		Address uint16 `json:"address"`
		Record any `json:"record"`
	}{
		Time: time.Now(),
		Address: addr,
		Record: record,
	}
	if raw, ok := record.([]byte); ok {
		out.Record = registerWords(raw)
	}

	line, err := json.Marshal(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hantas-monitor: failed to marshal record: %v\n", err)
		return
	}
	fmt.Println(string(line))
}

func registerWords(raw []byte) []uint16 {
	words := make([]uint16, len(raw)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(raw[i*2 : i*2+2])
	}
	return words
}
