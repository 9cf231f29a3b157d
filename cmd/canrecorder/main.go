// Command canrecorder pumps frames off a SocketCAN interface through a
// cyphal.Receiver and hands completed transfers to an uplink.Recorder for
// archival, alerting, and registry bookkeeping.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atsika/cyphalcan/cyphal"
	"github.com/atsika/cyphalcan/transport/socketcan"
	"github.com/atsika/cyphalcan/uplink"
)

func main() {
	ifaceFlag := flag.String("iface", "can0", "SocketCAN interface name")
	localIDFlag := flag.Int("node-id", -1, "local node ID (0-127); omit to run anonymous")
	fdFlag := flag.Bool("fd", false, "use CAN FD MTU (64 bytes) instead of classic CAN (8 bytes)")
	urlFlag := flag.String("url", "", "Azure Storage service URL (e.g. https://account.blob.core.windows.net)")
	accountFlag := flag.String("account", "", "Azure Storage account name")
	keyFlag := flag.String("key", "", "Azure Storage account key")
	envFlag := flag.Bool("env", false, "use credentials from AZURE_STORAGE_ACCOUNT / AZURE_STORAGE_ACCOUNT_KEY")
	noEncryptFlag := flag.Bool("no-encrypt", false, "disable Noise encryption of archived batches")
	alertThresholdFlag := flag.Uint64("alert-threshold", uplink.DefaultAlertThreshold, "error count delta within the alert window that triggers a notification")
	alertWindowFlag := flag.Duration("alert-window", uplink.DefaultAlertWindow, "rolling window for the alert threshold")
	metricsAddrFlag := flag.String("metrics-addr", ":9977", "address to serve Prometheus /metrics on; empty disables")

	flag.Usage = printUsage
	flag.Parse()

	if *urlFlag == "" {
		log.Fatal("canrecorder: -url is required")
	}
	parsedURL, err := url.Parse(*urlFlag)
	if err != nil {
		log.Fatalf("canrecorder: invalid -url: %v", err)
	}
	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		log.Fatalf("canrecorder: -url must have http:// or https:// scheme, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		log.Fatal("canrecorder: -url must contain a valid host")
	}

	if !*envFlag {
		if *accountFlag != "" {
			os.Setenv("AZURE_STORAGE_ACCOUNT", *accountFlag)
		}
		if *keyFlag != "" {
			os.Setenv("AZURE_STORAGE_ACCOUNT_KEY", *keyFlag)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	bus, err := socketcan.Open(*ifaceFlag)
	if err != nil {
		log.Fatalf("canrecorder: open %s: %v", *ifaceFlag, err)
	}
	defer bus.Close()

	mtu := cyphal.MtuCanClassic
	if *fdFlag {
		mtu = cyphal.MtuCanFD
	}

	var recv *cyphal.Receiver
	if *localIDFlag < 0 {
		recv = cyphal.NewAnonymous(mtu, cyphal.WithLogger(logger))
	} else {
		nodeID, err := cyphal.NewNodeId(uint8(*localIDFlag))
		if err != nil {
			log.Fatalf("canrecorder: invalid -node-id: %v", err)
		}
		recv = cyphal.New(nodeID, mtu, cyphal.WithLogger(logger))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ep := uplink.NewEndpoint(parsedURL)

	recOpts := []uplink.Option{
		uplink.WithContext(ctx),
		uplink.WithAlertThreshold(*alertThresholdFlag),
		uplink.WithAlertWindow(*alertWindowFlag),
	}
	if *noEncryptFlag {
		recOpts = append(recOpts, uplink.WithoutEncryption())
	}

	rec, err := uplink.NewRecorder(ep, recOpts...)
	if err != nil {
		log.Fatalf("canrecorder: start recorder: %v", err)
	}

	if err := applyFilters(bus, recv); err != nil {
		log.Fatalf("canrecorder: apply filters: %v", err)
	}

	if *metricsAddrFlag != "" {
		serveMetrics(*metricsAddrFlag, recv, rec, logger)
	}

	logger.Info("canrecorder: running", "iface", *ifaceFlag, "anonymous", *localIDFlag < 0)
	run(ctx, bus, recv, rec, logger)
}

// serveMetrics registers a PrometheusCollector over recv/rec and serves it
// at /metrics on addr in the background, grounded on runZeroInc-sockstats's
// cmd/exporter_example1 (a promhttp.Handler mounted on a plain HTTP server
// running alongside the collector it instruments).
func serveMetrics(addr string, recv *cyphal.Receiver, rec *uplink.Recorder, logger *slog.Logger) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(uplink.NewPrometheusCollector(recv, rec.Metrics(), nil))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("canrecorder: metrics server stopped", "error", err)
		}
	}()
	logger.Info("canrecorder: serving metrics", "addr", addr)
}

func applyFilters(bus *socketcan.Bus, recv *cyphal.Receiver) error {
	filters, err := recv.FrameFilters()
	if err != nil {
		return fmt.Errorf("build filters: %w", err)
	}
	if len(filters) == 0 {
		return bus.ApplyAcceptAll()
	}
	return bus.ApplyFilters(filters)
}

// run pumps frames from bus into recv and transfers into rec until ctx is
// cancelled, ticking rec on its own adaptive schedule.
func run(ctx context.Context, bus *socketcan.Bus, recv *cyphal.Receiver, rec *uplink.Recorder, logger *slog.Logger) {
	nextTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := bus.Receive()
		if err != nil {
			if err != cyphal.ErrWouldBlock {
				logger.Warn("canrecorder: receive", "error", err)
			}
		} else if tr, err := recv.Accept(frame); err != nil {
			logger.Debug("canrecorder: drop frame", "error", err)
		} else if tr != nil {
			rec.Observe(tr)
		}

		if now := time.Now(); !now.Before(nextTick) {
			if err := rec.Tick(ctx, now, recv.TransferCount(), recv.ErrorCount()); err != nil {
				logger.Warn("canrecorder: tick", "error", err)
			}
			nextTick = now.Add(rec.NextTick())
		}
	}
}

func printUsage() {
	fmt.Println("canrecorder - SocketCAN to Cyphal transfer recorder")
	fmt.Println("Usage:")
	fmt.Println("  canrecorder -url <storage-url> [-account <account>] [-key <key>] [-iface can0] [-node-id 42]")
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  canrecorder -iface can0 -node-id 10 -url https://account.blob.core.windows.net -account account -key key")
	fmt.Println("  canrecorder -iface vcan0 -url http://localhost:10000/devstoreaccount1 -env")
}
