package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/flipstone/dolittle/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dolittle",
		Short: "dolittle runs a minimal RFC 6455 WebSocket server core",
	}
	root.AddCommand(newServeCommand())
	return root
}

func newServeCommand() *cobra.Command {
	opts := server.DefaultOptions()
	port := int(opts.ListenPort)
	metricsAddr := "127.0.0.1:9090"
	verbose := false

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and speak the WebSocket protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ListenPort = uint16(port)
			return runServe(opts, metricsAddr, verbose)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ListenAddress, "listen-address", opts.ListenAddress, "address to listen on")
	flags.IntVar(&port, "listen-port", port, "port to listen on")
	flags.IntVar(&opts.Backlog, "backlog", opts.Backlog, "requested accept backlog depth")
	flags.StringVar(&metricsAddr, "metrics-address", metricsAddr, "address to expose Prometheus metrics on")
	flags.BoolVar(&verbose, "verbose", verbose, "enable debug logging")

	return cmd
}

func runServe(opts server.Options, metricsAddr string, verbose bool) error {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	m, registry := server.NewMetrics()
	go serveMetrics(metricsAddr, registry, log)

	addr := net.JoinHostPort(opts.ListenAddress, fmt.Sprintf("%d", opts.ListenPort))
	// opts.Backlog is not passed on: net.Listen takes no backlog argument,
	// so the accept queue depth is whatever the Go runtime and OS choose.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dolittle: failed to listen on %s: %w", addr, err)
	}
	defer ln.Close()

	log.WithField("address", addr).Info("websocket server listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.WithError(err).Error("accept failed")
			continue
		}
		go handleConn(conn, m, log)
	}
}

// serveMetrics exposes registry on addr under /metrics until the process
// exits; a failure here is logged but does not bring down the listener
// goroutine driving accepted connections.
func serveMetrics(addr string, registry *prometheus.Registry, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server stopped")
	}
}

func handleConn(raw net.Conn, m *server.Metrics, log *logrus.Logger) {
	defer raw.Close()

	entry := log.WithField("remote", raw.RemoteAddr().String())
	c := server.NewConn(&netConnTransport{conn: raw}, entry, m)

	err := c.Serve(func(msg server.Message) {
		if msg.IsText {
			entry.WithField("bytes", len(msg.Text)).Debug("received text message")
		} else {
			entry.WithField("bytes", len(msg.Binary)).Debug("received binary message")
		}
	})
	if err != nil {
		entry.WithError(err).Debug("connection terminated")
	}
}

// netConnTransport adapts a net.Conn to server.Transport.
type netConnTransport struct {
	conn net.Conn
	buf  [4096]byte
}

func (t *netConnTransport) Read() ([]byte, error) {
	n, err := t.conn.Read(t.buf[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, t.buf[:n])
	return out, nil
}

func (t *netConnTransport) Write(b []byte) error {
	_, err := t.conn.Write(b)
	return err
}
