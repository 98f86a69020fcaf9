// Command scanner runs a scanning station against the attendance server.
// Decoded QR payloads are read one per line from stdin, as produced by a
// keyboard-wedge scanner or a piped decoder process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendance-server-go/attendance"
	"attendance-server-go/client"
	"attendance-server-go/config"
	"attendance-server-go/decoder"
)

func main() {
	cfg, err := config.LoadScanner()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	serverURL := flag.String("server", cfg.Scanner.ServerURL, "attendance server base URL")
	token := flag.String("token", cfg.Scanner.SessionToken, "host session token")
	flag.Parse()

	if *token == "" {
		log.Fatal("A host session token is required (-token or SCANNER_SESSION_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*serverURL, *token, cfg.Scanner.Timeout)
	sess, err := c.Session(ctx)
	if err != nil {
		log.Fatalf("Failed to resolve host session: %v", err)
	}
	log.Printf("[scanner] scanning for host %s (%s) until %s", sess.Host.Name, sess.Host.ID, sess.ExpiresAt.In(cfg.Location).Format("2006-01-02 15:04"))

	format, err := attendance.ParsePayloadFormat(cfg.Scan.PayloadFormat)
	if err != nil {
		log.Fatalf("Invalid payload format: %v", err)
	}
	marker := attendance.NewMarker(c, attendance.WithPayloadFormat(format))
	debouncer := attendance.NewDebouncer(cfg.Scan.DebounceWindow)
	defer debouncer.Stop()

	scanner := attendance.NewScanner(marker, debouncer, sess, func(st attendance.Status) {
		fmt.Fprintln(os.Stdout, st.Message())
	})

	if err := scanner.Run(ctx, decoder.LineSource(ctx, os.Stdin)); err != nil {
		log.Fatalf("Scanner stopped: %v", err)
	}
	log.Println("[scanner] stopped")
}
