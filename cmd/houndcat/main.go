// houndcat registers one driver and prints the records it produces to
// stdout, one line per record, until -count records have been printed
// (default 10; 0 means no limit) or SIGINT/SIGTERM is seen between reads.
// It exists to exercise
// a Hound instance end to end against a real or mock driver path without
// writing a test harness for every manual check.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ehrlich-b/hound"
	_ "github.com/ehrlich-b/hound/drivers"
	"github.com/ehrlich-b/hound/internal/logging"
)

func main() {
	var (
		kind       = flag.String("kind", "counter", "driver kind (counter, nop, file)")
		path       = flag.String("path", "/tmp/houndcat", "driver path argument")
		schemaBase = flag.String("schema-base", "", "base directory for the driver's schema file")
		schemaFile = flag.String("schema-file", "", "schema file name, relative to schema-base")
		queueLen   = flag.Int("queue-len", 64, "context queue capacity")
		count      = flag.Int("count", 10, "number of records to read before exiting (0 = run until interrupted)")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	h, err := hound.New(hound.Options{Logger: logger})
	if err != nil {
		log.Fatalf("hound.New: %v", err)
	}
	defer h.Close()

	if err := h.RegisterDriver(*kind, *path, *schemaBase, *schemaFile, nil); err != nil {
		log.Fatalf("RegisterDriver(%s, %s): %v", *kind, *path, err)
	}
	defer func() {
		if err := h.UnregisterDriver(*path); err != nil {
			logger.Error("UnregisterDriver failed", "error", err)
		}
	}()

	descs := h.GetDataDesc()
	if len(descs) == 0 {
		log.Fatalf("driver %q advertised no data IDs", *kind)
	}
	requests := make([]hound.DataRequest, len(descs))
	for i, d := range descs {
		requests[i] = hound.DataRequest{DataID: d.DataID, PeriodNs: hound.PullPeriod}
	}

	delivered := 0
	ctx, err := h.AllocCtx(hound.Request{
		QueueLen: *queueLen,
		Requests: requests,
		Callback: func(rec *hound.Record, seqno uint64, _ any) {
			delivered++
			fmt.Printf("seqno=%d data_id=%d dev_id=%d bytes=%s\n", seqno, rec.DataID, rec.DevID, hex.EncodeToString(rec.Data))
		},
	})
	if err != nil {
		log.Fatalf("AllocCtx: %v", err)
	}
	defer ctx.Free()

	if err := ctx.Start(); err != nil {
		log.Fatalf("Context.Start: %v", err)
	}
	defer ctx.Stop()

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n=== END ===\n\n", buf[:n])
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for *count == 0 || delivered < *count {
		select {
		case <-sigCh:
			logger.Info("interrupted, shutting down")
			return
		default:
		}
		if err := ctx.Read(1); err != nil {
			logger.Warn("Read failed", "error", err)
			time.Sleep(10 * time.Millisecond)
		}
	}
}
