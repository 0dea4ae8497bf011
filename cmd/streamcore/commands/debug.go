package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/streamcore/internal/remote"
	"github.com/marmos91/streamcore/pkg/config"
	"github.com/marmos91/streamcore/pkg/streamcore"
)

var debugStreamSize int64

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging and local exercise commands",
}

var debugStreamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Start a stream against an in-memory fixture document and print its URL",
	Long: `debug stream registers a deterministic fixture document with a
mock transport, starts it through the full Core pipeline (session pool,
prefetch, range server), and prints the loopback URL it's served at. Useful
for exercising the range server with curl without a real upstream.`,
	RunE: runDebugStream,
}

func init() {
	debugStreamCmd.Flags().Int64Var(&debugStreamSize, "size", 8<<20, "fixture document size in bytes")
	debugCmd.AddCommand(debugStreamCmd)
}

func runDebugStream(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	transport := remote.NewMockTransport()
	handle := remote.Handle{ID: 1, AccessHash: 1}
	transport.RegisterDocument(1, 1, remote.Document{
		Handle:   handle,
		Size:     debugStreamSize,
		MimeType: "video/mp4",
		DCID:     1,
	})

	core, err := streamcore.New(cfg, transport)
	if err != nil {
		return fmt.Errorf("construct core: %w", err)
	}

	ctx := context.Background()
	result, err := core.StartStream(ctx, streamcore.StreamRequest{
		StreamID:  "debug",
		ChatID:    1,
		MessageID: 1,
	})
	if err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	fmt.Printf("stream available at: %s\n", result.URL)
	fmt.Println("press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	signal.Stop(sigChan)

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	return core.Shutdown(shutdownCtx)
}
