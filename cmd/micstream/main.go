// Command micstream captures microphone audio, downsamples it to 16 kHz
// PCM16 and streams it to a recognition endpoint, printing transcripts as
// they arrive. It is the native-client counterpart of the browser demo.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/pkg/audio"
	"github.com/voicebridge/voicebridge/pkg/audio/capture"
	"github.com/voicebridge/voicebridge/pkg/sttclient"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/stt", "recognition websocket endpoint")
	language := flag.String("language", "zh-TW", "recognition language")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	client, err := sttclient.Dial(sttclient.Config{
		URL:      *url,
		Language: *language,
		OnRecognizing: func(text string) {
			fmt.Printf("\r... %s", text)
		},
		OnResult: func(text string, confidence float64) {
			fmt.Printf("\r>>> %s (confidence %.2f)\n", text, confidence)
		},
		OnError: func(message string) {
			fmt.Fprintf(os.Stderr, "\nrecognition error: %s\n", message)
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Failed to start recognition session", zap.Error(err))
	}
	defer client.Close()

	pipeline := audio.NewPipeline(capture.NewMalgoDevice(), client, logger)
	if err := pipeline.Start(); err != nil {
		logger.Fatal("Failed to start capture", zap.Error(err))
	}
	defer pipeline.Stop()

	fmt.Println("Listening. Press Ctrl+C to stop.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case <-client.Done():
		logger.Info("Recognition session ended")
		return
	}

	pipeline.Stop()
	if err := client.Stop(); err != nil {
		logger.Warn("Failed to stop recognition session", zap.Error(err))
	}

	// Give the final transcript a moment to arrive.
	<-client.Done()
}
