package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"posewatch/internal/simulator"
)

func main() {
	endpoint := flag.String("endpoint", "tcp://*:5556", "ZeroMQ PUSH endpoint to bind")
	width := flag.Int("width", 640, "Frame width")
	height := flag.Int("height", 480, "Frame height")
	rate := flag.Float64("rate", 10, "Messages per second")
	present := flag.Int("present", 30, "Frames with a person in view")
	absent := flag.Int("absent", 90, "Empty frames between appearances")
	jitter := flag.Float64("jitter", 0.005, "Landmark noise")
	flag.Parse()

	if *rate <= 0 {
		log.Fatalf("rate must be positive")
	}

	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		log.Fatalf("Failed to create socket: %v", err)
	}
	defer socket.Close()

	if err := socket.Bind(*endpoint); err != nil {
		log.Fatalf("Failed to bind %s: %v", *endpoint, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	fmt.Printf("Pushing synthetic poses to %s at %.1f msg/s\n", *endpoint, *rate)

	sent := 0
	messages := simulator.Stream(ctx, simulator.Options{
		Width:   *width,
		Height:  *height,
		Rate:    *rate,
		Present: *present,
		Absent:  *absent,
		Jitter:  *jitter,
		Seed:    1,
	})
	for msg := range messages {
		payload, err := cbor.Marshal(msg)
		if err != nil {
			log.Fatalf("Failed to encode message: %v", err)
		}
		if _, err := socket.SendBytes(payload, 0); err != nil {
			log.Printf("Failed to send message: %v", err)
			continue
		}
		sent++
	}

	fmt.Printf("Sent %d messages\n", sent)
}
