package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ai-voicechat-be/pkg/events"
	pktNats "ai-voicechat-be/pkg/nats"

	"github.com/joho/godotenv"
)

func main() {
	eventType := flag.String("type", "", "event type to follow (turn.completed, turn.unpersisted, knowledge.indexed); empty follows all")
	durable := flag.String("durable", "tail-events", "durable consumer name")
	flag.Parse()

	_ = godotenv.Load()

	url := os.Getenv("NATS_URL")
	if url == "" {
		fmt.Println("❌ NATS_URL not set in environment")
		os.Exit(1)
	}

	sub, err := pktNats.NewSubscriber(url)
	if err != nil {
		fmt.Printf("❌ NATS connection failed: %v\n", err)
		os.Exit(1)
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("📡 Following %q on %s (Ctrl+C to stop)\n\n", *eventType, url)
	err = sub.Subscribe(ctx, *eventType, *durable, func(ctx context.Context, ev events.Event) error {
		payload, err := json.Marshal(ev.Payload())
		if err != nil {
			return err
		}
		fmt.Printf("%s  %-18s %s\n", ev.Timestamp().Format("15:04:05.000"), ev.EventType(), payload)
		return nil
	})
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}
