package nwa_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/pior/nwa"
	"github.com/pior/nwa/protocol"
)

// Example_blocking connects to a local emulator and reads a few bytes of
// work RAM.
func Example_blocking() {
	client, err := nwa.NewClient("localhost:48879", nwa.Config{
		Reconnect: nwa.NoReconnect,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.ConnectContext(ctx); err != nil {
		log.Fatal(err)
	}

	info, err := client.Do(ctx, nwa.CmdEmulatorInfo)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("connected to", info.Map()["name"])

	mem, err := client.Do(ctx, nwa.CmdCoreRead, "WRAM", "$0", "16")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(nwa.HexString(mem.Data, " "))
}

// Example_handlers drives the client from its handlers, reconnecting every
// two seconds while the emulator is away.
func Example_handlers() {
	var client *nwa.Client

	logger, _ := zap.NewDevelopment()
	client, err := nwa.NewClient("localhost:48879", nwa.Config{
		Logger: logger,
		OnConnected: func() {
			_ = client.Send(nwa.CmdEmulatorInfo, nil, func(reply protocol.Reply) {
				fmt.Println("connected to", reply.Map()["name"])
			})
		},
		OnDisconnected: func(err error) {
			fmt.Println("disconnected:", err)
		},
		OnReply: func(reply protocol.Reply) {
			fmt.Println(reply.Command, reply.Kind)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if err := client.Connect(); err != nil {
		log.Fatal(err)
	}
	time.Sleep(time.Minute)
}

// Example_pool runs commands from several goroutines.
func Example_pool() {
	pool, err := nwa.NewPool("localhost:48879", nwa.PoolConfig{
		MaxSize:             4,
		HealthCheckInterval: 30 * time.Second,
		NewCircuitBreaker:   nwa.NewCircuitBreakerConfig(3, time.Minute, 10*time.Second),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	reply, err := pool.Do(context.Background(), nwa.CmdEmulatorStatus)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Map()["state"])
}
