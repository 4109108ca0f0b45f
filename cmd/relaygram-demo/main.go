// Command relaygram-demo is a minimal two-role harness for exercising a
// NetworkProtocol connection end to end, in the vein of the teacher's
// examples/udp-client and examples/udp-server: flag-parsed config, a
// ticker that periodically sends, a loop that drains received frames,
// os/signal for graceful shutdown. It drives NetworkProtocol.Update at
// roughly 60Hz, matching original_source's client.rs tick rate.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nickolajgrishuk/relaygram/pkg/crypto"
	"github.com/nickolajgrishuk/relaygram/pkg/metrics"
	"github.com/nickolajgrishuk/relaygram/protocol"
)

func main() {
	var (
		mode       = flag.String("mode", "client", "client or server")
		bind       = flag.String("bind", "127.0.0.1:3801", "local address to bind")
		remote     = flag.String("remote", "127.0.0.1:3801", "remote address (client mode only)")
		sendPeriod = flag.Duration("send-period", 2*time.Second, "how often the client sends a message")
		keyHex     = flag.String("key", "", "hex-encoded 256-bit shared key (spec.md has no key exchange: "+
			"generate one with one run and pass it to both sides; a random key is generated and printed if omitted)")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	key, err := resolveKey(*keyHex)
	if err != nil {
		logger.Fatal("invalid -key", zap.Error(err))
	}
	if *keyHex == "" {
		logger.Info("generated a new shared key; pass it to the peer", zap.String("key", hex.EncodeToString(key)))
	}

	met := metrics.New(nil)

	if *mode == "server" {
		runServer(logger, met, *bind, key)
		return
	}
	runClient(logger, met, *bind, *remote, *sendPeriod, key)
}

// resolveKey decodes a hex-encoded key from -key, or generates a fresh
// random one if the flag was left empty.
func resolveKey(keyHex string) ([]byte, error) {
	if keyHex == "" {
		key := make([]byte, crypto.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		return key, nil
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, err
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("key must be %d bytes hex-encoded, got %d", crypto.KeySize, len(key))
	}
	return key, nil
}

func runClient(log *zap.Logger, met *metrics.Metrics, bind, remote string, sendPeriod time.Duration, key []byte) {
	proto, err := protocol.New(bind, protocol.WithLogger(log), protocol.WithMetrics(met), protocol.WithEncryptionKey(key))
	if err != nil {
		log.Fatal("bind failed", zap.Error(err))
	}
	defer proto.Close()

	if err := proto.Connect(remote); err != nil {
		log.Fatal("connect failed", zap.Error(err))
	}
	log.Info("connecting", zap.String("remote", remote))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	sendTicker := time.NewTicker(sendPeriod)
	defer sendTicker.Stop()

	messageNum := 0
	lastState := proto.State()

	for {
		select {
		case <-sigCh:
			log.Info("shutting down")
			return

		case <-sendTicker.C:
			if proto.State() != protocol.StateConnected {
				continue
			}
			messageNum++
			data := []byte(fmt.Sprintf("hello #%d", messageNum))
			if err := proto.SendReliable(data); err != nil {
				log.Warn("send failed", zap.Error(err))
			}

		case <-ticker.C:
			if err := proto.Update(); err != nil {
				log.Error("update failed", zap.Error(err))
				return
			}
			if s := proto.State(); s != lastState {
				log.Info("state changed", zap.Stringer("state", s))
				lastState = s
			}
			for {
				payload, ok := proto.Recv()
				if !ok {
					break
				}
				log.Info("received", zap.ByteString("payload", payload))
			}
		}
	}
}

func runServer(log *zap.Logger, met *metrics.Metrics, bind string, key []byte) {
	proto, err := protocol.New(bind, protocol.WithLogger(log), protocol.WithMetrics(met), protocol.WithEncryptionKey(key))
	if err != nil {
		log.Fatal("bind failed", zap.Error(err))
	}
	defer proto.Close()
	log.Info("listening", zap.String("bind", bind))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	lastState := proto.State()

	for {
		select {
		case <-sigCh:
			log.Info("shutting down")
			return

		case <-ticker.C:
			if err := proto.Update(); err != nil {
				log.Error("update failed", zap.Error(err))
				return
			}
			if s := proto.State(); s != lastState {
				log.Info("state changed", zap.Stringer("state", s))
				lastState = s
			}
			for {
				payload, ok := proto.Recv()
				if !ok {
					break
				}
				log.Info("received", zap.ByteString("payload", payload))
				echo := append([]byte("echo: "), payload...)
				if proto.State() == protocol.StateConnected {
					if err := proto.SendReliable(echo); err != nil {
						log.Warn("echo failed", zap.Error(err))
					}
				}
			}
		}
	}
}
