/*
Package scuttlechat provides the secure-connection core of a peer-to-peer
messaging client.

A node authenticates peers with a secret-handshake key exchange, carries each
conversation over a per-peer encrypted duplex stream with independent reader
and writer loops, discovers peers on the local network over UDP broadcast,
and merges console input, a timer, discovery, and per-connection events into
one stream for a single-threaded control loop.

# Features

  - Mutual authentication via a four-pass secret-handshake exchange
  - Per-direction box-stream encryption with disjoint session keys
  - One reader and one writer goroutine per connection; unbounded outbound
    queue so senders never block
  - LAN peer discovery over UDP broadcast announcements
  - bbolt-persisted address book with a peer blocklist
  - Passphrase-sealed identity storage (scrypt + ChaCha20-Poly1305)
  - Unified blocking event stream for the control loop
  - Thread-safe concurrent operations

# Quick Start

Create and start a node:

	keypair, _ := crypto.GenerateKeypair()

	cfg := scuttlechat.NewConfig(keypair, "./addressbook.db")

	node, err := scuttlechat.New(cfg)
	if err != nil {
		// Handle error
	}

	node.Start(os.Stdin)
	defer node.Stop()

Drive the control loop:

	events := node.Events()
	for {
		switch ev := events.Next().(type) {
		case scuttlechat.NewPeerEvent:
			node.Connect(ev.Peer)
		case scuttlechat.PeerEvent:
			fmt.Println(ev.Event.Event.Text)
		case scuttlechat.InputEvent:
			// Accumulate keys into a line, Broadcast on newline.
		case scuttlechat.TickEvent:
			// Periodic refresh.
		}
	}

# Observability

Logging and metrics are injected through the Logger and Metrics interfaces
on Config; both default to no-ops. A Prometheus Metrics implementation lives
in the prometheus subpackage and an OpenTelemetry tracing wrapper in the
otel subpackage.

# Concurrency

One goroutine per long-lived producer: four for the event multiplexer plus
two per active peer connection. Synchronization between them is channel-only.
Outbound order per connection is preserved by the writer loop and inbound
arrival order by the reader loop; no ordering holds across connections or
across multiplexer sources.
*/
package scuttlechat
