package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	scuttlechat "github.com/okwme/scuttle-chat"
	"github.com/okwme/scuttle-chat/pkg/addressbook"
	"github.com/okwme/scuttle-chat/pkg/connection"
	"github.com/okwme/scuttle-chat/pkg/keystore"
	prommetrics "github.com/okwme/scuttle-chat/prometheus"
)

func startCmd() *cobra.Command {
	var (
		port        int
		withMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the chat node: discovered peers connect automatically, typed lines broadcast",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keystore.LoadOrCreate(secretPath(), passphrase)
			if err != nil {
				return err
			}

			opts := []scuttlechat.ConfigOption{
				scuttlechat.WithLogger(newLogger(verbose)),
				scuttlechat.WithDiscoveryPort(port),
			}
			if withMetrics {
				opts = append(opts, scuttlechat.WithMetrics(prommetrics.NewMetrics("")))
			}

			node, err := scuttlechat.New(scuttlechat.NewConfig(kp, addressBookPath(), opts...))
			if err != nil {
				return err
			}
			if err := node.Start(os.Stdin); err != nil {
				return err
			}
			defer node.Stop()

			color.Green("listening as %s", node.PublicKey())
			color.Green("type a line to broadcast; press 'q' on its own to quit")

			return controlLoop(node)
		},
	}

	cmd.Flags().IntVar(&port, "port", scuttlechat.DefaultDiscoveryPort, "UDP discovery port")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "register Prometheus metrics")
	return cmd
}

// controlLoop is the single-threaded consumer of the merged event stream.
func controlLoop(node *scuttlechat.Node) error {
	peerText := color.New(color.FgCyan)
	sysText := color.New(color.FgYellow)

	events := node.Events()
	var line strings.Builder
	for {
		switch ev := events.Next().(type) {
		case scuttlechat.InputEvent:
			if ev.Key == scuttlechat.DefaultExitKey && line.Len() == 0 {
				return nil
			}
			if ev.Key == '\n' {
				if text := strings.TrimSpace(line.String()); text != "" {
					if err := node.Broadcast(text); err != nil {
						sysText.Printf("! send failed: %v\n", err)
					}
				}
				line.Reset()
				continue
			}
			line.WriteRune(ev.Key)

		case scuttlechat.NewPeerEvent:
			if err := node.Connect(ev.Peer); err != nil && !scuttlechat.IsRetriable(err) {
				sysText.Printf("! %s: %v\n", ev.Peer.PublicKey, err)
			}

		case scuttlechat.PeerEvent:
			pm := ev.Event
			switch pm.Event.Kind {
			case connection.MessageReceived:
				peerText.Printf("%s> %s\n", shortKey(pm.Peer.PublicKey.String()), pm.Event.Text)
			case connection.ConnectionClosed:
				if pm.Event.Err != nil {
					sysText.Printf("* %s disconnected: %v\n", shortKey(pm.Peer.PublicKey.String()), pm.Event.Err)
				} else {
					sysText.Printf("* %s left\n", shortKey(pm.Peer.PublicKey.String()))
				}
			}

		case scuttlechat.TickEvent:
			// Nothing to refresh on a plain console.

		case nil:
			return nil
		}
	}
}

func shortKey(k string) string {
	if len(k) > 8 {
		return k[:8]
	}
	return k
}

func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List peers recorded in the address book",
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := addressbook.Open(addressBookPath())
			if err != nil {
				return err
			}
			defer book.Close()

			entries, err := book.All()
			if err != nil {
				return err
			}
			for _, e := range entries {
				name := e.Nickname
				if name == "" {
					name = "-"
				}
				fmt.Printf("%s\t%s\t%s\n", shortKey(e.PublicKey), name, e.Address)
			}
			return nil
		},
	}
}
