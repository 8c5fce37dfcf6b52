package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/dkovalenko/udpflow/internal/events"
	"github.com/dkovalenko/udpflow/pkg/operator"
	"github.com/dkovalenko/udpflow/pkg/stats"
	"github.com/dkovalenko/udpflow/pkg/transport"
	"github.com/dkovalenko/udpflow/pkg/wire"
)

func main() {
	logFile, err := os.OpenFile("udpflow.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		defer logFile.Close()
		slog.SetDefault(slog.New(slog.NewJSONHandler(logFile, nil)))
	}

	var (
		localPort int
		peerAddr  string
		destDir   string
	)

	root := &cobra.Command{
		Use:   "udpflow",
		Short: "Peer-to-peer reliable file and message transfer over UDP",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start a peer connection and open the operator menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeer(localPort, peerAddr, destDir)
		},
	}
	runCmd.Flags().IntVar(&localPort, "port", 9000, "local UDP port to bind")
	runCmd.Flags().StringVar(&peerAddr, "peer", "", "remote peer address, host:port")
	runCmd.Flags().StringVar(&destDir, "dest-dir", ".", "directory to write received files into")
	_ = runCmd.MarkFlagRequired("peer")

	root.AddCommand(runCmd)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

func runPeer(localPort int, peerAddr, destDir string) error {
	sock, err := transport.Dial(localPort, peerAddr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	cfg := transport.DefaultConfig()
	cfg.DestDir = destDir

	log := slog.Default()
	peer, err := transport.New(cfg, sock, log)
	if err != nil {
		return fmt.Errorf("build peer: %w", err)
	}

	commands := make(chan events.OperatorCommand, 8)
	peerEvents := make(chan events.PeerEvent, 8)

	peer.OnMessage = func(content []byte) {
		peerEvents <- events.MessageReceived{Content: content}
	}
	peer.OnFile = func(name, path string) {
		mime := ""
		if detected, err := mimetype.DetectFile(path); err == nil {
			mime = detected.String()
		}
		peerEvents <- events.FileReceived{Name: name, Path: path, MIME: mime}
	}
	peer.OnStats = func(snapshot stats.Snapshot) {
		peerEvents <- events.TransferFinished{Snapshot: snapshot}
	}
	peer.OnTerminated = func(reason string) {
		peerEvents <- events.PeerTerminated{Reason: reason}
		close(peerEvents)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := peer.Run(ctx); err != nil {
			log.Warn("peer event loop stopped", "error", err)
		}
	}()

	go bridgeCommands(peer, commands)

	model := operator.New(commands, peerEvents, localPort, peerAddr, destDir)
	program := tea.NewProgram(model)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("operator: %w", err)
	}
	return nil
}

func bridgeCommands(peer *transport.Peer, commands <-chan events.OperatorCommand) {
	for cmd := range commands {
		switch c := cmd.(type) {
		case events.SendMessage:
			peer.Submit(wire.Payload{
				Kind:         wire.PayloadMessage,
				Message:      []byte(c.Text),
				FragmentSize: c.FragmentSize,
				CorruptFirst: c.CorruptFirst,
			})
		case events.SendFile:
			content, err := os.ReadFile(c.Path)
			if err != nil {
				slog.Error("failed to read file for submission", "path", c.Path, "error", err)
				continue
			}
			peer.Submit(wire.Payload{
				Kind:         wire.PayloadFile,
				Name:         filepath.Base(c.Path),
				Content:      content,
				FragmentSize: c.FragmentSize,
				CorruptFirst: c.CorruptFirst,
			})
		case events.ChangeDestDir:
			peer.SetDestDir(c.Dir)
		case events.Terminate:
			peer.RequestTerminate()
			return
		}
	}
}
