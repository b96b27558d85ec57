package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/dkeye/Trio/internal/adapters/rtc"
	"github.com/dkeye/Trio/internal/adapters/wsclient"
	"github.com/dkeye/Trio/internal/config"
	"github.com/dkeye/Trio/internal/domain"
	"github.com/dkeye/Trio/internal/mesh"
	"github.com/dkeye/Trio/internal/peer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room and stay until interrupted",
	Long: `Join a room and stay until interrupted. Without --room a new room id is
generated and printed so others can join.

Lines typed on stdin are sent as room chat. "/to <id> <text>" sends a
private message, "/who" lists members and "/leave" exits.`,
	Args: cobra.NoArgs,
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().String("server", "ws://localhost:8080/ws", "coordinator WebSocket URL")
	joinCmd.Flags().String("room", "", "room id (generated when empty)")
	joinCmd.Flags().String("name", domain.DefaultDisplayName, "display name")
}

func runJoin(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadPeer(cmd.Flags())
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	room := cfg.Room
	if room == "" {
		id, err := domain.NewRoomID()
		if err != nil {
			return err
		}
		room = string(id)
	}
	if err := domain.ValidateRoomID(room); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client := wsclient.NewClient(cfg.Server)
	if err := client.Connect(ctx); err != nil {
		return err
	}

	track, err := rtc.NewLocalAudio("trio")
	if err != nil {
		return err
	}
	console := newConsole(cmd.OutOrStdout(), cancel)
	links := peer.NewManager(rtc.NewFactory(rtc.DefaultWebRTCConfig(), track), client, console)
	coord := mesh.NewCoordinator(links, client, console)

	g, gctx := errgroup.WithContext(ctx)
	// The client outlives gctx so the final leave still goes out.
	g.Go(func() error {
		defer cancel()
		return client.Run(context.Background())
	})
	g.Go(func() error {
		defer cancel()
		return coord.Run(gctx, client.Incoming())
	})
	g.Go(func() error { return rtc.PlaySilence(gctx, track) })
	g.Go(func() error {
		<-gctx.Done()
		if err := coord.Leave(); err != nil && !errors.Is(err, wsclient.ErrClosed) {
			log.Warn().Err(err).Str("module", "cli").Msg("leave")
		}
		links.Shutdown()
		console.wait()
		client.Close()
		return nil
	})

	console.banner(room, cfg.Name)
	if err := coord.Join(room, cfg.Name); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}
	go readCommands(gctx, cmd.InOrStdin(), coord, console, cancel)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readCommands is not part of the errgroup: a blocked stdin read cannot be
// interrupted.
func readCommands(ctx context.Context, in io.Reader, coord *mesh.Coordinator, console *console, quit func()) {
	if in == nil {
		in = os.Stdin
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if err := runCommand(line, coord, console, quit); err != nil {
			console.warn(err.Error())
		}
	}
}

func runCommand(line string, coord *mesh.Coordinator, console *console, quit func()) error {
	switch {
	case line == "":
		return nil
	case line == "/leave":
		quit()
		return nil
	case line == "/who":
		console.roster(coord.Members())
		return nil
	case strings.HasPrefix(line, "/to "):
		to, text, ok := strings.Cut(strings.TrimPrefix(line, "/to "), " ")
		if !ok || strings.TrimSpace(text) == "" {
			return errors.New("usage: /to <id> <text>")
		}
		return coord.SendChat(strings.TrimSpace(text), to)
	default:
		return coord.SendChat(line, "")
	}
}
