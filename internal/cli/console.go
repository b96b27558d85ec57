package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dkeye/Trio/internal/adapters/rtc"
	"github.com/dkeye/Trio/internal/envelope"
	"github.com/dkeye/Trio/internal/mesh"
	"github.com/dkeye/Trio/internal/peer"
	"github.com/pion/rtp"
	"github.com/sourcegraph/conc"
)

var (
	primary = lipgloss.Color("#22d3ee")
	success = lipgloss.Color("#10B981")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#6B7280")
	violet  = lipgloss.Color("#7C3AED")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary)
	roomStyle    = lipgloss.NewStyle().Bold(true).Foreground(primary)
	joinStyle    = lipgloss.NewStyle().Foreground(success)
	leaveStyle   = lipgloss.NewStyle().Foreground(warning)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(danger)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	nameStyle    = lipgloss.NewStyle().Bold(true)
	privateStyle = lipgloss.NewStyle().Italic(true).Foreground(violet)
)

// console prints room activity. It is both the mesh.Observer and the
// peer.Renderer of the CLI.
type console struct {
	mu   sync.Mutex
	out  io.Writer
	quit func()

	meters conc.WaitGroup
}

func newConsole(out io.Writer, quit func()) *console {
	return &console{out: out, quit: quit}
}

func (c *console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func (c *console) banner(room, name string) {
	c.println(titleStyle.Render("trio") + " " + mutedStyle.Render("joining as") + " " + nameStyle.Render(name))
	c.println(mutedStyle.Render("room ") + roomStyle.Render(room))
}

func (c *console) warn(msg string) {
	c.println(errorStyle.Render("! ") + msg)
}

func (c *console) roster(members []envelope.Member) {
	if len(members) == 0 {
		c.println(mutedStyle.Render("nobody else is here"))
		return
	}
	parts := make([]string, 0, len(members))
	for _, m := range members {
		parts = append(parts, nameStyle.Render(m.DisplayName)+mutedStyle.Render(" ("+m.ID+")"))
	}
	c.println(strings.Join(parts, ", "))
}

// wait blocks until every meter has printed its summary.
func (c *console) wait() {
	c.meters.Wait()
}

func (c *console) OnJoined(roomID string) {
	c.println(joinStyle.Render("joined ") + roomStyle.Render(roomID))
}

func (c *console) OnMemberJoined(m envelope.Member) {
	c.println(joinStyle.Render("+ ") + nameStyle.Render(m.DisplayName) + mutedStyle.Render(" joined"))
}

func (c *console) OnMemberLeft(m envelope.Member) {
	c.println(leaveStyle.Render("- ") + nameStyle.Render(m.DisplayName) + mutedStyle.Render(" left"))
}

func (c *console) OnRoomFull(roomID string) {
	c.warn(fmt.Sprintf("room %s is full", roomID))
	c.quit()
}

func (c *console) OnChat(msg mesh.ChatMessage) {
	stamp := mutedStyle.Render(msg.SentAt.Format("15:04"))
	text := msg.Text
	if msg.Private {
		text = privateStyle.Render("(private) " + text)
	}
	c.println(stamp + " " + nameStyle.Render(msg.DisplayName) + ": " + text)
}

func (c *console) OnError(message string) {
	c.warn(message)
}

func (c *console) OnRemoteStreamAvailable(id string, stream peer.Stream) {
	c.println(mutedStyle.Render("media from " + id))
	rs, ok := stream.(*rtc.RemoteStream)
	if !ok || rs.Track == nil {
		return
	}
	c.meters.Go(func() {
		stats := meter(func() (*rtp.Packet, error) {
			pkt, _, err := rs.Track.ReadRTP()
			return pkt, err
		})
		c.println(mutedStyle.Render(fmt.Sprintf("media from %s ended: %s", id, stats)))
	})
}

func (c *console) OnParticipantRemoved(id string) {
	c.println(mutedStyle.Render("link to " + id + " closed"))
}
