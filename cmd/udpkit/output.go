package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/term"

	"github.com/postalsys/udpkit/internal/udp"
)

// printer writes received datagrams and status lines. Styling is applied
// only when the output is a terminal.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
	now    func() time.Time

	timeStyle   lipgloss.Style
	addrStyle   lipgloss.Style
	statusStyle lipgloss.Style
}

func newPrinter(f *os.File) *printer {
	return newPrinterWithWriter(f, term.IsTerminal(int(f.Fd())))
}

func newPrinterWithWriter(w io.Writer, styled bool) *printer {
	return &printer{
		w:           w,
		styled:      styled,
		now:         time.Now,
		timeStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		addrStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		statusStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Datagram is a udp.ReceiveFunc.
func (p *printer) Datagram(data string, addr net.IP, port int) {
	from := net.JoinHostPort(addr.String(), strconv.Itoa(port))

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "%s %s %s\n",
		p.render(p.timeStyle, p.now().Format("15:04:05")),
		p.render(p.addrStyle, from),
		data)
}

// Status prints an informational line.
func (p *printer) Status(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, p.render(p.statusStyle, line))
}

// Summary prints traffic totals.
func (p *printer) Summary(st udp.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "  Received:  %s datagrams (%s)\n",
		humanize.Comma(int64(st.DatagramsReceived)), humanize.Bytes(st.BytesReceived))
	fmt.Fprintf(p.w, "  Sent:      %s datagrams (%s)\n",
		humanize.Comma(int64(st.DatagramsSent)), humanize.Bytes(st.BytesSent))
	if faults := st.SendFaults + st.ReceiveFaults + st.ListenerFaults; faults > 0 {
		fmt.Fprintf(p.w, "  Faults:    %d send, %d receive, %d listener\n",
			st.SendFaults, st.ReceiveFaults, st.ListenerFaults)
	}
}

// writeMetrics writes every metric family in g in Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// parseSize parses a human-readable byte size such as 1024, 2KiB or 4kB.
func parseSize(s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format '%s': %w", s, err)
	}
	if n > 65507 {
		return 0, fmt.Errorf("size %s exceeds the largest UDP payload", humanize.IBytes(n))
	}
	return int(n), nil
}

// formatSize formats n bytes using IEC units.
func formatSize(n int) string {
	if n < 0 {
		return fmt.Sprintf("%d B", n)
	}
	return humanize.IBytes(uint64(n))
}
