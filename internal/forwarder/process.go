package forwarder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/core"
	"github.com/isqad/livelook-bridge/internal/media"
)

const (
	defaultListenHost = "127.0.0.1"
	readBufferSize    = 1600 // UDP MTU
)

// Starter launches the process that pulls the upstream stream and emits
// one RTP output per track on local UDP ports.
type Starter struct {
	ffmpegPath string
	host       string
	ports      *PortsAllocator
}

func NewStarter(ffmpegPath string, ports *PortsAllocator) *Starter {
	return &Starter{
		ffmpegPath: ffmpegPath,
		host:       defaultListenHost,
		ports:      ports,
	}
}

type trackConn struct {
	kind  core.TrackKind
	track *RtpTrack
	port  int
	conn  *net.UDPConn
}

func (s *Starter) Start(ctx context.Context, input *media.TranscoderInput, tracks Tracks) (*Handle, error) {
	if input == nil {
		return nil, media.ErrNoStream
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conns, err := s.listen(tracks)
	if err != nil {
		return nil, err
	}

	ports := make(map[core.TrackKind]int, len(conns))
	for _, c := range conns {
		ports[c.kind] = c.port
	}
	args := buildArguments(input, tracks, s.host, ports)

	log.Debug().Str("service", "forwarder").Strs("args", args).Msg("start forwarder process")

	cmd := exec.Command(s.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.release(conns)
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.release(conns)
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		s.release(conns)
		return nil, err
	}

	var releaseOnce sync.Once
	release := func() {
		releaseOnce.Do(func() { s.release(conns) })
	}

	handle := NewHandle(func() {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Error().Err(err).Str("service", "forwarder").Msg("can't kill forwarder process")
		}
		release()
	})

	var output sync.WaitGroup
	output.Add(2)
	go func() {
		defer output.Done()
		logOutput(stderr)
	}()
	go func() {
		defer output.Done()
		desc, err := readSessionDescription(stdout)
		if err != nil {
			log.Error().Err(err).Str("service", "forwarder").Msg("can't read forwarder session description")
		} else {
			dispatchMediaSections(desc, tracks)
		}
		_, _ = io.Copy(io.Discard, stdout)
	}()

	for _, c := range conns {
		go readTrack(c.conn, c.kind, c.track)
	}

	go func() {
		output.Wait()
		err := cmd.Wait()
		log.Debug().Err(err).Str("service", "forwarder").Msg("forwarder process exited")
		release()
		handle.Exited(err)
	}()

	return handle, nil
}

func (s *Starter) listen(tracks Tracks) ([]*trackConn, error) {
	conns := make([]*trackConn, 0, 2)

	var err error
	tracks.each(func(kind core.TrackKind, track *RtpTrack) {
		if err != nil {
			return
		}

		var port int
		port, err = s.ports.Allocate()
		if err != nil {
			return
		}

		var conn *net.UDPConn
		conn, err = net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(s.host), Port: port})
		if err != nil {
			s.ports.Deallocate(port)
			return
		}

		conns = append(conns, &trackConn{kind: kind, track: track, port: port, conn: conn})
	})
	if err != nil {
		s.release(conns)
		return nil, err
	}

	return conns, nil
}

func (s *Starter) release(conns []*trackConn) {
	for _, c := range conns {
		_ = c.conn.Close()
		s.ports.Deallocate(c.port)
	}
}

// readTrack delivers packets in the order they arrive until conn is closed
func readTrack(conn net.PacketConn, kind core.TrackKind, track *RtpTrack) {
	buf := make([]byte, readBufferSize)
	first := true

	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Str("service", "forwarder").Str("kind", string(kind)).Msg("error during read")
			}
			return
		}

		if first {
			first = false
			if track.FirstPacket != nil {
				track.FirstPacket()
			}
		}
		if track.OnRtp != nil {
			track.OnRtp(buf[:n])
		}
	}
}

func logOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Debug().Str("service", "forwarder").Msg(scanner.Text())
	}
}
