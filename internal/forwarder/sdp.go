package forwarder

import (
	"bufio"
	"io"
	"strings"

	"github.com/pion/sdp/v3"
)

const sdpHeader = "SDP:"

// readSessionDescription scans ffmpeg stdout for the SDP it prints when
// the outputs are RTP. The description ends at the first blank line.
func readSessionDescription(r io.Reader) (*sdp.SessionDescription, error) {
	scanner := bufio.NewScanner(r)

	var (
		lines   []string
		started bool
	)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !started {
			if strings.HasPrefix(line, sdpHeader) {
				started = true
			} else if strings.HasPrefix(line, "v=") {
				started = true
				lines = append(lines, line)
			}
			continue
		}
		if line == "" {
			if len(lines) > 0 {
				break
			}
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, io.ErrUnexpectedEOF
	}

	desc := &sdp.SessionDescription{}
	if err := desc.Unmarshal([]byte(strings.Join(lines, "\r\n") + "\r\n")); err != nil {
		return nil, err
	}

	return desc, nil
}

// dispatchMediaSections hands each media section to the track of the same kind
func dispatchMediaSections(desc *sdp.SessionDescription, tracks Tracks) {
	for _, section := range desc.MediaDescriptions {
		var track *RtpTrack
		switch section.MediaName.Media {
		case "video":
			track = tracks.Video
		case "audio":
			track = tracks.Audio
		}
		if track != nil && track.OnMSection != nil {
			track.OnMSection(section)
		}
	}
}
