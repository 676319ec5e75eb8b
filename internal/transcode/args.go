package transcode

import (
	"fmt"

	"github.com/isqad/livelook-bridge/internal/media"
)

const (
	outputVideoCodec = "h264"
	outputAudioCodec = "opus"
)

func hasFlag(args []string, flags ...string) bool {
	for _, a := range args {
		for _, f := range flags {
			if a == f {
				return true
			}
		}
	}
	return false
}

func flagValue(args []string, flags ...string) string {
	for i := 0; i+1 < len(args); i++ {
		for _, f := range flags {
			if args[i] == f {
				return args[i+1]
			}
		}
	}
	return ""
}

// audioOutputCodec names the audio codec the encoder arguments produce
func audioOutputCodec(input *media.TranscoderInput, args []string) string {
	switch flagValue(args, "-acodec", "-c:a", "-codec:a") {
	case "pcm_mulaw":
		return "pcm_ulaw"
	case "pcm_alaw":
		return "pcm_alaw"
	case "copy":
		return input.AudioCodec()
	default:
		return outputAudioCodec
	}
}

func withAudio(input *media.TranscoderInput, args media.TranscodeArgs) bool {
	return input.HasAudio() && len(args.AudioTranscodeArguments) > 0
}

// buildArguments composes the ffmpeg command line publishing the
// transcoded stream to output
func buildArguments(input *media.TranscoderInput, args media.TranscodeArgs, output string) []string {
	cmd := []string{"-hide_banner", "-nostats", "-loglevel", "warning"}
	cmd = append(cmd, input.InputArguments...)
	cmd = append(cmd, args.VideoDecoderArguments...)
	cmd = append(cmd, "-i", input.URL, "-map", "0:v:0")

	video := args.VideoTranscodeArguments
	if !hasFlag(video, "-c:v", "-vcodec", "-codec:v") {
		cmd = append(cmd, "-c:v", "libx264")
	}
	cmd = append(cmd, video...)

	if withAudio(input, args) {
		cmd = append(cmd, "-map", "0:a:0?")
		cmd = append(cmd, args.AudioTranscodeArguments...)
	} else {
		cmd = append(cmd, "-an")
	}

	return append(cmd, "-f", "rtsp", "-rtsp_transport", "tcp", output)
}

// outputInput describes the transcoded stream for the forwarder
func outputInput(template, id string, input *media.TranscoderInput, args media.TranscodeArgs) *media.TranscoderInput {
	output := &media.TranscoderInput{
		URL:            fmt.Sprintf(template, id),
		InputArguments: []string{"-rtsp_transport", "tcp"},
		MediaStreamOptions: media.MediaStreamOptions{
			Video: &media.VideoStreamOptions{Codec: outputVideoCodec},
		},
	}
	if withAudio(input, args) {
		output.MediaStreamOptions.Audio = &media.AudioStreamOptions{
			Codec: audioOutputCodec(input, args.AudioTranscodeArguments),
		}
	}
	return output
}
