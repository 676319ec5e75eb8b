package transcode

import (
	"os/exec"
)

// Job is a running transcoder process
type Job interface {
	Wait() error
	Kill()
}

type Launcher interface {
	Launch(args []string) (Job, error)
}

type ffmpegLauncher struct {
	path string
}

func NewFFmpegLauncher(path string) Launcher {
	return &ffmpegLauncher{path: path}
}

func (l *ffmpegLauncher) Launch(args []string) (Job, error) {
	cmd := exec.Command(l.path, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processJob{cmd: cmd}, nil
}

type processJob struct {
	cmd *exec.Cmd
}

func (j *processJob) Wait() error {
	return j.cmd.Wait()
}

func (j *processJob) Kill() {
	if j.cmd.Process != nil {
		_ = j.cmd.Process.Kill()
	}
}
