package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/telemetry"
)

type DaemonParams struct {
	NatsAddr          string
	OutputURLTemplate string
	Launcher          Launcher
}

// Daemon runs transcoders on request of bridge instances
type Daemon struct {
	nc       *nats.Conn
	launcher Launcher
	template string
	subs     []*nats.Subscription

	errors chan error

	lock sync.Mutex
	jobs map[string]Job
}

func New(params DaemonParams) (*Daemon, error) {
	nc, err := nats.Connect(params.NatsAddr, nats.NoEcho())
	if err != nil {
		return nil, err
	}

	daemon := &Daemon{
		nc:       nc,
		launcher: params.Launcher,
		template: params.OutputURLTemplate,
		errors:   make(chan error, 16),
		jobs:     make(map[string]Job),
	}

	return daemon, nil
}

// Subscribe starts taking requests
func (d *Daemon) Subscribe() error {
	start, err := d.nc.QueueSubscribe(StartSubject, QueueName, func(msg *nats.Msg) {
		if err := d.startTranscoder(msg); err != nil {
			d.reportError(err)
		}
	})
	if err != nil {
		return err
	}
	stop, err := d.nc.Subscribe(StopSubject, func(msg *nats.Msg) {
		if err := d.stopTranscoder(msg); err != nil {
			d.reportError(err)
		}
	})
	if err != nil {
		return err
	}
	d.subs = []*nats.Subscription{start, stop}

	return d.nc.Flush()
}

// Run serves requests until ctx is done, then stops every job
func (d *Daemon) Run(ctx context.Context) error {
	log.Info().Str("service", "transcode").Msg("start transcode daemon")

	if err := d.Subscribe(); err != nil {
		return err
	}

	for {
		select {
		case err := <-d.errors:
			log.Error().Err(err).Str("service", "transcode").Msg("")
		case <-ctx.Done():
			return d.Stop()
		}
	}
}

func (d *Daemon) reportError(err error) {
	select {
	case d.errors <- err:
	default:
		log.Error().Err(err).Str("service", "transcode").Msg("")
	}
}

func (d *Daemon) Stop() error {
	log.Info().Str("service", "transcode").Msg("stop transcode daemon")

	for _, sub := range d.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("service", "transcode").Str("subject", sub.Subject).Msg("unsubscribe")
		}
	}

	d.lock.Lock()
	for id, job := range d.jobs {
		job.Kill()
		delete(d.jobs, id)
	}
	d.lock.Unlock()

	return d.nc.Drain()
}

func (d *Daemon) startTranscoder(msg *nats.Msg) error {
	log.Debug().Str("service", "transcode").Str("data", string(msg.Data)).Msg("received message, try to start transcoder")

	payload := &StartMessage{}
	if err := json.NewDecoder(bytes.NewReader(msg.Data)).Decode(payload); err != nil {
		d.respond(msg, Reply{Error: "malformed request"})
		return fmt.Errorf("transcode error: %v, payload: %s", err, string(msg.Data))
	}
	if payload.Input == nil || payload.Input.URL == "" {
		d.respond(msg, Reply{Error: "no input"})
		return fmt.Errorf("transcode error: no input for stream %s", payload.StreamID)
	}

	id := uuid.NewString()
	output := outputInput(d.template, id, payload.Input, payload.Args)
	args := buildArguments(payload.Input, payload.Args, output.URL)

	job, err := d.launcher.Launch(args)
	if err != nil {
		telemetry.OperationFailed("transcoder_launch", "exec")
		d.respond(msg, Reply{Error: err.Error()})
		return fmt.Errorf("launch transcoder: %w", err)
	}
	telemetry.OperationSucceeded("transcoder_launch")

	d.lock.Lock()
	d.jobs[id] = job
	d.lock.Unlock()

	go d.wait(id, job)

	log.Info().Str("service", "transcode").Str("id", id).Str("stream_id", payload.StreamID).Str("output", output.URL).Msg("transcoder started")
	d.respond(msg, Reply{ID: id, Output: output})

	return nil
}

func (d *Daemon) wait(id string, job Job) {
	err := job.Wait()

	d.lock.Lock()
	delete(d.jobs, id)
	d.lock.Unlock()

	log.Info().Err(err).Str("service", "transcode").Str("id", id).Msg("transcoder exited")
}

func (d *Daemon) stopTranscoder(msg *nats.Msg) error {
	payload := &StopMessage{}
	if err := json.Unmarshal(msg.Data, payload); err != nil {
		return fmt.Errorf("stop error: %v, payload: %s", err, string(msg.Data))
	}

	d.lock.Lock()
	job, ok := d.jobs[payload.ID]
	d.lock.Unlock()
	if !ok {
		// another daemon runs it
		return nil
	}

	log.Debug().Str("service", "transcode").Str("id", payload.ID).Msg("stop transcoder")
	job.Kill()

	return nil
}

func (d *Daemon) respond(msg *nats.Msg, reply Reply) {
	data, err := json.Marshal(reply)
	if err != nil {
		log.Error().Err(err).Str("service", "transcode").Msg("marshal reply")
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Error().Err(err).Str("service", "transcode").Msg("respond")
	}
}

func (d *Daemon) running() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return len(d.jobs)
}
