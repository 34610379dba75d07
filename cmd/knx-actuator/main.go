// Command knx-actuator runs the device glue of a KNX-IoT push-button/LED
// actuator: programming mode, the two-stage reset button and, on sleepy
// devices, the sleep scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gokrazy/gokrazy"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/config"
	"github.com/sweeney/knx-actuator/internal/gpio"
	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/logging"
	"github.com/sweeney/knx-actuator/internal/logic"
	"github.com/sweeney/knx-actuator/internal/mqtt"
	"github.com/sweeney/knx-actuator/internal/platform"
	"github.com/sweeney/knx-actuator/internal/serialctl"
	"github.com/sweeney/knx-actuator/internal/status"
	"github.com/sweeney/knx-actuator/internal/store"
	"github.com/sweeney/knx-actuator/internal/tasklet"
	"github.com/sweeney/knx-actuator/internal/thread"
	"github.com/sweeney/knx-actuator/internal/web"
)

const defaultConfigPath = "/etc/knx-actuator.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "YAML configuration file")
	printState := flag.Bool("print-state", false, "Print the stored device record and exit")

	flag.Parse()

	path := *configPath
	if !flagSet("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func openStore(path string) (knx.Store, func(), error) {
	if path == "" {
		log.Warnf("no store path configured, device record is not persisted")
		return knx.NewMemoryStore(), func() {}, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return st, func() { st.Close() }, nil
}

func run(cfg *config.Config, printState bool) error {
	logging.Setup(cfg.Logging, cfg.Device.Serial)

	if cfg.WaitForClock {
		gokrazy.WaitForClock()
	}

	st, closeStore, err := openStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	device, err := knx.Open(st, cfg.Device.Serial)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}

	if printState {
		fmt.Println(formatState(device))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The loop may be suspended when a signal arrives; cancelling ctx ends
	// the suspend so the loop can see the signal.
	rawSig := make(chan os.Signal, 1)
	signal.Notify(rawSig, syscall.SIGINT, syscall.SIGTERM)
	sigCh := make(chan os.Signal, 1)
	go func() {
		s := <-rawSig
		cancel()
		sigCh <- s
	}()

	lines, err := gpio.NewRealLines(cfg.GPIO.Chip, cfg.LineConfig())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()
	board := gpio.NewBoard(lines, cfg.GPIO.Debounce)

	otctl := thread.NewOTCtl(cfg.Thread.OTCtl, nil)
	suspender := platform.NewSuspender(ctx)
	suspender.Forward(lines.Wake())

	topics := mqtt.Topics{Serial: cfg.Device.Serial}
	mqttCmds := make(chan mqtt.Command, 8)
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		BufferSize: cfg.MQTT.BufferSize,
	}, topics, mqttCmds)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	commands := make(chan mqtt.Command, 8)
	go relay(ctx, mqttCmds, commands, suspender.Notify)

	frames := make(chan serialctl.Frame, 4)
	if cfg.Serial.Port != "" {
		serialFrames := make(chan serialctl.Frame, 4)
		go serialctl.NewListener(cfg.Serial.Port, cfg.Serial.Baud).Run(ctx, serialFrames)
		go relay(ctx, serialFrames, frames, suspender.Notify)
	}

	sched := tasklet.NewScheduler(time.Now)
	ctrl := logic.New(cfg.LogicConfig(), time.Now, logic.Deps{
		Tasklets:  sched,
		Board:     board,
		Device:    device,
		Network:   otctl,
		Discovery: publisher,
		Rebooter:  platform.SystemRebooter{},
		Suspender: suspender,
	})

	start := time.Now()
	tracker := status.NewTracker(start, status.Config{
		Sleepy:      cfg.Device.Sleepy,
		LongPressMs: cfg.Timing.LongPress.Milliseconds(),
		PollMs:      cfg.Timing.PollPeriod.Milliseconds(),
		MinAwakeMs:  cfg.Timing.MinAwake.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	})

	l := &loop{
		ctrl:       ctrl,
		sched:      sched,
		device:     device,
		net:        otctl,
		rebooter:   platform.SystemRebooter{},
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		heartbeat:  logic.NewHeartbeat(cfg.Heartbeat, start),
		now:        time.Now,
		sleepy:     cfg.Device.Sleepy,
		commands:   commands,
		frames:     frames,
	}
	if err := l.init(); err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	l.startup()

	if cfg.Device.Sleepy {
		go func() {
			if err := thread.JoinWithBackoff(ctx, otctl, cfg.Thread.PSKd, cfg.Thread.JoinRetry); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnf("thread join: %v", err)
			}
		}()
	}

	log.Printf("started: serial=%s sleepy=%t broker=%s heartbeat=%v", cfg.Device.Serial, cfg.Device.Sleepy, cfg.MQTT.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	return l.run(ticker.C, sigCh)
}

// relay copies values from in to out, calling wake after each so a suspended
// loop picks them up.
func relay[T any](ctx context.Context, in <-chan T, out chan<- T, wake func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-in:
			select {
			case out <- v:
				wake()
			case <-ctx.Done():
				return
			}
		}
	}
}

func formatState(d *knx.Device) string {
	rec := d.Record()
	s := fmt.Sprintf("serial=%s ia=%s iid=%d", rec.Serial, rec.IA, rec.IID)
	urls := append([]string(nil), knx.Datapoints...)
	sort.Strings(urls)
	for _, url := range urls {
		v, _ := d.Datapoint(url)
		s += fmt.Sprintf(" %s=%s", url, onOff(v))
	}
	return s
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
